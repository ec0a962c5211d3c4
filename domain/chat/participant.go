package chat

import (
	"github.com/google/uuid"
	"time"
)

type ParticipantRole string

const (
	ParticipantOwner  ParticipantRole = "owner"
	ParticipantMember ParticipantRole = "member"
)

// Participant is unique per (SessionID, UserID). The owner always holds one.
type Participant struct {
	SessionID uuid.UUID       `json:"session_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Role      ParticipantRole `json:"role"`
	JoinedAt  time.Time       `json:"joined_at"`
}
