package chat

import (
	"github.com/google/uuid"
)

// PostMessageCommand carries an event submitted over request/response
// instead of a live connection.
type PostMessageCommand struct {
	SessionID uuid.UUID
	Author    Identity
	Event     InboundEvent
}

type ListMessagesCommand struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	Options   ListOptions
}

// CreateInviteCommand is the invite request of a participant. A nil
// ExpiresInHours means the default TTL, NoExpiry disables expiration.
type CreateInviteCommand struct {
	SessionID      uuid.UUID
	Inviter        Identity
	Email          string `json:"email" validate:"required,email,max=320"`
	ExpiresInHours *int   `json:"expires_in_hours" validate:"omitempty,min=1,max=720"`
	NoExpiry       bool   `json:"no_expiry"`
}
