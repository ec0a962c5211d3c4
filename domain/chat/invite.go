package chat

import (
	"github.com/google/uuid"
	"strings"
	"time"
)

const (
	DefaultInviteTTL = 72 * time.Hour
	MinInviteTTL     = time.Hour
	MaxInviteTTL     = 720 * time.Hour
)

// Invite is a single-use capability granting a session seat to whoever presents Token.
// An invite is active while it is neither accepted, revoked nor expired.
type Invite struct {
	ID         uuid.UUID  `json:"id"`
	SessionID  uuid.UUID  `json:"session_id"`
	Email      string     `json:"email"`
	Token      string     `json:"token"`
	CreatedBy  uuid.UUID  `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	AcceptedBy *uuid.UUID `json:"accepted_by"`
	AcceptedAt *time.Time `json:"accepted_at"`
	Revoked    bool       `json:"revoked"`
}

func (i Invite) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

func (i Invite) IsAccepted() bool {
	return i.AcceptedAt != nil
}

func (i Invite) IsActive(now time.Time) bool {
	return !i.Revoked && !i.IsAccepted() && !i.IsExpired(now)
}

// NormalizeEmail is the comparison form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
