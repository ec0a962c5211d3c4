// Package chat contains the core concepts of the relay: sessions, participants,
// invites and messages. No storage, network or transport logic belongs here.
package chat

import (
	"chat-relay/errors"
	"fmt"
	"github.com/google/uuid"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultTitle   = "Untitled Session"
	MaxTitleLength = 255
)

// Session is a conversation container owned by exactly one user.
type Session struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeTitle trims the title and falls back to DefaultTitle when nothing is left.
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle, nil
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", fmt.Errorf("title longer than %d characters: %w", MaxTitleLength, errors.ErrInvalidPayload)
	}
	return title, nil
}

// ParseID parses an externally supplied identifier.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%q: %w", raw, errors.ErrInvalidID)
	}
	return id, nil
}

// Identity is the authenticated principal behind a request or a connection.
type Identity struct {
	UserID uuid.UUID
	Email  string
}
