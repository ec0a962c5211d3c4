package services

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"context"
	"fmt"

	"github.com/google/uuid"
)

// access answers the authorization questions shared by the services.
type access struct {
	sessions   storage.ISessionRepository
	membership storage.IMembershipRepository
}

// participant loads the session and checks userID belongs to it.
func (a access) participant(ctx context.Context, sessionID, userID uuid.UUID) (chat.Session, error) {
	session, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	if session.OwnerID == userID {
		return session, nil
	}
	ok, err := a.membership.IsAuthorized(ctx, sessionID, userID)
	if err != nil {
		return chat.Session{}, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return chat.Session{}, errors.ErrUnauthorized
	}
	return session, nil
}

// owner loads the session and checks userID owns it. A participant gets
// ErrForbidden, a stranger ErrUnauthorized.
func (a access) owner(ctx context.Context, sessionID, userID uuid.UUID) (chat.Session, error) {
	session, err := a.participant(ctx, sessionID, userID)
	if err != nil {
		return chat.Session{}, err
	}
	if session.OwnerID != userID {
		return chat.Session{}, errors.ErrForbidden
	}
	return session, nil
}
