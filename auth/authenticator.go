package auth

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
)

type UserFinder interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (storage.User, error)
}

// TokenAuthenticator turns an access token into an identity. The token must
// name a user that still exists under the same email.
type TokenAuthenticator struct {
	tokens *TokenIssuer
	users  UserFinder
}

func NewTokenAuthenticator(tokens *TokenIssuer, users UserFinder) *TokenAuthenticator {
	return &TokenAuthenticator{tokens: tokens, users: users}
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, credential string) (chat.Identity, error) {
	claims, err := a.tokens.ValidateToken(credential)
	if err != nil {
		return chat.Identity{}, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return chat.Identity{}, fmt.Errorf("token subject %q: %w", claims.Subject, errors.ErrInvalidID)
	}
	user, err := a.users.GetUserByID(ctx, userID)
	if stderrors.Is(err, errors.ErrUserNotFound) {
		return chat.Identity{}, fmt.Errorf("unknown user: %w", errors.ErrUnauthenticated)
	}
	if err != nil {
		return chat.Identity{}, err
	}
	if user.Email != chat.NormalizeEmail(claims.Email) {
		return chat.Identity{}, fmt.Errorf("email changed: %w", errors.ErrUnauthenticated)
	}
	return chat.Identity{UserID: user.ID, Email: user.Email}, nil
}
