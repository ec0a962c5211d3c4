//go:generate go run go.uber.org/mock/mockgen -source=relay.go -destination=../mocks/mock_relay.go -package=mocks
package contract

import (
	"chat-relay/domain/chat"
	"context"
	"github.com/google/uuid"
)

// Authenticator resolves a bearer credential into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (chat.Identity, error)
}

type MembershipChecker interface {
	IsAuthorized(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
}

type MessageAppender interface {
	Append(ctx context.Context, draft chat.MessageDraft) (chat.Message, error)
}

// InviteNotification is everything a notifier needs to tell someone they were invited.
type InviteNotification struct {
	Email        string
	Token        string
	SessionID    uuid.UUID
	SessionTitle string
	InvitedBy    string
	AcceptURL    string
}

type Notifier interface {
	NotifyInvite(ctx context.Context, n InviteNotification) error
}
