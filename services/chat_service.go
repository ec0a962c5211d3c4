package services

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/infrastructure/storage"
	"chat-relay/runtime"
	"context"
)

type IChatService interface {
	ListMessages(ctx context.Context, cmd chat.ListMessagesCommand) ([]chat.Message, int, error)
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (*chat.Message, error)
	Connect(ctx context.Context, stream contract.Stream, credential, rawSessionID string) error
}

type ChatService struct {
	relay    *runtime.Relay
	access   access
	messages storage.IMessageRepository
}

func NewChatService(
	relay *runtime.Relay,
	sessions storage.ISessionRepository,
	membership storage.IMembershipRepository,
	messages storage.IMessageRepository,
) *ChatService {
	return &ChatService{
		relay:    relay,
		access:   access{sessions: sessions, membership: membership},
		messages: messages,
	}
}

// ListMessages returns one page of history and the size of the filtered set.
func (s *ChatService) ListMessages(ctx context.Context, cmd chat.ListMessagesCommand) ([]chat.Message, int, error) {
	if _, err := s.access.participant(ctx, cmd.SessionID, cmd.UserID); err != nil {
		return nil, 0, err
	}
	return s.messages.List(ctx, cmd.SessionID, cmd.Options)
}

// PostMessage goes through the relay, so the message is broadcast to live
// connections exactly as if it had been sent over one of them.
func (s *ChatService) PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (*chat.Message, error) {
	if _, err := s.access.participant(ctx, cmd.SessionID, cmd.Author.UserID); err != nil {
		return nil, err
	}
	return s.relay.Post(ctx, cmd.SessionID, cmd.Author, cmd.Event)
}

func (s *ChatService) Connect(ctx context.Context, stream contract.Stream, credential, rawSessionID string) error {
	return s.relay.Serve(ctx, stream, credential, rawSessionID)
}
