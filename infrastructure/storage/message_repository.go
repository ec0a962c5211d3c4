package storage

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	Append(ctx context.Context, draft chat.MessageDraft) (chat.Message, error)
	List(ctx context.Context, sessionID uuid.UUID, opts chat.ListOptions) ([]chat.Message, int, error)
}

type MessageRepository struct {
	db    *badger.DB
	log   *slog.Logger
	clock *monotonicClock
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return NewMessageRepositoryWithClock(db, log, time.Now)
}

func NewMessageRepositoryWithClock(db *badger.DB, log *slog.Logger, clock Clock) *MessageRepository {
	return &MessageRepository{db: db, log: log, clock: newMonotonicClock(clock)}
}

// Append validates and stores a message under "msg:{session}:{created_at}:{id}".
// The session must exist, otherwise ErrSessionNotFound is returned.
// The author is dropped for non-user roles and required for the user role.
// Tool calls are normalized to a list.
func (m *MessageRepository) Append(ctx context.Context, draft chat.MessageDraft) (chat.Message, error) {
	if !draft.Role.Valid() {
		return chat.Message{}, fmt.Errorf("%q: %w", draft.Role, errors.ErrInvalidRole)
	}
	author := draft.AuthorUserID
	if draft.Role != chat.RoleUser {
		author = nil
	} else if author == nil || *author == uuid.Nil {
		return chat.Message{}, errors.ErrMissingAuthor
	}
	toolCalls, err := chat.NormalizeToolCalls(draft.ToolCalls)
	if err != nil {
		return chat.Message{}, err
	}
	toolMetadata, err := chat.NormalizeToolMetadata(draft.ToolMetadata)
	if err != nil {
		return chat.Message{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return chat.Message{}, fmt.Errorf("generate message id: %w", err)
	}
	message := chat.Message{
		ID:           id,
		SessionID:    draft.SessionID,
		AuthorUserID: author,
		Role:         draft.Role,
		Content:      draft.Content,
		ToolCalls:    toolCalls,
		ToolMetadata: toolMetadata,
		CreatedAt:    m.clock.Next(),
	}
	// Reading the session record orders the append against a concurrent
	// delete: either the sweep sees the message or the append fails.
	err = update(ctx, m.db, func(txn *badger.Txn) error {
		var session chat.Session
		if err := getSession(txn, draft.SessionID, &session); err != nil {
			return err
		}
		return setJSON(txn, messageKey(message), message)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("append message: %w", err)
	}
	return message, nil
}

// List scans the session history in key order, which is (created_at, id).
// It returns one page of the filtered history and the size of the whole filtered set.
func (m *MessageRepository) List(ctx context.Context, sessionID uuid.UUID, opts chat.ListOptions) ([]chat.Message, int, error) {
	opts = opts.Normalize()
	messages := make([]chat.Message, 0, opts.Limit)
	total := 0
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix(sessionID))
		options := badger.DefaultIteratorOptions
		options.Reverse = opts.OrderDesc
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch {
		case opts.OrderDesc:
			// Past the last possible timestamp, then walk backwards.
			seekKey = append(append([]byte{}, prefix...), 0xFF)
		case opts.Since != nil:
			seekKey = append(append([]byte{}, prefix...), []byte(ts(*opts.Since))...)
		default:
			seekKey = prefix
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var message chat.Message
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &message)
			}); err != nil {
				return err
			}
			if opts.OrderDesc && opts.Since != nil && message.CreatedAt.Before(*opts.Since) {
				break
			}
			if !opts.Keeps(message) {
				continue
			}
			if total >= opts.Offset && len(messages) < opts.Limit {
				messages = append(messages, message)
			}
			total++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}
