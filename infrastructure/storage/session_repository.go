package storage

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type ISessionRepository interface {
	Create(ctx context.Context, ownerID uuid.UUID, title string) (chat.Session, error)
	Get(ctx context.Context, id uuid.UUID) (chat.Session, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Session, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) (chat.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionRepository struct {
	db    *badger.DB
	log   *slog.Logger
	clock Clock
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, log: log, clock: time.Now}
}

// Create stores the session and its owner participant in a single transaction,
// so a session is never observable without its owner seat.
func (s *SessionRepository) Create(ctx context.Context, ownerID uuid.UUID, title string) (chat.Session, error) {
	title, err := chat.NormalizeTitle(title)
	if err != nil {
		return chat.Session{}, err
	}
	now := s.clock().UTC()
	session := chat.Session{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := chat.Participant{
		SessionID: session.ID,
		UserID:    ownerID,
		Role:      chat.ParticipantOwner,
		JoinedAt:  now,
	}
	err = update(ctx, s.db, func(txn *badger.Txn) error {
		if err := setJSON(txn, sessionKey(session.ID), session); err != nil {
			return err
		}
		if err := txn.Set([]byte(sessionOwnerKey(session)), nil); err != nil {
			return err
		}
		return putParticipant(txn, owner)
	})
	if err != nil {
		return chat.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.log.Debug("Session created", "session_id", session.ID, "owner_id", ownerID)
	return session, nil
}

func (s *SessionRepository) Get(ctx context.Context, id uuid.UUID) (chat.Session, error) {
	var session chat.Session
	err := s.db.View(func(txn *badger.Txn) error {
		return getSession(txn, id, &session)
	})
	return session, err
}

// ListForUser returns every session the user holds a seat in, newest first.
func (s *SessionRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Session, error) {
	var sessions []chat.Session
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := participantUserPrefix(userID)
		for _, key := range keysWithPrefix(txn, prefix) {
			sessionID, err := uuid.Parse(strings.TrimPrefix(string(key), prefix))
			if err != nil {
				return fmt.Errorf("corrupted participant index %q: %w", key, err)
			}
			var session chat.Session
			err = getSession(txn, sessionID, &session)
			if stderrors.Is(err, errors.ErrSessionNotFound) {
				// Seat left behind by a cascade delete still in progress.
				continue
			}
			if err != nil {
				return err
			}
			sessions = append(sessions, session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *SessionRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (chat.Session, error) {
	title, err := chat.NormalizeTitle(title)
	if err != nil {
		return chat.Session{}, err
	}
	var session chat.Session
	err = update(ctx, s.db, func(txn *badger.Txn) error {
		if err := getSession(txn, id, &session); err != nil {
			return err
		}
		session.Title = title
		session.UpdatedAt = s.clock().UTC()
		return setJSON(txn, sessionKey(id), session)
	})
	return session, err
}

// Delete removes the session record first, which immediately revokes every
// authorization on it, then sweeps participants, invites and messages.
func (s *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var session chat.Session
	err := update(ctx, s.db, func(txn *badger.Txn) error {
		if err := getSession(txn, id, &session); err != nil {
			return err
		}
		if err := txn.Delete([]byte(sessionKey(id))); err != nil {
			return err
		}
		return txn.Delete([]byte(sessionOwnerKey(session)))
	})
	if err != nil {
		return err
	}
	if err = s.sweep(id); err != nil {
		return fmt.Errorf("sweep session %s: %w", id, err)
	}
	s.log.Debug("Session deleted", "session_id", id)
	return nil
}

// sweep deletes the dependent records of a removed session with a write batch,
// which is not bounded by the transaction size limit.
func (s *SessionRepository) sweep(id uuid.UUID) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		for _, key := range keysWithPrefix(txn, participantPrefix(id)) {
			userID, err := uuid.Parse(strings.TrimPrefix(string(key), participantPrefix(id)))
			if err == nil {
				keys = append(keys, []byte(participantUserKey(userID, id)))
			}
			keys = append(keys, key)
		}
		for _, key := range keysWithPrefix(txn, inviteSessionPrefix(id)) {
			parts := strings.Split(string(key), ":")
			inviteID, err := uuid.Parse(parts[len(parts)-1])
			if err != nil {
				continue
			}
			var invite chat.Invite
			if err = getJSON(txn, inviteKey(inviteID), &invite); err == nil {
				keys = append(keys,
					[]byte(inviteKey(inviteID)),
					[]byte(inviteTokenKey(invite.Token)),
					[]byte(inviteActiveKey(id, invite.Email)),
				)
			}
			keys = append(keys, key)
		}
		keys = append(keys, keysWithPrefix(txn, messagePrefix(id))...)
		return nil
	})
	if err != nil {
		return err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err = wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func getSession(txn *badger.Txn, id uuid.UUID, session *chat.Session) error {
	err := getJSON(txn, sessionKey(id), session)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrSessionNotFound
	}
	return err
}
