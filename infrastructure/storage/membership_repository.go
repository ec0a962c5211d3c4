package storage

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"crypto/rand"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// inviteTokenBytes gives 256 bits of entropy per invite token.
const inviteTokenBytes = 32

type IMembershipRepository interface {
	IsAuthorized(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
	AddParticipant(ctx context.Context, sessionID, userID uuid.UUID, role chat.ParticipantRole) (chat.Participant, error)
	RemoveParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]chat.Participant, error)
	CreateInvite(ctx context.Context, sessionID uuid.UUID, email string, createdBy uuid.UUID, ttl time.Duration) (chat.Invite, error)
	AcceptInvite(ctx context.Context, token string, userID uuid.UUID) (chat.Invite, error)
	RevokeInvite(ctx context.Context, inviteID, sessionID uuid.UUID) (*chat.Invite, error)
	GetInvite(ctx context.Context, inviteID uuid.UUID) (chat.Invite, error)
	GetInviteByToken(ctx context.Context, token string) (chat.Invite, error)
	ListInvites(ctx context.Context, sessionID uuid.UUID) ([]chat.Invite, error)
}

// MembershipRepository owns participants and invites. Every mutation is one
// Badger transaction; conflicting concurrent transactions are replayed, so the
// outcome is the same as if they had run one after the other.
type MembershipRepository struct {
	db    *badger.DB
	log   *slog.Logger
	clock Clock
}

func NewMembershipRepository(db *badger.DB, log *slog.Logger) *MembershipRepository {
	return &MembershipRepository{db: db, log: log, clock: time.Now}
}

// WithClock returns a copy reading time from clock.
func (m *MembershipRepository) WithClock(clock Clock) *MembershipRepository {
	return &MembershipRepository{db: m.db, log: m.log, clock: clock}
}

// IsAuthorized is true when the session exists and the user owns it or holds a seat in it.
func (m *MembershipRepository) IsAuthorized(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	var authorized bool
	err := m.db.View(func(txn *badger.Txn) error {
		var session chat.Session
		err := getSession(txn, sessionID, &session)
		if stderrors.Is(err, errors.ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if session.OwnerID == userID {
			authorized = true
			return nil
		}
		authorized, err = exists(txn, participantKey(sessionID, userID))
		return err
	})
	return authorized, err
}

// AddParticipant inserts the seat or returns the one already there.
// Two concurrent calls for the same pair both succeed with the same row.
func (m *MembershipRepository) AddParticipant(ctx context.Context, sessionID, userID uuid.UUID, role chat.ParticipantRole) (chat.Participant, error) {
	var participant chat.Participant
	err := update(ctx, m.db, func(txn *badger.Txn) error {
		if err := getSession(txn, sessionID, &chat.Session{}); err != nil {
			return err
		}
		var err error
		participant, err = insertOrFetchParticipant(txn, sessionID, userID, role, m.clock().UTC())
		return err
	})
	if err != nil {
		return chat.Participant{}, err
	}
	return participant, nil
}

// RemoveParticipant deletes a member seat. The owner seat cannot be removed.
func (m *MembershipRepository) RemoveParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	var removed bool
	err := update(ctx, m.db, func(txn *badger.Txn) error {
		removed = false
		var p chat.Participant
		err := getJSON(txn, participantKey(sessionID, userID), &p)
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if p.Role == chat.ParticipantOwner {
			return errors.ErrCannotRemoveOwner
		}
		if err = txn.Delete([]byte(participantKey(sessionID, userID))); err != nil {
			return err
		}
		removed = true
		return txn.Delete([]byte(participantUserKey(userID, sessionID)))
	})
	return removed, err
}

// ListParticipants returns the seats of a session ordered by join time.
func (m *MembershipRepository) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]chat.Participant, error) {
	var participants []chat.Participant
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(participantPrefix(sessionID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p chat.Participant
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &p)
			}); err != nil {
				return err
			}
			participants = append(participants, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].UserID.String() < participants[j].UserID.String()
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants, nil
}

// CreateInvite issues a new token for (session, email) unless an active invite
// already exists for that pair, in which case ErrInviteConflict is returned.
// A zero ttl means the invite never expires.
func (m *MembershipRepository) CreateInvite(ctx context.Context, sessionID uuid.UUID, email string, createdBy uuid.UUID, ttl time.Duration) (chat.Invite, error) {
	email = chat.NormalizeEmail(email)
	var invite chat.Invite
	err := update(ctx, m.db, func(txn *badger.Txn) error {
		if err := getSession(txn, sessionID, &chat.Session{}); err != nil {
			return err
		}
		now := m.clock().UTC()
		current, err := activeInvite(txn, sessionID, email)
		if err != nil {
			return err
		}
		if current != nil && current.IsActive(now) {
			return errors.ErrInviteConflict
		}
		token, err := newInviteToken()
		if err != nil {
			return err
		}
		invite = chat.Invite{
			ID:        uuid.New(),
			SessionID: sessionID,
			Email:     email,
			Token:     token,
			CreatedBy: createdBy,
			CreatedAt: now,
		}
		if ttl > 0 {
			invite.ExpiresAt = lo.ToPtr(now.Add(ttl))
		}
		return putInvite(txn, invite, true)
	})
	if err != nil {
		return chat.Invite{}, err
	}
	m.log.Debug("Invite created", "session_id", sessionID, "invite_id", invite.ID)
	return invite, nil
}

// AcceptInvite consumes the invite and seats the user in one transaction.
// Expiry is evaluated inside that transaction, so an invite that expires
// between lookup and acceptance is refused.
func (m *MembershipRepository) AcceptInvite(ctx context.Context, token string, userID uuid.UUID) (chat.Invite, error) {
	var invite chat.Invite
	err := update(ctx, m.db, func(txn *badger.Txn) error {
		if err := inviteByToken(txn, token, &invite); err != nil {
			return err
		}
		if invite.Revoked {
			return errors.ErrInviteRevoked
		}
		if invite.IsAccepted() {
			if invite.AcceptedBy != nil && *invite.AcceptedBy == userID {
				return nil
			}
			return errors.ErrInviteNotFound
		}
		now := m.clock().UTC()
		if invite.IsExpired(now) {
			return errors.ErrInviteExpired
		}
		err := getSession(txn, invite.SessionID, &chat.Session{})
		if stderrors.Is(err, errors.ErrSessionNotFound) {
			return errors.ErrInviteNotFound
		}
		if err != nil {
			return err
		}
		invite.AcceptedBy = lo.ToPtr(userID)
		invite.AcceptedAt = lo.ToPtr(now)
		if err = putInvite(txn, invite, false); err != nil {
			return err
		}
		if err = txn.Delete([]byte(inviteActiveKey(invite.SessionID, invite.Email))); err != nil {
			return err
		}
		_, err = insertOrFetchParticipant(txn, invite.SessionID, userID, chat.ParticipantMember, now)
		return err
	})
	if err != nil {
		return chat.Invite{}, err
	}
	return invite, nil
}

// RevokeInvite marks a pending invite as revoked. It returns nil when the invite
// does not belong to sessionID. Accepted invites are returned untouched.
func (m *MembershipRepository) RevokeInvite(ctx context.Context, inviteID, sessionID uuid.UUID) (*chat.Invite, error) {
	var invite *chat.Invite
	err := update(ctx, m.db, func(txn *badger.Txn) error {
		invite = nil
		var current chat.Invite
		err := getJSON(txn, inviteKey(inviteID), &current)
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if current.SessionID != sessionID {
			return nil
		}
		invite = &current
		if current.Revoked || current.IsAccepted() {
			return nil
		}
		current.Revoked = true
		if err = putInvite(txn, current, false); err != nil {
			return err
		}
		active, err := activeInvite(txn, sessionID, current.Email)
		if err != nil {
			return err
		}
		if active != nil && active.ID == current.ID {
			return txn.Delete([]byte(inviteActiveKey(sessionID, current.Email)))
		}
		return nil
	})
	return invite, err
}

func (m *MembershipRepository) GetInvite(ctx context.Context, inviteID uuid.UUID) (chat.Invite, error) {
	var invite chat.Invite
	err := m.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, inviteKey(inviteID), &invite)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Invite{}, errors.ErrInviteNotFound
	}
	return invite, err
}

func (m *MembershipRepository) GetInviteByToken(ctx context.Context, token string) (chat.Invite, error) {
	var invite chat.Invite
	err := m.db.View(func(txn *badger.Txn) error {
		return inviteByToken(txn, token, &invite)
	})
	return invite, err
}

// ListInvites returns every invite of a session, oldest first.
func (m *MembershipRepository) ListInvites(ctx context.Context, sessionID uuid.UUID) ([]chat.Invite, error) {
	var invites []chat.Invite
	err := m.db.View(func(txn *badger.Txn) error {
		for _, key := range keysWithPrefix(txn, inviteSessionPrefix(sessionID)) {
			parts := strings.Split(string(key), ":")
			inviteID, err := uuid.Parse(parts[len(parts)-1])
			if err != nil {
				return fmt.Errorf("corrupted invite index %q: %w", key, err)
			}
			var invite chat.Invite
			if err = getJSON(txn, inviteKey(inviteID), &invite); err != nil {
				return err
			}
			invites = append(invites, invite)
		}
		return nil
	})
	return invites, err
}

func insertOrFetchParticipant(txn *badger.Txn, sessionID, userID uuid.UUID, role chat.ParticipantRole, now time.Time) (chat.Participant, error) {
	var existing chat.Participant
	err := getJSON(txn, participantKey(sessionID, userID), &existing)
	if err == nil {
		return existing, nil
	}
	if !stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Participant{}, err
	}
	p := chat.Participant{SessionID: sessionID, UserID: userID, Role: role, JoinedAt: now}
	return p, putParticipant(txn, p)
}

func putParticipant(txn *badger.Txn, p chat.Participant) error {
	if err := setJSON(txn, participantKey(p.SessionID, p.UserID), p); err != nil {
		return err
	}
	return txn.Set([]byte(participantUserKey(p.UserID, p.SessionID)), nil)
}

// putInvite writes the record. Indexes are only written for a new invite.
func putInvite(txn *badger.Txn, invite chat.Invite, isNew bool) error {
	if err := setJSON(txn, inviteKey(invite.ID), invite); err != nil {
		return err
	}
	if !isNew {
		return nil
	}
	id := []byte(invite.ID.String())
	if err := txn.Set([]byte(inviteTokenKey(invite.Token)), id); err != nil {
		return err
	}
	if err := txn.Set([]byte(inviteActiveKey(invite.SessionID, invite.Email)), id); err != nil {
		return err
	}
	return txn.Set([]byte(inviteSessionKey(invite)), nil)
}

// activeInvite follows the active index for (session, email). The result may
// be expired: callers decide with Invite.IsActive.
func activeInvite(txn *badger.Txn, sessionID uuid.UUID, email string) (*chat.Invite, error) {
	item, err := txn.Get([]byte(inviteActiveKey(sessionID, email)))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	id, err := uuid.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("corrupted active invite index: %w", err)
	}
	var invite chat.Invite
	if err = getJSON(txn, inviteKey(id), &invite); err != nil {
		return nil, err
	}
	return &invite, nil
}

func inviteByToken(txn *badger.Txn, token string, invite *chat.Invite) error {
	if token == "" {
		return errors.ErrInviteNotFound
	}
	item, err := txn.Get([]byte(inviteTokenKey(token)))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrInviteNotFound
	}
	if err != nil {
		return err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	id, err := uuid.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("corrupted invite token index: %w", err)
	}
	return getJSON(txn, inviteKey(id), invite)
}

func newInviteToken() (string, error) {
	b := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
