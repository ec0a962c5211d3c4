package services

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

type ISessionService interface {
	Create(ctx context.Context, ownerID uuid.UUID, title string) (chat.Session, error)
	Get(ctx context.Context, sessionID, userID uuid.UUID) (chat.Session, error)
	List(ctx context.Context, userID uuid.UUID) ([]chat.Session, error)
	Rename(ctx context.Context, sessionID, userID uuid.UUID, title string) (chat.Session, error)
	Delete(ctx context.Context, sessionID, userID uuid.UUID) error
	Join(ctx context.Context, sessionID, userID uuid.UUID) (chat.Participant, error)
	ListParticipants(ctx context.Context, sessionID, userID uuid.UUID) ([]chat.Participant, error)
	AddParticipant(ctx context.Context, sessionID, actorID, userID uuid.UUID) (chat.Participant, error)
	RemoveParticipant(ctx context.Context, sessionID, actorID, userID uuid.UUID) error
}

type SessionService struct {
	log        *slog.Logger
	access     access
	sessions   storage.ISessionRepository
	membership storage.IMembershipRepository
	users      storage.IUserRepository
	registry   contract.IRegistry
}

func NewSessionService(
	log *slog.Logger,
	sessions storage.ISessionRepository,
	membership storage.IMembershipRepository,
	users storage.IUserRepository,
	registry contract.IRegistry,
) *SessionService {
	return &SessionService{
		log:        log,
		access:     access{sessions: sessions, membership: membership},
		sessions:   sessions,
		membership: membership,
		users:      users,
		registry:   registry,
	}
}

func (s *SessionService) Create(ctx context.Context, ownerID uuid.UUID, title string) (chat.Session, error) {
	session, err := s.sessions.Create(ctx, ownerID, title)
	if err != nil {
		return chat.Session{}, err
	}
	s.log.Info("Session created", "session_id", session.ID, "owner_id", ownerID)
	return session, nil
}

func (s *SessionService) Get(ctx context.Context, sessionID, userID uuid.UUID) (chat.Session, error) {
	return s.access.participant(ctx, sessionID, userID)
}

func (s *SessionService) List(ctx context.Context, userID uuid.UUID) ([]chat.Session, error) {
	return s.sessions.ListForUser(ctx, userID)
}

func (s *SessionService) Rename(ctx context.Context, sessionID, userID uuid.UUID, title string) (chat.Session, error) {
	if _, err := s.access.owner(ctx, sessionID, userID); err != nil {
		return chat.Session{}, err
	}
	return s.sessions.UpdateTitle(ctx, sessionID, title)
}

// Delete removes the session with its history and closes the live connections on it.
func (s *SessionService) Delete(ctx context.Context, sessionID, userID uuid.UUID) error {
	if _, err := s.access.owner(ctx, sessionID, userID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	closed := s.registry.DisconnectSession(sessionID)
	s.log.Info("Session deleted", "session_id", sessionID, "connections_closed", closed)
	return nil
}

// Join seats the user directly as a member. Joining twice returns the existing seat.
func (s *SessionService) Join(ctx context.Context, sessionID, userID uuid.UUID) (chat.Participant, error) {
	return s.membership.AddParticipant(ctx, sessionID, userID, chat.ParticipantMember)
}

func (s *SessionService) ListParticipants(ctx context.Context, sessionID, userID uuid.UUID) ([]chat.Participant, error) {
	if _, err := s.access.participant(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.membership.ListParticipants(ctx, sessionID)
}

func (s *SessionService) AddParticipant(ctx context.Context, sessionID, actorID, userID uuid.UUID) (chat.Participant, error) {
	if _, err := s.access.owner(ctx, sessionID, actorID); err != nil {
		return chat.Participant{}, err
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return chat.Participant{}, err
	}
	return s.membership.AddParticipant(ctx, sessionID, userID, chat.ParticipantMember)
}

// RemoveParticipant lets the owner remove a member, or a member leave.
// The removed user's live connections on the session are closed right away.
func (s *SessionService) RemoveParticipant(ctx context.Context, sessionID, actorID, userID uuid.UUID) error {
	session, err := s.access.participant(ctx, sessionID, actorID)
	if err != nil {
		return err
	}
	if actorID != userID && session.OwnerID != actorID {
		return errors.ErrForbidden
	}
	removed, err := s.membership.RemoveParticipant(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	if !removed {
		return errors.ErrUserNotFound
	}
	closed := s.registry.DisconnectUser(sessionID, userID)
	s.log.Info("Participant removed",
		"session_id", sessionID,
		"user_id", userID,
		"by", actorID,
		"connections_closed", closed)
	return nil
}
