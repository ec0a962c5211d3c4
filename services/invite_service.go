package services

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"chat-relay/observability"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// InviteQueue hands invite notifications to a background sender.
// Enqueue never blocks and reports whether the notification was accepted.
type InviteQueue interface {
	Enqueue(n contract.InviteNotification) bool
}

type IInviteService interface {
	Create(ctx context.Context, cmd chat.CreateInviteCommand) (chat.Invite, error)
	List(ctx context.Context, sessionID, userID uuid.UUID) ([]chat.Invite, error)
	Revoke(ctx context.Context, sessionID, inviteID, userID uuid.UUID) (chat.Invite, error)
	Accept(ctx context.Context, token string, identity chat.Identity) (chat.Invite, error)
}

type InviteService struct {
	log        *slog.Logger
	access     access
	membership storage.IMembershipRepository
	users      storage.IUserRepository
	queue      InviteQueue
	publicURL  string
	validate   *validator.Validate
}

func NewInviteService(
	log *slog.Logger,
	sessions storage.ISessionRepository,
	membership storage.IMembershipRepository,
	users storage.IUserRepository,
	queue InviteQueue,
	publicURL string,
) *InviteService {
	return &InviteService{
		log:        log,
		access:     access{sessions: sessions, membership: membership},
		membership: membership,
		users:      users,
		queue:      queue,
		publicURL:  strings.TrimRight(publicURL, "/"),
		validate:   validator.New(),
	}
}

// Create issues an invite on behalf of a participant and queues its notification.
// Inviting an address whose account already sits in the session is a conflict.
func (s *InviteService) Create(ctx context.Context, cmd chat.CreateInviteCommand) (chat.Invite, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return chat.Invite{}, fmt.Errorf("%v: %w", err, errors.ErrInvalidPayload)
	}
	session, err := s.access.participant(ctx, cmd.SessionID, cmd.Inviter.UserID)
	if err != nil {
		return chat.Invite{}, err
	}
	if err = s.ensureNotSeated(ctx, cmd.SessionID, cmd.Email); err != nil {
		return chat.Invite{}, err
	}

	invite, err := s.membership.CreateInvite(ctx, cmd.SessionID, cmd.Email, cmd.Inviter.UserID, inviteTTL(cmd))
	if err != nil {
		return chat.Invite{}, err
	}
	observability.InvitesCreated.Inc()

	queued := s.queue.Enqueue(contract.InviteNotification{
		Email:        invite.Email,
		Token:        invite.Token,
		SessionID:    invite.SessionID,
		SessionTitle: session.Title,
		InvitedBy:    cmd.Inviter.Email,
		AcceptURL:    s.acceptURL(invite.Token),
	})
	if !queued {
		observability.NotificationsSent.WithLabelValues("dropped").Inc()
		s.log.Warn("Invite notification dropped, queue is full", "invite_id", invite.ID)
	}
	s.log.Info("Invite created", "session_id", invite.SessionID, "invite_id", invite.ID)
	return invite, nil
}

// List is reserved to the session owner.
func (s *InviteService) List(ctx context.Context, sessionID, userID uuid.UUID) ([]chat.Invite, error) {
	if _, err := s.access.owner(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.membership.ListInvites(ctx, sessionID)
}

// Revoke is allowed to the session owner and to the invite's creator.
func (s *InviteService) Revoke(ctx context.Context, sessionID, inviteID, userID uuid.UUID) (chat.Invite, error) {
	session, err := s.access.participant(ctx, sessionID, userID)
	if err != nil {
		return chat.Invite{}, err
	}
	current, err := s.membership.GetInvite(ctx, inviteID)
	if err != nil {
		return chat.Invite{}, err
	}
	if current.SessionID != sessionID {
		return chat.Invite{}, errors.ErrInviteNotFound
	}
	if session.OwnerID != userID && current.CreatedBy != userID {
		return chat.Invite{}, errors.ErrForbidden
	}

	invite, err := s.membership.RevokeInvite(ctx, inviteID, sessionID)
	if err != nil {
		return chat.Invite{}, err
	}
	if invite == nil {
		return chat.Invite{}, errors.ErrInviteNotFound
	}
	return *invite, nil
}

// Accept consumes the token for the authenticated user. The token only works
// for the account registered with the invited address.
func (s *InviteService) Accept(ctx context.Context, token string, identity chat.Identity) (chat.Invite, error) {
	if strings.TrimSpace(token) == "" {
		return chat.Invite{}, fmt.Errorf("missing token: %w", errors.ErrInvalidPayload)
	}
	pending, err := s.membership.GetInviteByToken(ctx, token)
	if err != nil {
		return chat.Invite{}, err
	}
	if pending.Email != chat.NormalizeEmail(identity.Email) {
		return chat.Invite{}, errors.ErrInviteNotFound
	}

	invite, err := s.membership.AcceptInvite(ctx, token, identity.UserID)
	if err != nil {
		return chat.Invite{}, err
	}
	if !pending.IsAccepted() {
		observability.InvitesAccepted.Inc()
		s.log.Info("Invite accepted", "session_id", invite.SessionID, "user_id", identity.UserID)
	}
	return invite, nil
}

func (s *InviteService) ensureNotSeated(ctx context.Context, sessionID uuid.UUID, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if stderrors.Is(err, errors.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup invitee: %w", err)
	}
	seated, err := s.membership.IsAuthorized(ctx, sessionID, user.ID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if seated {
		return errors.ErrInviteConflict
	}
	return nil
}

func (s *InviteService) acceptURL(token string) string {
	return s.publicURL + "/invites/accept?token=" + url.QueryEscape(token)
}

func inviteTTL(cmd chat.CreateInviteCommand) time.Duration {
	switch {
	case cmd.NoExpiry:
		return 0
	case cmd.ExpiresInHours != nil:
		return time.Duration(*cmd.ExpiresInHours) * time.Hour
	default:
		return chat.DefaultInviteTTL
	}
}
