package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
)

// ConnState is the lifecycle of one live connection.
// Connecting -> Authorized -> Open -> Closed; any state may jump to Closed.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAuthorized
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorized:
		return "authorized"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Relay admits connections into sessions and turns their inbound events
// into persisted, broadcast messages.
type Relay struct {
	log           *slog.Logger
	authenticator contract.Authenticator
	membership    contract.MembershipChecker
	messages      contract.MessageAppender
	registry      contract.IRegistry
}

func NewRelay(
	log *slog.Logger,
	authenticator contract.Authenticator,
	membership contract.MembershipChecker,
	messages contract.MessageAppender,
	registry contract.IRegistry,
) *Relay {
	return &Relay{
		log:           log,
		authenticator: authenticator,
		membership:    membership,
		messages:      messages,
		registry:      registry,
	}
}

// member is a stream bound to the identity it was admitted with.
type member struct {
	contract.Stream
	userID uuid.UUID
}

func (m member) UserID() uuid.UUID { return m.userID }

// Serve drives one connection until it ends. Events are handled one at a time
// in arrival order, each being persisted before it is broadcast. The returned
// error explains why the connection was closed by the relay; a peer leaving
// is not an error.
func (r *Relay) Serve(ctx context.Context, stream contract.Stream, credential, rawSessionID string) error {
	log := r.log.With("connection_id", stream.ID())
	state := StateConnecting

	identity, sessionID, err := r.admit(ctx, credential, rawSessionID)
	if err != nil {
		code := closeCodeFor(err)
		log.Info("Connection refused", "state", state, "code", code, "error", err)
		r.close(stream, code, closeReasonFor(err))
		return err
	}
	state = StateAuthorized
	log = log.With("session_id", sessionID, "user_id", identity.UserID)

	conn := member{Stream: stream, userID: identity.UserID}
	r.registry.Connect(sessionID, conn)
	// A removal committed between admission and Connect could not see this
	// connection, so membership is checked again once it is registered.
	if err = r.confirm(ctx, sessionID, identity.UserID); err != nil {
		r.registry.Disconnect(sessionID, conn)
		code := closeCodeFor(err)
		log.Info("Connection refused after registration", "state", state, "code", code, "error", err)
		r.close(stream, code, closeReasonFor(err))
		return err
	}
	state = StateOpen
	log.Debug("Connection open", "state", state)

	defer func() {
		r.registry.Disconnect(sessionID, conn)
		log.Debug("Connection closed", "state", StateClosed)
	}()

	for {
		evt, err := stream.Receive(ctx)
		if err != nil {
			if stderrors.Is(err, errors.ErrInvalidPayload) {
				log.Warn("Undecodable frame, closing", "error", err)
				r.close(stream, contract.CloseUnsupportedData, "undecodable frame")
				return err
			}
			// Peer went away or the server is shutting down.
			r.close(stream, contract.CloseNormal, "")
			return nil
		}
		if _, err = r.handle(ctx, sessionID, identity, evt); err != nil {
			if isRejection(err) {
				log.Debug("Event rejected", "error", err)
				if sendErr := stream.Send(ctx, chat.ErrorEvent{Error: errors.PublicMessage(err)}); sendErr != nil {
					r.close(stream, contract.CloseGoingAway, "")
					return nil
				}
				continue
			}
			code := closeCodeFor(err)
			if code == contract.CloseInternalError {
				log.Error("Unable to persist message, closing", "error", err)
			} else {
				log.Info("Session gone, closing", "error", err)
			}
			r.close(stream, code, closeReasonFor(err))
			return err
		}
	}
}

// Post handles one event outside of a live connection, on behalf of identity.
// It returns nil without error when the event is empty and was ignored.
func (r *Relay) Post(ctx context.Context, sessionID uuid.UUID, identity chat.Identity, evt chat.InboundEvent) (*chat.Message, error) {
	if err := r.confirm(ctx, sessionID, identity.UserID); err != nil {
		return nil, err
	}
	return r.handle(ctx, sessionID, identity, evt)
}

// admit covers the Connecting and Authorized states.
func (r *Relay) admit(ctx context.Context, credential, rawSessionID string) (chat.Identity, uuid.UUID, error) {
	if credential == "" {
		return chat.Identity{}, uuid.Nil, fmt.Errorf("missing credential: %w", errors.ErrUnauthenticated)
	}
	identity, err := r.authenticator.Authenticate(ctx, credential)
	if err != nil {
		return chat.Identity{}, uuid.Nil, err
	}
	sessionID, err := chat.ParseID(rawSessionID)
	if err != nil {
		return chat.Identity{}, uuid.Nil, fmt.Errorf("session id: %w", err)
	}
	if err = r.confirm(ctx, sessionID, identity.UserID); err != nil {
		return chat.Identity{}, uuid.Nil, err
	}
	return identity, sessionID, nil
}

func (r *Relay) confirm(ctx context.Context, sessionID, userID uuid.UUID) error {
	authorized, err := r.membership.IsAuthorized(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !authorized {
		return errors.ErrUnauthorized
	}
	return nil
}

func (r *Relay) handle(ctx context.Context, sessionID uuid.UUID, identity chat.Identity, evt chat.InboundEvent) (*chat.Message, error) {
	if evt.IsEmpty() {
		return nil, nil
	}
	role, known := chat.ParseRole(evt.Role)
	if !known {
		r.log.Warn("Unknown message role, treated as user",
			"session_id", sessionID, "user_id", identity.UserID, "role", evt.Role)
		observability.RolesCoerced.Inc()
	}
	draft := chat.MessageDraft{
		SessionID:    sessionID,
		Role:         role,
		Content:      evt.Content,
		ToolCalls:    evt.ToolCalls,
		ToolMetadata: evt.Meta(),
	}
	if role == chat.RoleUser {
		draft.AuthorUserID = &identity.UserID
	}
	message, err := r.messages.Append(ctx, draft)
	if err != nil {
		return nil, err
	}
	observability.MessagesPersisted.WithLabelValues(string(message.Role)).Inc()
	r.registry.Broadcast(sessionID, message)
	return &message, nil
}

func (r *Relay) close(stream contract.Stream, code int, reason string) {
	observability.ConnectionsClosed.WithLabelValues(strconv.Itoa(code)).Inc()
	if err := stream.Close(code, reason); err != nil {
		r.log.Debug("Error while closing stream", "connection_id", stream.ID(), "error", err)
	}
}

// isRejection tells a bad event, reported to its sender, from a store failure.
func isRejection(err error) bool {
	return stderrors.Is(err, errors.ErrInvalidPayload) ||
		stderrors.Is(err, errors.ErrInvalidRole) ||
		stderrors.Is(err, errors.ErrMissingAuthor)
}

func closeCodeFor(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrInvalidID):
		return contract.CloseProtocolError
	case stderrors.Is(err, errors.ErrUnauthenticated),
		stderrors.Is(err, errors.ErrUnauthorized),
		stderrors.Is(err, errors.ErrSessionNotFound):
		return contract.ClosePolicyViolation
	default:
		return contract.CloseInternalError
	}
}

func closeReasonFor(err error) string {
	switch closeCodeFor(err) {
	case contract.CloseProtocolError:
		return "malformed identifier"
	case contract.ClosePolicyViolation:
		return "not allowed"
	default:
		return "internal error"
	}
}
