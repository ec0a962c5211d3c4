package server

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type sessionRequest struct {
	Title string `json:"title"`
}

type participantRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

// caller returns the authenticated identity and the session of the path.
func (s *Server) caller(r *http.Request) (chat.Identity, uuid.UUID, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return chat.Identity{}, uuid.Nil, errors.ErrUnauthenticated
	}
	sessionID, err := chat.ParseID(chi.URLParam(r, "sessionID"))
	if err != nil {
		return chat.Identity{}, uuid.Nil, err
	}
	return identity, sessionID, nil
}

func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(s.log, w, r, errors.ErrUnauthenticated)
		return
	}
	sessions, err := s.sessions.List(r.Context(), identity.UserID)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sessions))
}

func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(s.log, w, r, errors.ErrUnauthenticated)
		return
	}
	var body sessionRequest
	if err := decode(r, &body); err != nil {
		writeError(s.log, w, r, err)
		return
	}
	session, err := s.sessions.Create(r.Context(), identity.UserID, body.Title)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	session, err := s.sessions.Get(r.Context(), sessionID, identity.UserID)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) UpdateSession(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	var body sessionRequest
	if err = decode(r, &body); err != nil {
		writeError(s.log, w, r, err)
		return
	}
	session, err := s.sessions.Rename(r.Context(), sessionID, identity.UserID, body.Title)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	if err = s.sessions.Delete(r.Context(), sessionID, identity.UserID); err != nil {
		writeError(s.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) JoinSession(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	participant, err := s.sessions.Join(r.Context(), sessionID, identity.UserID)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, participant)
}

func (s *Server) ListParticipants(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	participants, err := s.sessions.ListParticipants(r.Context(), sessionID, identity.UserID)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(participants))
}

func (s *Server) AddParticipant(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	var body participantRequest
	if err = decode(r, &body); err != nil {
		writeError(s.log, w, r, err)
		return
	}
	if body.UserID == uuid.Nil {
		writeError(s.log, w, r, errors.ErrInvalidID)
		return
	}
	participant, err := s.sessions.AddParticipant(r.Context(), sessionID, identity.UserID, body.UserID)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (s *Server) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	userID, err := chat.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	if err = s.sessions.RemoveParticipant(r.Context(), sessionID, identity.UserID, userID); err != nil {
		writeError(s.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
