package server

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type inviteRequest struct {
	Email          string `json:"email"`
	ExpiresInHours *int   `json:"expires_in_hours"`
	NoExpiry       bool   `json:"no_expiry"`
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

func (s *Server) CreateInvite(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	var body inviteRequest
	if err = decode(r, &body); err != nil {
		writeError(s.log, w, r, err)
		return
	}
	invite, err := s.invites.Create(r.Context(), chat.CreateInviteCommand{
		SessionID:      sessionID,
		Inviter:        identity,
		Email:          body.Email,
		ExpiresInHours: body.ExpiresInHours,
		NoExpiry:       body.NoExpiry,
	})
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (s *Server) ListInvites(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	invites, err := s.invites.List(r.Context(), sessionID, identity.UserID)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(invites))
}

func (s *Server) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	identity, sessionID, err := s.caller(r)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	inviteID, err := chat.ParseID(chi.URLParam(r, "inviteID"))
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	invite, err := s.invites.Revoke(r.Context(), sessionID, inviteID, identity.UserID)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invite)
}

func (s *Server) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(s.log, w, r, errors.ErrUnauthenticated)
		return
	}
	var body acceptInviteRequest
	if err := decode(r, &body); err != nil {
		writeError(s.log, w, r, err)
		return
	}
	if body.Token == "" {
		body.Token = r.URL.Query().Get("token")
	}
	invite, err := s.invites.Accept(r.Context(), body.Token, identity)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invite)
}
