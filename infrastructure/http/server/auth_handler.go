package server

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := decode(r, &body); err != nil {
		writeError(s.log, w, r, err)
		return
	}
	token, err := s.authService.Register(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: string(token), TokenType: "bearer"})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := decode(r, &body); err != nil {
		writeError(s.log, w, r, err)
		return
	}
	token, err := s.authService.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: string(token), TokenType: "bearer"})
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(s.log, w, r, errors.ErrUnauthenticated)
		return
	}
	user, err := s.authService.Me(r.Context(), identity.UserID)
	if err != nil {
		writeError(s.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt})
}
