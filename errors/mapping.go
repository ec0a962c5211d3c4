package errors

import (
	stderrors "errors"
	"net/http"
)

var statusBySentinel = []struct {
	err    error
	status int
}{
	{ErrUnauthenticated, http.StatusUnauthorized},
	{ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrUnauthorized, http.StatusForbidden},
	{ErrForbidden, http.StatusForbidden},
	{ErrCannotRemoveOwner, http.StatusConflict},
	{ErrSessionNotFound, http.StatusNotFound},
	{ErrUserNotFound, http.StatusNotFound},
	{ErrInviteNotFound, http.StatusNotFound},
	{ErrInviteConflict, http.StatusConflict},
	{ErrUserAlreadyExists, http.StatusConflict},
	{ErrInviteExpired, http.StatusGone},
	{ErrInviteRevoked, http.StatusGone},
	{ErrInvalidID, http.StatusBadRequest},
	{ErrInvalidPayload, http.StatusBadRequest},
	{ErrInvalidRole, http.StatusBadRequest},
	{ErrMissingAuthor, http.StatusBadRequest},
	{ErrEmptyMessage, http.StatusBadRequest},
	{ErrInvalidPassword, http.StatusBadRequest},
}

// MapToHTTPStatus translates a (possibly wrapped) sentinel into an HTTP status code.
// Unknown errors are internal errors.
func MapToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, s := range statusBySentinel {
		if stderrors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the text safe to expose to a client for err.
func PublicMessage(err error) string {
	if MapToHTTPStatus(err) == http.StatusInternalServerError {
		return "internal error"
	}
	for _, s := range statusBySentinel {
		if stderrors.Is(err, s.err) {
			return s.err.Error()
		}
	}
	return err.Error()
}
