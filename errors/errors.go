package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Identity
	ErrUnauthenticated    = fmt.Errorf("unauthenticated")
	ErrUnauthorized       = fmt.Errorf("not a participant of this session")
	ErrForbidden          = fmt.Errorf("operation reserved to the session owner")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet the requirements")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	// Sessions and membership
	ErrSessionNotFound   = fmt.Errorf("session not found")
	ErrCannotRemoveOwner = fmt.Errorf("the owner cannot be removed from the session")

	// Invites
	ErrInviteNotFound = fmt.Errorf("invite not found")
	ErrInviteConflict = fmt.Errorf("an active invite already exists for this email")
	ErrInviteExpired  = fmt.Errorf("invite expired")
	ErrInviteRevoked  = fmt.Errorf("invite revoked")

	// Messages and payloads
	ErrInvalidID        = fmt.Errorf("malformed identifier")
	ErrInvalidPayload   = fmt.Errorf("invalid payload")
	ErrInvalidRole      = fmt.Errorf("invalid message role")
	ErrMissingAuthor    = fmt.Errorf("user messages require an author")
	ErrEmptyMessage     = fmt.Errorf("empty message without tool payload")
	ErrConnectionClosed = fmt.Errorf("connection closed")
)
