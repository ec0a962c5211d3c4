package storage

import (
	"chat-relay/domain/chat"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Key layout. Timestamps are zero padded to 19 digits so that the
// lexicographic order of keys is the chronological order.
const (
	prefixUser            = "user:"
	prefixUserEmail       = "user_email:"
	prefixSession         = "session:"
	prefixSessionOwner    = "session_owner:"
	prefixParticipant     = "participant:"
	prefixParticipantUser = "participant_user:"
	prefixInvite          = "invite:"
	prefixInviteToken     = "invite_token:"
	prefixInviteActive    = "invite_active:"
	prefixInviteSession   = "invite_session:"
	prefixMessage         = "msg:"
)

// Prefixes lists every key family, for the inspector.
var Prefixes = []string{
	prefixUser, prefixUserEmail, prefixSession, prefixSessionOwner,
	prefixParticipant, prefixParticipantUser,
	prefixInvite, prefixInviteToken, prefixInviteActive, prefixInviteSession,
	prefixMessage,
}

func ts(t time.Time) string {
	return fmt.Sprintf("%019d", t.UnixNano())
}

func userKey(id uuid.UUID) string { return prefixUser + id.String() }
func userEmailKey(email string) string { return prefixUserEmail + chat.NormalizeEmail(email) }
func sessionKey(id uuid.UUID) string { return prefixSession + id.String() }
func inviteKey(id uuid.UUID) string { return prefixInvite + id.String() }
func inviteTokenKey(token string) string { return prefixInviteToken + token }

func sessionOwnerKey(s chat.Session) string {
	return fmt.Sprintf("%s%s:%s:%s", prefixSessionOwner, s.OwnerID, ts(s.CreatedAt), s.ID)
}

func participantPrefix(sessionID uuid.UUID) string {
	return prefixParticipant + sessionID.String() + ":"
}

func participantKey(sessionID, userID uuid.UUID) string {
	return participantPrefix(sessionID) + userID.String()
}

func participantUserPrefix(userID uuid.UUID) string {
	return prefixParticipantUser + userID.String() + ":"
}

func participantUserKey(userID, sessionID uuid.UUID) string {
	return participantUserPrefix(userID) + sessionID.String()
}

func inviteActiveKey(sessionID uuid.UUID, email string) string {
	return fmt.Sprintf("%s%s:%s", prefixInviteActive, sessionID, chat.NormalizeEmail(email))
}

func inviteSessionPrefix(sessionID uuid.UUID) string {
	return prefixInviteSession + sessionID.String() + ":"
}

func inviteSessionKey(inv chat.Invite) string {
	return fmt.Sprintf("%s%s:%s", inviteSessionPrefix(inv.SessionID), ts(inv.CreatedAt), inv.ID)
}

func messagePrefix(sessionID uuid.UUID) string {
	return prefixMessage + sessionID.String() + ":"
}

// messageKey is "msg:{session}:{created_at}:{id}". The id breaks ties
// between messages created at the same nanosecond.
func messageKey(m chat.Message) string {
	return fmt.Sprintf("%s%s:%s", messagePrefix(m.SessionID), ts(m.CreatedAt), m.ID)
}
