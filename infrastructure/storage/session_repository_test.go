package storage

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_CreateSeatsOwner(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := SetupTestDB(t)
	sessions := NewSessionRepository(db, testLogger())
	membership := NewMembershipRepository(db, testLogger())
	owner := uuid.New()

	// When a session is created without a title
	session, err := sessions.Create(ctx, owner, "  ")
	req.NoError(err)

	// Then it gets the default title and the owner holds the owner seat
	req.Equal(chat.DefaultTitle, session.Title)
	participants, err := membership.ListParticipants(ctx, session.ID)
	req.NoError(err)
	req.Len(participants, 1)
	req.Equal(owner, participants[0].UserID)
	req.Equal(chat.ParticipantOwner, participants[0].Role)

	authorized, err := membership.IsAuthorized(ctx, session.ID, owner)
	req.NoError(err)
	req.True(authorized)
}

func TestSessionRepository_ListForUser(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := SetupTestDB(t)
	sessions := NewSessionRepository(db, testLogger())
	membership := NewMembershipRepository(db, testLogger())
	clock := newFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	sessions.clock = clock.Now
	alice, bob := uuid.New(), uuid.New()

	// Given two sessions of Alice, Bob being seated in the second only
	first, err := sessions.Create(ctx, alice, "first")
	req.NoError(err)
	clock.Advance(time.Minute)
	second, err := sessions.Create(ctx, alice, "second")
	req.NoError(err)
	_, err = membership.AddParticipant(ctx, second.ID, bob, chat.ParticipantMember)
	req.NoError(err)

	// Then Alice sees both, newest first, and Bob sees one
	aliceSessions, err := sessions.ListForUser(ctx, alice)
	req.NoError(err)
	req.Equal([]uuid.UUID{second.ID, first.ID}, lo.Map(aliceSessions, func(s chat.Session, _ int) uuid.UUID { return s.ID }))

	bobSessions, err := sessions.ListForUser(ctx, bob)
	req.NoError(err)
	req.Len(bobSessions, 1)
	req.Equal(second.ID, bobSessions[0].ID)
}

func TestSessionRepository_UpdateTitle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	sessions := NewSessionRepository(SetupTestDB(t), testLogger())

	session, err := sessions.Create(ctx, uuid.New(), "draft")
	req.NoError(err)

	updated, err := sessions.UpdateTitle(ctx, session.ID, "final")
	req.NoError(err)
	req.Equal("final", updated.Title)

	fetched, err := sessions.Get(ctx, session.ID)
	req.NoError(err)
	req.Equal("final", fetched.Title)

	_, err = sessions.UpdateTitle(ctx, uuid.New(), "x")
	req.ErrorIs(err, errors.ErrSessionNotFound)
}

func TestSessionRepository_DeleteCascades(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := SetupTestDB(t)
	sessions := NewSessionRepository(db, testLogger())
	membership := NewMembershipRepository(db, testLogger())
	messages := NewMessageRepository(db, testLogger())
	owner, guest := uuid.New(), uuid.New()

	// Given a session with a guest, an invite and a message
	session, err := sessions.Create(ctx, owner, "doomed")
	req.NoError(err)
	_, err = membership.AddParticipant(ctx, session.ID, guest, chat.ParticipantMember)
	req.NoError(err)
	invite, err := membership.CreateInvite(ctx, session.ID, "c@x.com", owner, time.Hour)
	req.NoError(err)
	_, err = messages.Append(ctx, chat.MessageDraft{SessionID: session.ID, AuthorUserID: &owner, Role: chat.RoleUser, Content: "bye"})
	req.NoError(err)

	// When the session is deleted
	req.NoError(sessions.Delete(ctx, session.ID))

	// Then nothing of it remains reachable
	_, err = sessions.Get(ctx, session.ID)
	req.ErrorIs(err, errors.ErrSessionNotFound)

	authorized, err := membership.IsAuthorized(ctx, session.ID, guest)
	req.NoError(err)
	req.False(authorized)

	participants, err := membership.ListParticipants(ctx, session.ID)
	req.NoError(err)
	req.Empty(participants)

	_, err = membership.GetInviteByToken(ctx, invite.Token)
	req.ErrorIs(err, errors.ErrInviteNotFound)

	history, total, err := messages.List(ctx, session.ID, chat.ListOptions{})
	req.NoError(err)
	req.Zero(total)
	req.Empty(history)

	guestSessions, err := sessions.ListForUser(ctx, guest)
	req.NoError(err)
	req.Empty(guestSessions)

	req.ErrorIs(sessions.Delete(ctx, session.ID), errors.ErrSessionNotFound)
}

func TestSessionRepository_AppendAfterDelete(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := SetupTestDB(t)
	sessions := NewSessionRepository(db, testLogger())
	messages := NewMessageRepository(db, testLogger())
	owner := uuid.New()

	// Given a deleted session
	session, err := sessions.Create(ctx, owner, "gone")
	req.NoError(err)
	req.NoError(sessions.Delete(ctx, session.ID))

	// When a late message arrives for it
	_, err = messages.Append(ctx, chat.MessageDraft{SessionID: session.ID, AuthorUserID: &owner, Role: chat.RoleUser, Content: "orphan"})

	// Then it is refused and the history stays empty
	req.ErrorIs(err, errors.ErrSessionNotFound)
	_, total, err := messages.List(ctx, session.ID, chat.ListOptions{})
	req.NoError(err)
	req.Zero(total)
}

func TestSessionRepository_DeleteWhileAppending(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := SetupTestDB(t)
	sessions := NewSessionRepository(db, testLogger())
	messages := NewMessageRepository(db, testLogger())
	owner := uuid.New()
	session, err := sessions.Create(ctx, owner, "busy")
	req.NoError(err)

	// Given writers appending until the session is gone
	var wg sync.WaitGroup
	failures := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := messages.Append(ctx, chat.MessageDraft{SessionID: session.ID, AuthorUserID: &owner, Role: chat.RoleUser, Content: "spam"})
				if stderrors.Is(err, errors.ErrSessionNotFound) {
					return
				}
				if err != nil {
					failures <- err
					return
				}
			}
		}()
	}

	// When the session is deleted under them
	time.Sleep(20 * time.Millisecond)
	req.NoError(sessions.Delete(ctx, session.ID))
	wg.Wait()
	close(failures)

	// Then no message survives the delete
	for err := range failures {
		req.NoError(err)
	}
	_, total, err := messages.List(ctx, session.ID, chat.ListOptions{})
	req.NoError(err)
	req.Zero(total)
}
