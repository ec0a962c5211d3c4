package services

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestInviteService_DemoScenario(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice@x.com")
	bob := f.user(t, "b@x.com")

	// Given alice creating "Demo", she is its owner straight away
	session, err := f.sessionSvc.Create(ctx, alice.UserID, "Demo")
	req.NoError(err)
	participants, err := f.sessionSvc.ListParticipants(ctx, session.ID, alice.UserID)
	req.NoError(err)
	req.Len(participants, 1)
	req.Equal(chat.ParticipantOwner, participants[0].Role)

	// When alice invites b@x.com
	invite, err := f.inviteSvc.Create(ctx, chat.CreateInviteCommand{
		SessionID: session.ID,
		Inviter:   alice,
		Email:     "B@x.com",
	})
	req.NoError(err)
	req.Equal("b@x.com", invite.Email)
	req.NotNil(invite.ExpiresAt)
	req.WithinDuration(invite.CreatedAt.Add(chat.DefaultInviteTTL), *invite.ExpiresAt, time.Second)

	// Then a notification carrying the accept link is queued
	sent := f.queue.Sent()
	req.Len(sent, 1)
	req.Equal("b@x.com", sent[0].Email)
	req.Equal("Demo", sent[0].SessionTitle)
	req.Equal("alice@x.com", sent[0].InvitedBy)
	req.Contains(sent[0].AcceptURL, "https://chat.example.com/invites/accept?token=")

	// When bob accepts with the token
	accepted, err := f.inviteSvc.Accept(ctx, invite.Token, bob)
	req.NoError(err)
	req.Equal(bob.UserID, *accepted.AcceptedBy)

	// Then bob is a member
	participants, err = f.sessionSvc.ListParticipants(ctx, session.ID, bob.UserID)
	req.NoError(err)
	req.Len(participants, 2)
	member, found := lo.Find(participants, func(p chat.Participant) bool { return p.UserID == bob.UserID })
	req.True(found)
	req.Equal(chat.ParticipantMember, member.Role)

	// And inviting b@x.com again is a conflict
	_, err = f.inviteSvc.Create(ctx, chat.CreateInviteCommand{SessionID: session.ID, Inviter: alice, Email: "b@x.com"})
	req.ErrorIs(err, errors.ErrInviteConflict)
}

func TestInviteService_CreateRules(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice@x.com")
	bob := f.user(t, "bob@x.com")
	eve := f.user(t, "eve@x.com")
	session, err := f.sessionSvc.Create(ctx, alice.UserID, "Demo")
	req.NoError(err)
	_, err = f.sessionSvc.Join(ctx, session.ID, bob.UserID)
	req.NoError(err)

	t.Run("should let any participant invite", func(t *testing.T) {
		_, err := f.inviteSvc.Create(ctx, chat.CreateInviteCommand{SessionID: session.ID, Inviter: bob, Email: "carol@x.com"})
		require.NoError(t, err)
	})

	t.Run("should refuse strangers", func(t *testing.T) {
		_, err := f.inviteSvc.Create(ctx, chat.CreateInviteCommand{SessionID: session.ID, Inviter: eve, Email: "dan@x.com"})
		require.ErrorIs(t, err, errors.ErrUnauthorized)
	})

	t.Run("should reject out of range ttl and bad emails", func(t *testing.T) {
		for _, cmd := range []chat.CreateInviteCommand{
			{SessionID: session.ID, Inviter: alice, Email: "nope"},
			{SessionID: session.ID, Inviter: alice, Email: "ok@x.com", ExpiresInHours: lo.ToPtr(0)},
			{SessionID: session.ID, Inviter: alice, Email: "ok@x.com", ExpiresInHours: lo.ToPtr(721)},
		} {
			_, err := f.inviteSvc.Create(ctx, cmd)
			require.ErrorIs(t, err, errors.ErrInvalidPayload)
		}
	})

	t.Run("should honor ttl and no expiry", func(t *testing.T) {
		short, err := f.inviteSvc.Create(ctx, chat.CreateInviteCommand{
			SessionID: session.ID, Inviter: alice, Email: "short@x.com", ExpiresInHours: lo.ToPtr(1),
		})
		require.NoError(t, err)
		require.True(t, short.CreatedAt.Add(time.Hour).Equal(*short.ExpiresAt))

		forever, err := f.inviteSvc.Create(ctx, chat.CreateInviteCommand{
			SessionID: session.ID, Inviter: alice, Email: "forever@x.com", NoExpiry: true,
		})
		require.NoError(t, err)
		require.Nil(t, forever.ExpiresAt)
	})

	t.Run("should still create the invite when the queue is full", func(t *testing.T) {
		f.queue.full = true
		defer func() { f.queue.full = false }()
		_, err := f.inviteSvc.Create(ctx, chat.CreateInviteCommand{SessionID: session.ID, Inviter: alice, Email: "late@x.com"})
		require.NoError(t, err)
	})
}

func TestInviteService_ListAndRevoke(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice@x.com")
	bob := f.user(t, "bob@x.com")
	carol := f.user(t, "carol@x.com")
	session, err := f.sessionSvc.Create(ctx, alice.UserID, "Demo")
	req.NoError(err)
	for _, u := range []chat.Identity{bob, carol} {
		_, err = f.sessionSvc.Join(ctx, session.ID, u.UserID)
		req.NoError(err)
	}
	byBob, err := f.inviteSvc.Create(ctx, chat.CreateInviteCommand{SessionID: session.ID, Inviter: bob, Email: "x@x.com"})
	req.NoError(err)
	byAlice, err := f.inviteSvc.Create(ctx, chat.CreateInviteCommand{SessionID: session.ID, Inviter: alice, Email: "y@x.com"})
	req.NoError(err)

	// Only the owner lists invites
	_, err = f.inviteSvc.List(ctx, session.ID, bob.UserID)
	req.ErrorIs(err, errors.ErrForbidden)
	invites, err := f.inviteSvc.List(ctx, session.ID, alice.UserID)
	req.NoError(err)
	req.Len(invites, 2)

	// Neither the creator nor the owner, carol cannot revoke
	_, err = f.inviteSvc.Revoke(ctx, session.ID, byBob.ID, carol.UserID)
	req.ErrorIs(err, errors.ErrForbidden)

	// The creator can
	revoked, err := f.inviteSvc.Revoke(ctx, session.ID, byBob.ID, bob.UserID)
	req.NoError(err)
	req.True(revoked.Revoked)

	// The owner can revoke anyone's
	revoked, err = f.inviteSvc.Revoke(ctx, session.ID, byAlice.ID, alice.UserID)
	req.NoError(err)
	req.True(revoked.Revoked)

	// An unknown invite is not found
	_, err = f.inviteSvc.Revoke(ctx, session.ID, uuid.New(), alice.UserID)
	req.ErrorIs(err, errors.ErrInviteNotFound)
}

func TestInviteService_RevokeInAnotherSessionIsNotFound(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice@x.com")
	demo, err := f.sessionSvc.Create(ctx, alice.UserID, "Demo")
	req.NoError(err)
	other, err := f.sessionSvc.Create(ctx, alice.UserID, "Other")
	req.NoError(err)
	invite, err := f.inviteSvc.Create(ctx, chat.CreateInviteCommand{SessionID: demo.ID, Inviter: alice, Email: "x@x.com"})
	req.NoError(err)

	_, err = f.inviteSvc.Revoke(ctx, other.ID, invite.ID, alice.UserID)
	req.ErrorIs(err, errors.ErrInviteNotFound)
}

func TestInviteService_Accept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice@x.com")
	bob := f.user(t, "bob@x.com")
	mallory := f.user(t, "mallory@x.com")
	session, err := f.sessionSvc.Create(ctx, alice.UserID, "Demo")
	require.NoError(t, err)
	invite, err := f.inviteSvc.Create(ctx, chat.CreateInviteCommand{SessionID: session.ID, Inviter: alice, Email: "bob@x.com"})
	require.NoError(t, err)

	t.Run("should refuse another account", func(t *testing.T) {
		_, err := f.inviteSvc.Accept(ctx, invite.Token, mallory)
		require.ErrorIs(t, err, errors.ErrInviteNotFound)
	})

	t.Run("should refuse an unknown or empty token", func(t *testing.T) {
		_, err := f.inviteSvc.Accept(ctx, "unknown", bob)
		require.ErrorIs(t, err, errors.ErrInviteNotFound)
		_, err = f.inviteSvc.Accept(ctx, " ", bob)
		require.ErrorIs(t, err, errors.ErrInvalidPayload)
	})

	t.Run("should be idempotent for the invited account", func(t *testing.T) {
		first, err := f.inviteSvc.Accept(ctx, invite.Token, bob)
		require.NoError(t, err)
		second, err := f.inviteSvc.Accept(ctx, invite.Token, bob)
		require.NoError(t, err)
		require.True(t, first.AcceptedAt.Equal(*second.AcceptedAt))
	})

	t.Run("should refuse a revoked invite", func(t *testing.T) {
		carolInvite, err := f.inviteSvc.Create(ctx, chat.CreateInviteCommand{SessionID: session.ID, Inviter: alice, Email: "carol@x.com"})
		require.NoError(t, err)
		_, err = f.inviteSvc.Revoke(ctx, session.ID, carolInvite.ID, alice.UserID)
		require.NoError(t, err)
		carol := f.user(t, "carol@x.com")

		_, err = f.inviteSvc.Accept(ctx, carolInvite.Token, carol)
		require.ErrorIs(t, err, errors.ErrInviteRevoked)
	})
}
