package storage

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

// openSession creates a session to append messages to.
func openSession(t *testing.T, db *badger.DB) uuid.UUID {
	t.Helper()
	session, err := NewSessionRepository(db, testLogger()).Create(context.Background(), uuid.New(), "history")
	require.NoError(t, err)
	return session.ID
}

func contents(messages []chat.Message) []string {
	return lo.Map(messages, func(m chat.Message, _ int) string { return m.Content })
}

func TestMessageRepository_Append_Ordering(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := SetupTestDB(t)
	repo := NewMessageRepository(db, testLogger())
	sessionID, author := openSession(t, db), uuid.New()

	// Given three sequential appends
	for _, content := range []string{"m1", "m2", "m3"} {
		_, err := repo.Append(ctx, chat.MessageDraft{SessionID: sessionID, AuthorUserID: &author, Role: chat.RoleUser, Content: content})
		req.NoError(err)
	}

	// Then ascending and descending listings respect append order
	asc, total, err := repo.List(ctx, sessionID, chat.ListOptions{})
	req.NoError(err)
	req.Equal(3, total)
	req.Equal([]string{"m1", "m2", "m3"}, contents(asc))

	desc, _, err := repo.List(ctx, sessionID, chat.ListOptions{OrderDesc: true})
	req.NoError(err)
	req.Equal([]string{"m3", "m2", "m1"}, contents(desc))
}

func TestMessageRepository_Append_SameInstant(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	db := SetupTestDB(t)
	repo := NewMessageRepositoryWithClock(db, testLogger(), func() time.Time { return frozen })
	sessionID, author := openSession(t, db), uuid.New()

	for _, content := range []string{"a", "b", "c"} {
		_, err := repo.Append(ctx, chat.MessageDraft{SessionID: sessionID, AuthorUserID: &author, Role: chat.RoleUser, Content: content})
		req.NoError(err)
	}

	history, _, err := repo.List(ctx, sessionID, chat.ListOptions{})
	req.NoError(err)
	req.Equal([]string{"a", "b", "c"}, contents(history))
}

func TestMessageRepository_Append_AuthorMatchesRole(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := SetupTestDB(t)
	repo := NewMessageRepository(db, testLogger())
	sessionID, author := openSession(t, db), uuid.New()

	// An agent message never carries an author
	agent, err := repo.Append(ctx, chat.MessageDraft{SessionID: sessionID, AuthorUserID: &author, Role: chat.RoleAgent, Content: "hi"})
	req.NoError(err)
	req.Nil(agent.AuthorUserID)

	// A user message always does
	user, err := repo.Append(ctx, chat.MessageDraft{SessionID: sessionID, AuthorUserID: &author, Role: chat.RoleUser, Content: "hello"})
	req.NoError(err)
	req.Equal(author, *user.AuthorUserID)

	_, err = repo.Append(ctx, chat.MessageDraft{SessionID: sessionID, Role: chat.RoleUser, Content: "anonymous"})
	req.ErrorIs(err, errors.ErrMissingAuthor)

	_, err = repo.Append(ctx, chat.MessageDraft{SessionID: sessionID, Role: chat.Role("wizard"), Content: "?"})
	req.ErrorIs(err, errors.ErrInvalidRole)

	history, _, err := repo.List(ctx, sessionID, chat.ListOptions{})
	req.NoError(err)
	req.Len(history, 2)
	req.Nil(history[0].AuthorUserID)
	req.Equal(author, *history[1].AuthorUserID)
}

func TestMessageRepository_Append_NormalizesToolCalls(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := SetupTestDB(t)
	repo := NewMessageRepository(db, testLogger())
	sessionID := openSession(t, db)

	// Given a tool message whose tool_calls is a bare object
	_, err := repo.Append(ctx, chat.MessageDraft{
		SessionID:    sessionID,
		Role:         chat.RoleTool,
		ToolCalls:    map[string]any{"name": "search", "arguments": map[string]any{"q": "badger"}},
		ToolMetadata: map[string]any{"duration_ms": 42},
	})
	req.NoError(err)

	// Then the stored history holds a one-element list
	history, _, err := repo.List(ctx, sessionID, chat.ListOptions{})
	req.NoError(err)
	req.Len(history, 1)
	req.Len(history[0].ToolCalls, 1)
	call := history[0].ToolCalls[0].(map[string]any)
	req.Equal("search", call["name"])
	req.Equal(float64(42), history[0].ToolMetadata["duration_ms"])

	_, err = repo.Append(ctx, chat.MessageDraft{SessionID: sessionID, Role: chat.RoleTool, ToolCalls: "not a tree"})
	req.ErrorIs(err, errors.ErrInvalidPayload)
}

func TestMessageRepository_List_Filters(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := newFakeClock(time.Date(2025, 2, 2, 8, 0, 0, 0, time.UTC))
	db := SetupTestDB(t)
	repo := NewMessageRepositoryWithClock(db, testLogger(), clock.Now)
	sessionID, author := openSession(t, db), uuid.New()

	// Given a history alternating user and agent messages, one minute apart
	var appended []chat.Message
	for i, content := range []string{"u1", "a1", "u2", "a2", "u3"} {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAgent
		}
		m, err := repo.Append(ctx, chat.MessageDraft{SessionID: sessionID, AuthorUserID: &author, Role: role, Content: content})
		req.NoError(err)
		appended = append(appended, m)
		clock.Advance(time.Minute)
	}
	// And a message in another session
	_, err := repo.Append(ctx, chat.MessageDraft{SessionID: openSession(t, db), AuthorUserID: &author, Role: chat.RoleUser, Content: "elsewhere"})
	req.NoError(err)

	t.Run("roles", func(t *testing.T) {
		page, total, err := repo.List(ctx, sessionID, chat.ListOptions{Roles: []chat.Role{chat.RoleAgent}})
		require.NoError(t, err)
		require.Equal(t, 2, total)
		require.Equal(t, []string{"a1", "a2"}, contents(page))
	})

	t.Run("since is inclusive", func(t *testing.T) {
		since := appended[2].CreatedAt
		page, total, err := repo.List(ctx, sessionID, chat.ListOptions{Since: &since})
		require.NoError(t, err)
		require.Equal(t, 3, total)
		require.Equal(t, []string{"u2", "a2", "u3"}, contents(page))
	})

	t.Run("since descending", func(t *testing.T) {
		since := appended[2].CreatedAt
		page, total, err := repo.List(ctx, sessionID, chat.ListOptions{Since: &since, OrderDesc: true})
		require.NoError(t, err)
		require.Equal(t, 3, total)
		require.Equal(t, []string{"u3", "a2", "u2"}, contents(page))
	})

	t.Run("offset pagination", func(t *testing.T) {
		page, total, err := repo.List(ctx, sessionID, chat.ListOptions{Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Equal(t, 5, total)
		require.Equal(t, []string{"u2", "a2"}, contents(page))

		page, total, err = repo.List(ctx, sessionID, chat.ListOptions{Limit: 2, Offset: 10})
		require.NoError(t, err)
		require.Equal(t, 5, total)
		require.Empty(t, page)
	})

	t.Run("everything combined", func(t *testing.T) {
		since := appended[1].CreatedAt
		page, total, err := repo.List(ctx, sessionID, chat.ListOptions{
			Roles:     []chat.Role{chat.RoleUser},
			Since:     &since,
			OrderDesc: true,
			Limit:     1,
		})
		require.NoError(t, err)
		require.Equal(t, 2, total)
		require.Equal(t, []string{"u3"}, contents(page))
	})
}

func TestMessageRepository_Append_UnknownSession(t *testing.T) {
	req := require.New(t)
	db := SetupTestDB(t)
	repo := NewMessageRepository(db, testLogger())
	author := uuid.New()

	_, err := repo.Append(context.Background(), chat.MessageDraft{SessionID: uuid.New(), AuthorUserID: &author, Role: chat.RoleUser, Content: "lost"})
	req.ErrorIs(err, errors.ErrSessionNotFound)
}
