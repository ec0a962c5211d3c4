package services

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/infrastructure/storage"
	"chat-relay/runtime"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// recordingQueue keeps every notification it is given.
type recordingQueue struct {
	mu   sync.Mutex
	full bool
	sent []contract.InviteNotification
}

func (q *recordingQueue) Enqueue(n contract.InviteNotification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.sent = append(q.sent, n)
	return true
}

func (q *recordingQueue) Sent() []contract.InviteNotification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]contract.InviteNotification(nil), q.sent...)
}

// fixture wires the services on an in-memory store.
type fixture struct {
	users      *storage.UserRepository
	sessions   *storage.SessionRepository
	membership *storage.MembershipRepository
	messages   *storage.MessageRepository
	registry   *runtime.Registry
	queue      *recordingQueue

	sessionSvc *SessionService
	inviteSvc  *InviteService
	chatSvc    *ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.New(slog.DiscardHandler)
	f := &fixture{
		users:      storage.NewUserRepository(db),
		sessions:   storage.NewSessionRepository(db, log),
		membership: storage.NewMembershipRepository(db, log),
		messages:   storage.NewMessageRepository(db, log),
		registry:   runtime.NewRegistry(log, 100*time.Millisecond),
		queue:      &recordingQueue{},
	}
	f.sessionSvc = NewSessionService(log, f.sessions, f.membership, f.users, f.registry)
	f.inviteSvc = NewInviteService(log, f.sessions, f.membership, f.users, f.queue, "https://chat.example.com/")
	relay := runtime.NewRelay(log, nil, f.membership, f.messages, f.registry)
	f.chatSvc = NewChatService(relay, f.sessions, f.membership, f.messages)
	return f
}

func (f *fixture) user(t *testing.T, email string) chat.Identity {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), email, "hash")
	require.NoError(t, err)
	return chat.Identity{UserID: u.ID, Email: u.Email}
}

// fakeConn is a live connection that records what it receives.
type fakeConn struct {
	id     string
	user   uuid.UUID
	mu     sync.Mutex
	got    []any
	closed int
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) UserID() uuid.UUID { return c.user }

func (c *fakeConn) Send(_ context.Context, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, payload)
	return nil
}

func (c *fakeConn) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = code
	return nil
}

func (c *fakeConn) Received() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.got...)
}

func (c *fakeConn) ClosedWith() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
