package runtime

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"sync"

	"github.com/google/uuid"
)

// fakeConn records what it receives. A broken fake fails every send,
// a stuck one blocks until the delivery deadline.
type fakeConn struct {
	id     string
	userID uuid.UUID
	broken bool
	stuck  bool

	mu         sync.Mutex
	received   []any
	closed     bool
	closeCode  int
	closeCount int
}

func newFakeConn(userID uuid.UUID) *fakeConn {
	return &fakeConn{id: uuid.NewString(), userID: userID}
}

func (f *fakeConn) ID() string        { return f.id }
func (f *fakeConn) UserID() uuid.UUID { return f.userID }

func (f *fakeConn) Send(ctx context.Context, payload any) error {
	if f.broken {
		return errors.ErrConnectionClosed
	}
	if f.stuck {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, payload)
	return nil
}

func (f *fakeConn) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	if !f.closed {
		f.closed = true
		f.closeCode = code
	}
	return nil
}

func (f *fakeConn) Received() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.received...)
}

func (f *fakeConn) Closed() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCode
}

// fakeStream is a fakeConn fed with inbound events from a channel.
// Closing the inbox ends the stream like a peer going away.
type fakeStream struct {
	*fakeConn
	inbox chan chat.InboundEvent
}

func newFakeStream() *fakeStream {
	return &fakeStream{fakeConn: newFakeConn(uuid.Nil), inbox: make(chan chat.InboundEvent, 16)}
}

func (f *fakeStream) Receive(ctx context.Context) (chat.InboundEvent, error) {
	select {
	case <-ctx.Done():
		return chat.InboundEvent{}, ctx.Err()
	case evt, ok := <-f.inbox:
		if !ok {
			return chat.InboundEvent{}, errors.ErrConnectionClosed
		}
		return evt, nil
	}
}
