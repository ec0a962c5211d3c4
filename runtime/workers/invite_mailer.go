package workers

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// InviteMailer drains a bounded queue of invite notifications. Enqueue never
// blocks: when the queue is full the notification is dropped, the invite
// itself stays valid.
type InviteMailer struct {
	log         *slog.Logger
	notifier    contract.Notifier
	queue       chan contract.InviteNotification
	sendTimeout time.Duration
}

func NewInviteMailer(log *slog.Logger, notifier contract.Notifier, capacity int, sendTimeout time.Duration) *InviteMailer {
	return &InviteMailer{
		log:         log,
		notifier:    notifier,
		queue:       make(chan contract.InviteNotification, capacity),
		sendTimeout: sendTimeout,
	}
}

func (m *InviteMailer) Enqueue(n contract.InviteNotification) bool {
	select {
	case m.queue <- n:
		return true
	default:
		return false
	}
}

// Run sends queued notifications one by one until ctx is done. A failed
// send is logged and counted, never retried.
func (m *InviteMailer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("Context done, stopping invite mailer", "pending", len(m.queue))
			return nil
		case n := <-m.queue:
			m.send(ctx, n)
		}
	}
}

func (m *InviteMailer) send(ctx context.Context, n contract.InviteNotification) {
	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()
	if err := m.notifier.NotifyInvite(sendCtx, n); err != nil {
		observability.NotificationsSent.WithLabelValues("failed").Inc()
		m.log.Warn("Invite notification failed", "session_id", n.SessionID, "error", err)
		return
	}
	observability.NotificationsSent.WithLabelValues("sent").Inc()
	m.log.Debug("Invite notification sent", "session_id", n.SessionID)
}

// Pending is the number of notifications waiting to be sent.
func (m *InviteMailer) Pending() int {
	return len(m.queue)
}

func (m *InviteMailer) Capacity() int {
	return cap(m.queue)
}
