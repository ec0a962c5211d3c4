package workers

import (
	"chat-relay/contract"
	"chat-relay/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestInviteMailer_SendsQueuedNotifications(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	mailer := NewInviteMailer(slog.New(slog.DiscardHandler), notifier, 4, time.Second)

	first := contract.InviteNotification{Email: "a@x.com", SessionID: uuid.New()}
	second := contract.InviteNotification{Email: "b@x.com", SessionID: uuid.New()}
	sent := make(chan string, 2)

	// Given a notifier failing on the first notification
	gomock.InOrder(
		notifier.EXPECT().NotifyInvite(gomock.Any(), first).DoAndReturn(
			func(ctx context.Context, n contract.InviteNotification) error {
				sent <- n.Email
				return fmt.Errorf("smtp down")
			}),
		notifier.EXPECT().NotifyInvite(gomock.Any(), second).DoAndReturn(
			func(ctx context.Context, n contract.InviteNotification) error {
				_, hasDeadline := ctx.Deadline()
				req.True(hasDeadline)
				sent <- n.Email
				return nil
			}),
	)

	req.True(mailer.Enqueue(first))
	req.True(mailer.Enqueue(second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- mailer.Run(ctx) }()

	// Then the failure does not stop the following notifications
	req.Equal("a@x.com", <-sent)
	req.Equal("b@x.com", <-sent)

	cancel()
	req.NoError(<-done)
}

func TestInviteMailer_EnqueueNeverBlocks(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mailer := NewInviteMailer(slog.New(slog.DiscardHandler), mocks.NewMockNotifier(ctrl), 1, time.Second)

	req.True(mailer.Enqueue(contract.InviteNotification{Email: "a@x.com"}))
	req.False(mailer.Enqueue(contract.InviteNotification{Email: "b@x.com"}))
}
