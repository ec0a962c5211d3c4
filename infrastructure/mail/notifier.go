package mail

import (
	"bytes"
	"chat-relay/contract"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"gopkg.in/gomail.v2"
)

var inviteBody = template.Must(template.New("invite").Parse(`
<p>Hello,</p>
<p>{{.InvitedBy}} invited you to join <strong>{{.SessionTitle}}</strong>.</p>
<p><a href="{{.AcceptURL}}">Accept the invitation</a></p>
<p>If the link does not work, use this token: <code>{{.Token}}</code></p>
`))

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier delivers invite notifications by email.
type SMTPNotifier struct {
	log    *slog.Logger
	from   string
	sender sender
}

func NewSMTPNotifier(log *slog.Logger, cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		log:    log,
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// NotifyInvite gives up when ctx is done; the SMTP exchange itself cannot be
// interrupted and finishes in the background.
func (n *SMTPNotifier) NotifyInvite(ctx context.Context, invite contract.InviteNotification) error {
	m, err := n.message(invite)
	if err != nil {
		return err
	}
	errc := make(chan error, 1)
	go func() { errc <- n.sender.DialAndSend(m) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("send invite to %s: %w", invite.Email, ctx.Err())
	case err = <-errc:
		if err != nil {
			return fmt.Errorf("send invite to %s: %w", invite.Email, err)
		}
		return nil
	}
}

func (n *SMTPNotifier) message(invite contract.InviteNotification) (*gomail.Message, error) {
	var body bytes.Buffer
	if err := inviteBody.Execute(&body, invite); err != nil {
		return nil, fmt.Errorf("render invite: %w", err)
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", invite.Email)
	m.SetHeader("Subject", fmt.Sprintf("You are invited to %q", invite.SessionTitle))
	m.SetBody("text/html", body.String())
	return m, nil
}

// LogNotifier only logs the notification. Used when no SMTP server is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyInvite(_ context.Context, invite contract.InviteNotification) error {
	n.log.Info("Invite notification",
		"email", invite.Email,
		"session_id", invite.SessionID,
		"accept_url", invite.AcceptURL)
	return nil
}
