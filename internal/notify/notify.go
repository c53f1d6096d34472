// README: Fire-and-forget email notifications via the Gmail API.
package notify

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"fleetops/internal/logger"
)

// Notifier sends operational emails. Failure to send is logged and counted
// but never blocks or rolls back the transition that triggered it.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type GmailNotifier struct {
	service *gmail.Service
	from    string
	log     logger.Logger
}

func NewGmailNotifier(ctx context.Context, tokenSource oauth2.TokenSource, from string, log logger.Logger) (*GmailNotifier, error) {
	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}
	return &GmailNotifier{service: service, from: from, log: log}, nil
}

func (n *GmailNotifier) Send(ctx context.Context, to, subject, body string) error {
	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		n.from, to, subject, body)
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))}
	if _, err := n.service.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		n.log.Warn("send mail", "to", to, "subject", subject, "error", err)
		return err
	}
	return nil
}

// Nop is used when mail is disabled and in tests.
type Nop struct{}

func (Nop) Send(context.Context, string, string, string) error { return nil }
