package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// emailClient is the part of *sendgrid.Client the channel uses.
type emailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridChannel struct {
	client   emailClient
	fromName string
	fromAddr string
}

func NewSendGridChannel(apiKey, fromAddr, fromName string) (*SendGridChannel, error) {
	if apiKey == "" {
		return nil, errors.New("SENDGRID_API_KEY not set")
	}
	if fromAddr == "" {
		return nil, errors.New("sendgrid from address not set")
	}
	if fromName == "" {
		fromName = "Meetings"
	}
	return &SendGridChannel{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddr,
	}, nil
}

func (c *SendGridChannel) Name() string { return "sendgrid" }

func (c *SendGridChannel) Accepts(to Recipient) bool { return to.Email != "" }

func (c *SendGridChannel) Send(ctx context.Context, msg Message) error {
	email := c.build(msg)
	resp, err := c.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To.Email, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (c *SendGridChannel) build(msg Message) *mail.SGMailV3 {
	from := mail.NewEmail(c.fromName, c.fromAddr)
	to := mail.NewEmail(msg.To.Name, msg.To.Email)
	return mail.NewSingleEmail(from, msg.Subject, to, msg.Text, "")
}
