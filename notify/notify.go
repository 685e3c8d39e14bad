/*
Package notify delivers assignment notifications.

PURPOSE:
  The engine hands a meeting.Notification to a meeting.Notifier and never
  waits on delivery semantics. This package renders the notification once
  and sends it over every configured channel.

CHANNELS:
  - SendGridChannel: email via SendGrid
  - TwilioChannel:   SMS via Twilio

DISPATCH:
  Dispatcher: sends to every channel the assignee has an address for;
              channel errors are joined
  Async:      wraps a Notifier; Notify returns immediately and failures
              are logged, never returned

SEE ALSO:
  - meeting/store.go: Notifier interface
  - engine/assign.go: the only producer
*/
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/meeting-engine/meeting"
)

// Recipient is who a Message goes to. A channel skips recipients without
// the address it needs.
type Recipient struct {
	Name  string
	Email string
	Phone string
}

type Message struct {
	To      Recipient
	Subject string
	Text    string
}

// Channel sends one rendered message.
type Channel interface {
	Name() string
	// Accepts reports whether the recipient has an address for this channel.
	Accepts(to Recipient) bool
	Send(ctx context.Context, msg Message) error
}

// Render turns a notification into the message every channel sends.
func Render(n meeting.Notification) Message {
	when := n.Date.String()
	if n.Time.Valid() {
		when += " " + n.Time.String()
	}

	subject := fmt.Sprintf("You were assigned as %s", n.Role)
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", n.Assignee.Name)
	fmt.Fprintf(&b, "You were assigned as %s for the meeting on %s.", n.Role, when)
	if n.ChangedBy.Name != "" {
		fmt.Fprintf(&b, " Assigned by %s.", n.ChangedBy.Name)
	}
	if n.Conflict {
		b.WriteString("\n\nNote: this overlaps time you marked as unavailable.")
	}

	return Message{
		To: Recipient{
			Name:  n.Assignee.Name,
			Email: strings.TrimSpace(n.Assignee.Email),
			Phone: strings.TrimSpace(n.Assignee.Phone),
		},
		Subject: subject,
		Text:    b.String(),
	}
}

// Dispatcher implements meeting.Notifier over a set of channels.
type Dispatcher struct {
	channels []Channel
}

func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

func (d *Dispatcher) Channels() []Channel { return d.channels }

func (d *Dispatcher) Notify(ctx context.Context, n meeting.Notification) error {
	msg := Render(n)
	var errs []error
	for _, ch := range d.channels {
		if !ch.Accepts(msg.To) {
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var _ meeting.Notifier = (*Dispatcher)(nil)
