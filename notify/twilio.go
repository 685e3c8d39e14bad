package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the part of the Twilio API service the channel uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

type TwilioChannel struct {
	api  messageCreator
	from string
}

func NewTwilioChannel(accountSID, authToken, from string) (*TwilioChannel, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, errors.New("twilio credentials not fully configured")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSID,
		Password:   authToken,
		AccountSid: accountSID,
	})
	return &TwilioChannel{api: client.Api, from: from}, nil
}

func (c *TwilioChannel) Name() string { return "twilio" }

// Accepts requires an E.164 number.
func (c *TwilioChannel) Accepts(to Recipient) bool { return strings.HasPrefix(to.Phone, "+") }

// Send ignores ctx: the Twilio client has no context-aware call.
func (c *TwilioChannel) Send(_ context.Context, msg Message) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(msg.To.Phone)
	params.SetFrom(c.from)
	params.SetBody(msg.Subject + "\n" + msg.Text)

	if _, err := c.api.CreateMessage(params); err != nil {
		return fmt.Errorf("send sms to %s: %w", msg.To.Phone, err)
	}
	return nil
}
