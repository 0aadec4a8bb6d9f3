package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrNotConfigured is returned by Send when Twilio credentials or a sender are missing.
var ErrNotConfigured = errors.New("sms client not configured")

// messageCreator is the slice of the Twilio API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type Client struct {
	api                 messageCreator
	fromNumber          string
	messagingServiceSID string
}

// NewClient builds a Twilio SMS sender. A messaging service SID takes
// precedence over the from number when both are set. With no credentials the
// client reports Configured() == false and Send fails.
func NewClient(accountSID, authToken, fromNumber, messagingServiceSID string) *Client {
	c := &Client{
		fromNumber:          fromNumber,
		messagingServiceSID: messagingServiceSID,
	}
	if accountSID != "" && authToken != "" {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		})
		c.api = rest.Api
	}
	return c
}

// Configured returns true if credentials and a sender are set.
func (c *Client) Configured() bool {
	return c.api != nil && (c.fromNumber != "" || c.messagingServiceSID != "")
}

// Send delivers a plain-text SMS. The Twilio SDK call is not context-aware,
// so ctx is only checked before dispatch.
func (c *Client) Send(ctx context.Context, to, body string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	if c.messagingServiceSID != "" {
		params.SetMessagingServiceSid(c.messagingServiceSID)
	} else {
		params.SetFrom(c.fromNumber)
	}
	params.SetBody(body)

	if _, err := c.api.CreateMessage(params); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}
