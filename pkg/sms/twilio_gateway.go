package sms

import (
	"fmt"

	twilio "github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Gateway sends SMS messages
type Gateway interface {
	Send(to, body string) error
	GetName() string
}

// TwilioGateway implements SMS sending via the Twilio Messaging API
type TwilioGateway struct {
	client     *twilio.RestClient
	fromNumber string
}

// TwilioConfig holds configuration for the Twilio gateway
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// NewTwilioGateway creates a new Twilio SMS gateway client
func NewTwilioGateway(config TwilioConfig) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})

	return &TwilioGateway{
		client:     client,
		fromNumber: config.FromNumber,
	}
}

// Send delivers one SMS to an E.164 phone number
func (t *TwilioGateway) Send(to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(body)

	_, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	return nil
}

// GetName returns the name of this SMS gateway
func (t *TwilioGateway) GetName() string {
	return "Twilio Messaging Gateway"
}
