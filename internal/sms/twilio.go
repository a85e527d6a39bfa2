package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cardforge/cardforge/internal/config"
)

// TwilioName is the registry name of the Twilio provider.
const TwilioName = "twilio"

const twilioBaseURL = "https://api.twilio.com"

// Twilio sends messages with the Twilio Messages API.
type Twilio struct {
	client     *resty.Client
	accountSID string
	from       string
}

type twilioMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewTwilio returns a Twilio provider.
func NewTwilio(cfg config.Twilio, timeout time.Duration) *Twilio {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twilioBaseURL
	}

	return &Twilio{
		client:     newClient(TwilioName, baseURL, timeout).SetBasicAuth(cfg.AccountSID, cfg.AuthToken),
		accountSID: cfg.AccountSID,
		from:       cfg.From,
	}
}

// Name implements Provider.
func (t *Twilio) Name() string { return TwilioName }

// Send implements Provider.
func (t *Twilio) Send(ctx context.Context, to, message string) (*Result, error) {
	if err := checkMessage(to, message); err != nil {
		return nil, err
	}

	var (
		msg    twilioMessage
		apiErr twilioError
	)

	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": t.from,
			"Body": message,
		}).
		SetResult(&msg).
		SetError(&apiErr).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", t.accountSID))
	if err != nil {
		return nil, fmt.Errorf("twilio request: %w", err)
	}

	if resp.IsError() {
		return nil, &DeliveryError{Provider: TwilioName, StatusCode: resp.StatusCode(), Reason: apiErr.Message}
	}

	if msg.Status == "failed" || msg.Status == "undelivered" {
		return nil, &DeliveryError{Provider: TwilioName, StatusCode: resp.StatusCode(), Reason: msg.ErrorMessage}
	}

	return &Result{Provider: TwilioName, MessageID: msg.SID, Status: msg.Status}, nil
}
