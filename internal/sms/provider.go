// Package sms delivers text messages through pluggable providers.
package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cardforge/cardforge/internal/logger/adapter/stdlogger"
)

var (
	// ErrUnknownProvider is returned when no provider is registered under a name.
	ErrUnknownProvider = errors.New("unknown sms provider")
	// ErrEmptyRecipient is returned for an empty phone number.
	ErrEmptyRecipient = errors.New("sms recipient is empty")
	// ErrEmptyMessage is returned for an empty message body.
	ErrEmptyMessage = errors.New("sms message is empty")
)

// Provider sends a single text message.
type Provider interface {
	Name() string
	Send(ctx context.Context, to, message string) (*Result, error)
}

// Result describes an accepted message.
type Result struct {
	Provider  string
	MessageID string
	Status    string
}

// DeliveryError is returned when a provider rejected a message.
type DeliveryError struct {
	Provider   string
	StatusCode int
	Reason     string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("sms provider %s rejected message (status %d): %s", e.Provider, e.StatusCode, e.Reason)
}

func checkMessage(to, message string) error {
	if strings.TrimSpace(to) == "" {
		return ErrEmptyRecipient
	}

	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}

	return nil
}

func newClient(name, baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetLogger(stdlogger.NewComponent("sms."+name))
}
