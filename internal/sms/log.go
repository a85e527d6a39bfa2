package sms

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/uniuri"
)

// LogName is the registry name of the log provider.
const LogName = "log"

// Log writes messages to the application log instead of sending them.
type Log struct{}

// NewLog returns the log provider.
func NewLog() *Log {
	return &Log{}
}

// Name implements Provider.
func (*Log) Name() string { return LogName }

// Send implements Provider.
func (*Log) Send(_ context.Context, to, message string) (*Result, error) {
	if err := checkMessage(to, message); err != nil {
		return nil, err
	}

	id := uniuri.New()

	log.Info().
		Str("component", "sms.log").
		Str("to", to).
		Str("message_id", id).
		Str("message", message).
		Msg("sms not sent, logged only")

	return &Result{Provider: LogName, MessageID: id, Status: "logged"}, nil
}
