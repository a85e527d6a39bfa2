// Package stdlogger adapts the global zerolog logger to printf style logger interfaces,
// such as the one expected by resty clients.
package stdlogger

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger forwards printf style calls to zerolog.
type Logger struct {
	component string
}

// New returns a Logger writing through the global zerolog logger.
func New() *Logger {
	return &Logger{}
}

// NewComponent returns a Logger that tags every line with a component field.
func NewComponent(component string) *Logger {
	return &Logger{component: component}
}

// Debugf logs on debug level.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.with(log.Debug()).Msgf(format, v...)
}

// Infof logs on info level.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.with(log.Info()).Msgf(format, v...)
}

// Warnf logs on warn level.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.with(log.Warn()).Msgf(format, v...)
}

// Warningf is an alias of Warnf.
func (l *Logger) Warningf(format string, v ...interface{}) {
	l.Warnf(format, v...)
}

// Errorf logs on error level.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.with(log.Error()).Msgf(format, v...)
}

func (l *Logger) with(e *zerolog.Event) *zerolog.Event {
	if l.component != "" {
		e = e.Str("component", l.component)
	}

	return e
}
