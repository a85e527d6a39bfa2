// Package session keeps the server side state of browser sessions.
package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/cardforge/cardforge/internal/uniuri"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// ErrNoSession is returned when the session id is unknown or expired.
var ErrNoSession = errors.New("session not found")

// Store is the global session store instance.
var Store *session.Store

// Data represents the session data structure.
type Data struct {
	UserID uint64   `json:"userId"`
	Flash  []string `json:"flash,omitempty"`
}

// Write writes the session data for the given session ID with an expiration duration.
func (s *Data) Write(sessionID string, exp time.Duration) error {
	out, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return Store.Storage.Set(sessionID, out, exp)
}

// Read reads the session data for the given session ID.
func (s *Data) Read(sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}

	byteData, err := Store.Storage.Get(sessionID)
	if err != nil {
		return err
	}

	if len(byteData) == 0 {
		return ErrNoSession
	}

	return json.Unmarshal(byteData, s)
}

// Delete removes the session.
func Delete(sessionID string) error {
	return Store.Storage.Delete(sessionID)
}

// AddFlash queues a message shown on the next page of the session.
func AddFlash(sessionID, message string, exp time.Duration) error {
	data := new(Data)
	if err := data.Read(sessionID); err != nil {
		return err
	}

	data.Flash = append(data.Flash, message)

	return data.Write(sessionID, exp)
}

// PopFlash returns and clears the queued messages.
func PopFlash(sessionID string, exp time.Duration) ([]string, error) {
	data := new(Data)
	if err := data.Read(sessionID); err != nil {
		return nil, err
	}

	if len(data.Flash) == 0 {
		return nil, nil
	}

	messages := data.Flash
	data.Flash = nil

	return messages, data.Write(sessionID, exp)
}

// Init initializes the session store with the provided storage backend.
func Init(storage fiber.Storage) {
	if storage == nil {
		panic("storage is nil")
	}

	Store = session.New(session.Config{
		Storage: storage,
	})
}

// GenerateSessionID generates a new secure random session ID.
func GenerateSessionID() string {
	return uniuri.NewLen(43)
}

// Cookie returns the session cookie for sessionID. A negative maxAge clears it.
func Cookie(sessionID string, maxAge time.Duration, secure bool) *fiber.Cookie {
	age := int(maxAge.Seconds())
	if maxAge < 0 {
		age = -1
	}

	return &fiber.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		MaxAge:   age,
		Secure:   secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}
