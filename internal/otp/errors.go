package otp

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrPhoneEmpty is returned for an empty phone number.
	ErrPhoneEmpty = errors.New("phone number is empty")
	// ErrPurposeEmpty is returned for an empty purpose.
	ErrPurposeEmpty = errors.New("otp purpose is empty")
	// ErrDeliveryFailed is returned when the code could not be handed to the sms provider.
	ErrDeliveryFailed = errors.New("otp delivery failed")
	// ErrNoActiveCode is returned when there is nothing to verify.
	ErrNoActiveCode = errors.New("no active otp code")
	// ErrCodeExpired is returned for a code past its expiry.
	ErrCodeExpired = errors.New("otp code expired")
	// ErrTooManyAttempts is returned once all attempts of a code are used up.
	ErrTooManyAttempts = errors.New("too many otp attempts")
	// ErrCodeMismatch is returned for a wrong code.
	ErrCodeMismatch = errors.New("otp code does not match")
)

// CooldownError is returned by Send while the previous code is in its cooldown window.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("otp cooldown active, retry in %d seconds", e.Seconds())
}

// Seconds returns the remaining cooldown rounded up, at least 1.
func (e *CooldownError) Seconds() int {
	return ceilSeconds(e.Remaining)
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}

	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}

	return s
}
