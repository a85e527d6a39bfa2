// Package otp sends and checks phone verification codes for the signed in user.
package otp

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/otp"
	"github.com/cardforge/cardforge/internal/web/handler"
)

// Path groups the otp endpoints.
const Path = handler.APIPath + "/otp"

// ErrNoPhone is returned when neither the request nor the profile has a phone number.
var ErrNoPhone = errors.New("no phone number to verify")

// Request selects phone and purpose. The phone defaults to the one of the profile.
type Request struct {
	Phone   string `json:"phone"   validate:"omitempty,e164"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=verification login password_reset"`
}

// Verification is the code check form.
type Verification struct {
	Request
	Code string `json:"code" validate:"required,numeric,max=10"`
}

// Service is the otp handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the otp handler.
var Handler = Service{}

// Init registers the routes.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() || deps.OTP == nil || deps.Local == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Use(auth.RequireUser())
		router.Post("/send", s.Send)
		router.Post("/resend", s.Resend)
		router.Post("/verify", s.Verify)
		router.Get("/status", s.Status)
	})

	return nil
}

// Send issues a code.
func (s *Service) Send(c *fiber.Ctx) error {
	return s.send(c, false)
}

// Resend issues a new code once the cooldown is over.
func (s *Service) Resend(c *fiber.Ctx) error {
	return s.send(c, true)
}

func (s *Service) send(c *fiber.Ctx, again bool) error {
	in := new(Request)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	phone, purpose, err := s.target(c, in)
	if err != nil {
		return err
	}

	opts := []otp.Option{otp.WithLocale(s.locale(c))}

	var res *otp.Result
	if again {
		res, err = s.deps.OTP.Resend(c.UserContext(), phone, purpose, opts...)
	} else {
		res, err = s.deps.OTP.Send(c.UserContext(), phone, purpose, opts...)
	}

	if err != nil {
		return err
	}

	return c.JSON(res)
}

// Verify checks a code. A matching verification code marks the phone of the profile verified.
func (s *Service) Verify(c *fiber.Ctx) error {
	in := new(Verification)
	if err := handler.Bind(c, s.deps.Validator, in); err != nil {
		return err
	}

	phone, purpose, err := s.target(c, &in.Request)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	if err := s.deps.OTP.Verify(ctx, phone, in.Code, purpose); err != nil {
		remaining, rerr := s.deps.OTP.GetRemainingAttempts(ctx, phone, purpose)
		if rerr != nil || !errors.Is(err, otp.ErrCodeMismatch) {
			return err
		}

		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message":           err.Error(),
			"remainingAttempts": remaining,
		})
	}

	user := handler.User(c)
	if purpose == otp.PurposeVerification && phone == user.Phone {
		if err := s.deps.Local.MarkPhoneVerified(user.ID, phone, time.Now().UTC()); err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{"verified": true})
}

// Status reports whether a code is pending and when the next one can be sent.
func (s *Service) Status(c *fiber.Ctx) error {
	in := &Request{Phone: c.Query("phone"), Purpose: c.Query("purpose")}
	if err := s.deps.Validator.StructCtx(c.UserContext(), in); err != nil {
		return err
	}

	phone, purpose, err := s.target(c, in)
	if err != nil {
		return err
	}

	ctx := c.UserContext()

	pending, err := s.deps.OTP.HasValidOtp(ctx, phone, purpose)
	if err != nil {
		return err
	}

	cooldown, err := s.deps.OTP.GetCooldownSeconds(ctx, phone, purpose)
	if err != nil {
		return err
	}

	remaining, err := s.deps.OTP.GetRemainingAttempts(ctx, phone, purpose)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"pending":           pending,
		"cooldownSeconds":   cooldown,
		"remainingAttempts": remaining,
	})
}

func (s *Service) target(c *fiber.Ctx, in *Request) (phone, purpose string, err error) {
	phone = in.Phone
	if phone == "" {
		phone = handler.User(c).Phone
	}

	if phone == "" {
		return "", "", fiber.NewError(fiber.StatusUnprocessableEntity, ErrNoPhone.Error())
	}

	purpose = in.Purpose
	if purpose == "" {
		purpose = otp.PurposeVerification
	}

	return phone, purpose, nil
}

// locale prefers the profile language over the Accept-Language header.
func (s *Service) locale(c *fiber.Ctx) string {
	if l := handler.User(c).Locale; l != "" {
		return l
	}

	return c.Get(fiber.HeaderAcceptLanguage)
}
