package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/auth"
	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/db/controller/card"
	"github.com/cardforge/cardforge/internal/db/controller/language"
	"github.com/cardforge/cardforge/internal/db/controller/plan"
	"github.com/cardforge/cardforge/internal/db/controller/theme"
	"github.com/cardforge/cardforge/internal/db/controller/translation"
	"github.com/cardforge/cardforge/internal/otp"
	"github.com/cardforge/cardforge/internal/payment"
	"github.com/cardforge/cardforge/internal/policy"
	"github.com/cardforge/cardforge/internal/settings"
	"github.com/cardforge/cardforge/internal/subscription"
	"github.com/cardforge/cardforge/internal/web/session"
)

const genericErrorMessage = "Something went wrong, please try again later."

// sentinel errors answered with their own message and a fixed status
var errorStatus = []struct { //nolint:gochecknoglobals
	status int
	errs   []error
}{
	{fiber.StatusNotFound, []error{
		gorm.ErrRecordNotFound, card.ErrCardNotFound, theme.ErrThemeNotFound, language.ErrLanguageNotFound,
		plan.ErrPlanNotFound, translation.ErrEntryNotFound, payment.ErrPaymentNotFound, auth.ErrUserNotFound,
		subscription.ErrPlanNotFound, subscription.ErrNoSubscription, settings.ErrUnknownGroup,
	}},
	{fiber.StatusBadRequest, []error{payment.ErrMissingReference}},
	{fiber.StatusForbidden, []error{policy.ErrForbidden, auth.ErrOIDCDisabled}},
	{fiber.StatusUnauthorized, []error{auth.ErrInvalidToken, auth.ErrExpiredToken}},
	{fiber.StatusConflict, []error{
		language.ErrLanguageExists, language.ErrDefaultLanguageLocked, theme.ErrSystemThemeLocked,
		theme.ErrDefaultThemeLocked, plan.ErrPlanInUse, plan.ErrSlugTaken, card.ErrSlugTaken,
		auth.ErrUserNameOrEmailExists, payment.ErrInvalidTransition, payment.ErrNotRefundable,
	}},
	{fiber.StatusUnprocessableEntity, []error{
		language.ErrInvalidCode, language.ErrInvalidDirection, plan.ErrEmptySlug, plan.ErrNegativePrice,
		payment.ErrInvalidAmount, payment.ErrRefundExceedsCaptured, payment.ErrAmountMismatch, payment.ErrReferenceMismatch,
		otp.ErrPhoneEmpty, otp.ErrPurposeEmpty, otp.ErrNoActiveCode, otp.ErrCodeExpired,
		otp.ErrTooManyAttempts, otp.ErrCodeMismatch, auth.ErrInvalidOldPassword,
	}},
	{fiber.StatusServiceUnavailable, []error{payment.ErrGatewayUnavailable, otp.ErrDeliveryFailed}},
}

// ErrorHandler maps errors returned by handlers to HTTP answers.
func ErrorHandler(cfg *config.Config) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			verrs    validator.ValidationErrors
			limitErr *subscription.LimitExceededError
			coolErr  *otp.CooldownError
			gwErr    *payment.GatewayError
			fiberErr *fiber.Error
		)

		switch {
		case errors.As(err, &verrs):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"message": "The given data was invalid.",
				"errors":  validationMessages(verrs),
			})
		case errors.As(err, &limitErr):
			return limitExceeded(c, cfg, limitErr)
		case errors.As(err, &coolErr):
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(coolErr.Seconds()))

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message":         err.Error(),
				"cooldownSeconds": coolErr.Seconds(),
			})
		case errors.As(err, &gwErr):
			log.Error().Err(err).Str("gateway", gwErr.Gateway).Str("op", gwErr.Op).Msg("payment gateway error")

			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": "The payment provider could not be reached."})
		case errors.As(err, &fiberErr):
			return c.Status(fiberErr.Code).JSON(fiber.Map{"message": fiberErr.Message})
		}

		for _, group := range errorStatus {
			for _, target := range group.errs {
				if errors.Is(err, target) {
					return c.Status(group.status).JSON(fiber.Map{"message": err.Error()})
				}
			}
		}

		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": genericErrorMessage})
	}
}

// limitExceeded answers JSON clients with 403, browsers get a flash message and go back.
func limitExceeded(c *fiber.Ctx, cfg *config.Config, err *subscription.LimitExceededError) error {
	if WantsJSON(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": err.Error(),
			"feature": err.Feature,
			"limit":   err.Limit,
		})
	}

	if sessionID := c.Cookies(session.CookieName); sessionID != "" {
		if ferr := session.AddFlash(sessionID, err.Error(), cfg.Webserver.Session.ExpiryTime); ferr != nil {
			log.Warn().Err(ferr).Msg("failed to store flash message")
		}
	}

	back := c.Get(fiber.HeaderReferer)
	if back == "" {
		back = RootPath
	}

	return c.Redirect(back, fiber.StatusSeeOther)
}

func validationMessages(verrs validator.ValidationErrors) map[string][]string {
	out := make(map[string][]string, len(verrs))

	for _, fe := range verrs {
		field := lowerFirst(fe.Field())

		var msg string

		switch fe.Tag() {
		case "required", "required_if":
			msg = "The " + field + " field is required."
		case "email":
			msg = "The " + field + " field must be a valid email address."
		case "url":
			msg = "The " + field + " field must be a valid URL."
		case "min", "gte":
			msg = "The " + field + " field must be at least " + fe.Param() + "."
		case "max", "lte":
			msg = "The " + field + " field may not be greater than " + fe.Param() + "."
		case "len":
			msg = "The " + field + " field must be " + fe.Param() + " characters."
		case "oneof":
			msg = "The " + field + " field must be one of: " + fe.Param() + "."
		default:
			msg = "The " + field + " field is invalid (" + fe.Tag() + ")."
		}

		out[field] = append(out[field], msg)
	}

	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}

	return strings.ToLower(s[:1]) + s[1:]
}
