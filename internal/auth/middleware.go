package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/web/session"
)

const (
	// LocalsUser is the fiber.Locals key of the signed in *models.User.
	LocalsUser = "CurrentUser"
	// LocalsUserID is the fiber.Locals key of the signed in user id.
	LocalsUserID = "UserID"
	// LocalsPermissions is the fiber.Locals key of the permission names of the signed in user.
	LocalsPermissions = "permissions"

	bearerPrefix = "Bearer "
)

// Middleware resolves the principal of a request from a Bearer API token or the session cookie
// and stores it in fiber.Locals. Requests without credentials pass through anonymously.
// tokens may be nil when API tokens are not configured.
func Middleware(authService *Service, tokens *TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var userID uint64

		if header := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(header, bearerPrefix) {
			if tokens == nil {
				return fiber.NewError(fiber.StatusUnauthorized, ErrTokensDisabled.Error())
			}

			id, err := tokens.Verify(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				return fiber.NewError(fiber.StatusUnauthorized, err.Error())
			}

			userID = id
		} else if sessionID := c.Cookies(session.CookieName); sessionID != "" {
			sessionData := new(session.Data)
			if err := sessionData.Read(sessionID); err == nil {
				userID = sessionData.UserID
			}
		}

		if userID == 0 {
			return c.Next()
		}

		user, err := authService.LoadUser(userID)

		switch {
		case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrUserAccountDisabled):
			log.Warn().Err(err).Uint64("user_id", userID).Msg("ignoring credentials of unusable account")
			return c.Next()
		case err != nil:
			return err
		}

		c.Locals(LocalsUser, user)
		c.Locals(LocalsUserID, user.ID)

		return c.Next()
	}
}

// CurrentUser returns the signed in user or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(LocalsUser).(*models.User)
	return user
}

// RequireUser rejects anonymous requests with 401.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) == nil {
			return fiber.ErrUnauthorized
		}

		return c.Next()
	}
}

// RequirePermission creates Fiber middleware that requires a specific permission.
func RequirePermission(authService *Service, permission string) fiber.Handler {
	return RequireAnyPermission(authService, permission)
}

// RequireAnyPermission creates Fiber middleware that requires at least one of the given permissions.
func RequireAnyPermission(authService *Service, permissions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return fiber.ErrUnauthorized
		}

		hasPermission, err := authService.HasAnyPermission(user.ID, permissions)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Strs("permissions", permissions).
				Msg("Failed to check permissions")

			return err
		}

		if !hasPermission {
			log.Warn().Uint64("user_id", user.ID).Strs("permissions", permissions).
				Msg("User lacks required permission")

			return fiber.NewError(fiber.StatusForbidden, "You don't have permission to access this resource")
		}

		return c.Next()
	}
}

// HasPermissionInContext checks if the current user in the Fiber context has a permission.
func HasPermissionInContext(c *fiber.Ctx, authService *Service, permission string) bool {
	user := CurrentUser(c)
	if user == nil {
		return false
	}

	hasPermission, err := authService.HasPermission(user.ID, permission)
	if err != nil {
		return false
	}

	return hasPermission
}

// AddPermissionsToLocals is a Fiber middleware that adds user permissions to fiber.Locals.
func AddPermissionsToLocals(authService *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return c.Next()
		}

		permissions, err := authService.GetUserPermissions(user.ID)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Msg("Failed to get user permissions")
			return c.Next()
		}

		c.Locals(LocalsPermissions, permissions)

		return c.Next()
	}
}
