package auth

import "errors"

var (
	// ErrNoIDToken is returned when the OAuth2 token response doesn't contain an ID token.
	// This typically indicates a misconfigured OIDC provider or an incomplete authentication flow.
	ErrNoIDToken = errors.New("no id_token in token response")

	// ErrEmailNotVerified is returned when the identity provider did not verify the email address.
	ErrEmailNotVerified = errors.New("email address is not verified by the identity provider")

	// ErrInvalidOldPassword is returned when the provided old password does not match the user's current password.
	ErrInvalidOldPassword = errors.New("invalid old password")

	// ErrUserNameOrEmailExists is returned when attempting to create a user with a username or email that already exists.
	ErrUserNameOrEmailExists = errors.New("user with username or email already exists")

	// ErrUserAccountDisabled is returned when attempting to authenticate a disabled user account.
	ErrUserAccountDisabled = errors.New("user account is disabled")

	// ErrInvalidPassword is returned when the provided password is incorrect during authentication.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrUserNotFound is returned when a user cannot be found in the database.
	ErrUserNotFound = errors.New("user not found")

	// ErrRoleNotFound is returned when a seeded role is missing.
	ErrRoleNotFound = errors.New("role not found")

	// ErrInvalidToken is returned for API tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned for API tokens past their expiry.
	ErrExpiredToken = errors.New("token has expired")

	// ErrTokensDisabled is returned when no JWT secret is configured.
	ErrTokensDisabled = errors.New("api tokens are not configured")
)
