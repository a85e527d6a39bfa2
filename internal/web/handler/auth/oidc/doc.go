// Package oidc provides the Google sign-in endpoints.
//
// Routes:
//   - GET /auth/oidc/login redirects to Google with a fresh state token.
//   - GET /auth/oidc/callback checks the state, exchanges the code and opens a session.
//
// The provider itself lives in auth.OIDCManager and follows the auth settings group, so switching
// Google sign-in on or off on the admin settings page takes effect without restart.
package oidc
