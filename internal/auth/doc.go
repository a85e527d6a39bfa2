// Package auth provides authentication and authorization functionality for the application.
//
// Users authenticate in one of three ways:
//   - Local username/password with Argon2id hashing (LocalProvider), leading to a session cookie.
//   - Google sign-in over OpenID Connect (OIDCProvider). The provider is built from the auth
//     settings group by OIDCManager and rebuilt whenever that group is saved.
//   - HS256 API tokens (TokenService) sent as "Authorization: Bearer <token>".
//
// Middleware resolves the principal of every request from either credential and puts the
// *models.User into fiber.Locals under LocalsUser.
//
// # Authorization
//
// Every user has one role, roles carry permissions. The admin pages are guarded with
// RequirePermission, end-user resources by the policies of package policy.
//
//	authService := auth.NewService(db)
//
//	app.Get("/admin/users",
//	    auth.RequirePermission(authService, auth.PermAdminUsers),
//	    handler,
//	)
package auth
