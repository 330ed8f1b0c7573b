// Package auth implements librarian (admin) authentication: bcrypt
// password storage, session management backed by the application's
// SQLite database, API tokens for non-browser clients, CSRF protection,
// and login rate limiting.
//
// The registration policy is single-tenant: at most one active admin
// exists at a time. Setup is blocked while an active admin exists and
// re-opens when that admin is deactivated.
//
// The core stores do not depend on this package; they only require that
// the caller was authorized before invoking them. The HTTP layer applies
// the middleware from this package to enforce that precondition.
package auth
