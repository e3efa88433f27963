// Package authservice manages login sessions and answers role and permission
// checks against them.
//
// A [Service] is assembled with a [Builder]: a [CredentialVerifier] resolves
// credentials to a [Principal] at login, a session store (in memory or Redis)
// owns the session records, and each session carries its own bounded
// authorization cache. Every operation has a synchronous, context-first form
// and an Async form that delivers a single [Result] on a channel.
//
// # Sessions
//
// Login returns an unguessable session identifier. A session stays live while
// less than its timeout has elapsed since it was created or last refreshed
// with RefreshLoginSession. Checks do not refresh. Once a session is no longer
// live every operation on it reports [ErrSessionNotFound], exactly as for
// a session that never existed or was logged out.
//
// Roles and permissions are resolved once at login. Changes made in the
// credential source afterwards are not observed until the principal logs in
// again.
//
// # Errors
//
// [ErrInvalidCredentials] and [ErrSessionNotFound] are ordinary outcomes.
// Everything satisfying errors.Is(err, [ErrFatal]) is not: entropy failure,
// store failure and use after [Service.Stop].
//
// # What this package must NOT do
//
//   - Retry store operations internally.
//   - Refresh a session implicitly on access.
//   - Import realm or transport packages (they import this one).
package authservice
