// Package middleware adapts the auth service to net/http.
//
// Guards read the session id from an "Authorization: Session <id>" header or
// the [CookieName] cookie, resolve it and its requirement with a single
// Service.Authorize call, and attach the principal to the request context on
// success:
//
//   - [RequireSession] admits any live session.
//   - [RequireRoles] requires every listed role.
//   - [RequirePermissions] requires every listed permission.
//
// Guards never refresh the session. Clients that want a sliding window call
// RefreshLoginSession themselves.
package middleware
