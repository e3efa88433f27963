// Package authz implements the per-session authorization cache.
//
// A [Cache] memoises single role and permission checks against the principal
// attached to one session. Conjunctions ([Cache.CheckRoles],
// [Cache.CheckPermissions]) are evaluated on every call from the per-name
// results and are never cached themselves.
//
// # Lifetime
//
// A cache has no lifetime of its own. It is created with its session and is
// discarded when the session is destroyed or expires. Principal data is
// resolved once at login, so a cached answer never goes stale within a session.
//
// # What this package must NOT do
//
//   - Import session or the root package (the session owns the cache).
//   - Call out to credential verifiers or any other I/O.
package authz
