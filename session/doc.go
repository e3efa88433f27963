// Package session owns login sessions: the [Principal] resolved at login, the
// [Session] record bound to an unguessable identifier, and the [Store]
// implementations that create, refresh, expire and destroy them.
//
// # Liveness
//
// A session is live while now - LastRefreshedAt < Timeout. Every read,
// refresh and destroy checks liveness first; a session that is no longer live
// is treated as absent and removed through a single purge path shared by lazy
// expiry and the background [Sweeper]. The purge only removes an entry that
// is still expired at removal time, so it can never undo a concurrent refresh.
//
// # Stores
//
//   - [MemoryStore] keeps copy-on-write records in a concurrent map with
//     per-key atomic compute.
//   - [RedisStore] keeps one hash per session and runs refresh and purge as
//     Lua scripts so each is atomic per key.
//
// # What this package must NOT do
//
//   - Import the root authservice package (no upward imports).
//   - Verify credentials or make authorization decisions beyond exposing the
//     session's [authz.Cache].
package session
