package session

import (
	"time"

	"github.com/MrEthical07/authservice/authz"
)

// Session is a live login context. Values returned by a [Store] are
// snapshots and must be treated as read-only; stores replace records instead
// of mutating them.
type Session struct {
	ID        string
	Principal Principal

	CreatedAt       time.Time
	LastRefreshedAt time.Time
	Timeout         time.Duration

	// Authz is the session's authorization cache. It lives and dies with the
	// session.
	Authz *authz.Cache
}

// Live reports whether the session is within its timeout window at now.
func (s *Session) Live(now time.Time) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.LastRefreshedAt) < s.Timeout
}

// ExpiresAt returns the instant the session stops being live unless refreshed.
func (s *Session) ExpiresAt() time.Time {
	return s.LastRefreshedAt.Add(s.Timeout)
}

func (s *Session) withRefresh(now time.Time) *Session {
	next := *s
	if now.After(next.LastRefreshedAt) {
		next.LastRefreshedAt = now
	}
	return &next
}
