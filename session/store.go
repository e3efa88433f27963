package session

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
)

var (
	// ErrNotFound is returned when a session is absent, destroyed or expired.
	// The three cases are deliberately indistinguishable.
	ErrNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps backing-store failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrEntropyUnavailable is returned when no session identifier could be generated.
	ErrEntropyUnavailable = errors.New("session id entropy unavailable")
	// ErrInvalidTimeout is returned when a session is created without a positive timeout.
	ErrInvalidTimeout = errors.New("session timeout must be positive")
	// ErrCorrupt is returned when a stored session record cannot be decoded.
	ErrCorrupt = errors.New("session record corrupt")
)

// maxIDAttempts bounds identifier regeneration on collision.
const maxIDAttempts = 3

// Store owns the mapping from session identifier to session state.
//
// Implementations must be safe for concurrent use and linearizable per key.
type Store interface {
	// Create stores a new session for p and returns it with its fresh identifier.
	Create(ctx context.Context, p Principal, timeout time.Duration) (*Session, error)
	// Refresh moves LastRefreshedAt to now for a live session.
	Refresh(ctx context.Context, id string) error
	// Get returns a live session.
	Get(ctx context.Context, id string) (*Session, error)
	// Destroy removes a session.
	Destroy(ctx context.Context, id string) error
	// Sweep removes every expired session and returns how many it removed.
	Sweep(ctx context.Context) (int, error)
	// Clear removes every session and returns how many it removed.
	Clear(ctx context.Context) (int, error)
	// Len returns the number of stored sessions, live or not yet purged.
	Len(ctx context.Context) (int, error)
}

// Options configures store construction.
type Options struct {
	// Clock supplies the current time. Defaults to the wall clock.
	Clock clock.Clock
	// CacheSize bounds each session's authorization cache.
	CacheSize int
	// NewID generates session identifiers. Defaults to 128 random bits.
	NewID func() (string, error)
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.NewID == nil {
		o.NewID = newSessionID
	}
	return o
}
