package session

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authservice/authz"
	"github.com/benbjohnson/clock"
	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStore is an in-process [Store].
//
// Records are copy-on-write: a refresh installs a new *Session through an
// atomic per-key compute, so readers always see a complete snapshot.
type MemoryStore struct {
	sessions  *xsync.MapOf[string, *Session]
	clock     clock.Clock
	cacheSize int
	newID     func() (string, error)
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore(opts Options) *MemoryStore {
	opts = opts.withDefaults()
	return &MemoryStore{
		sessions:  xsync.NewMapOf[string, *Session](),
		clock:     opts.Clock,
		cacheSize: opts.CacheSize,
		newID:     opts.NewID,
	}
}

func (s *MemoryStore) Create(ctx context.Context, p Principal, timeout time.Duration) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, ErrInvalidTimeout
	}

	now := s.clock.Now()
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
		}

		sess := &Session{
			ID:              id,
			Principal:       p,
			CreatedAt:       now,
			LastRefreshedAt: now,
			Timeout:         timeout,
			Authz:           authz.New(s.cacheSize),
		}
		if _, loaded := s.sessions.LoadOrStore(id, sess); !loaded {
			return sess, nil
		}
	}

	return nil, fmt.Errorf("%w: identifier collision", ErrEntropyUnavailable)
}

func (s *MemoryStore) Refresh(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var refreshed, expired bool
	s.sessions.Compute(id, func(old *Session, loaded bool) (*Session, bool) {
		if !loaded {
			return nil, true
		}
		now := s.clock.Now()
		if !old.Live(now) {
			expired = true
			return old, false
		}
		refreshed = true
		return old.withRefresh(now), false
	})

	if expired {
		s.purgeExpired(id)
	}
	if !refreshed {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, ok := s.sessions.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	if !sess.Live(s.clock.Now()) {
		s.purgeExpired(id)
		return nil, ErrNotFound
	}
	return sess, nil
}

// Destroy removes the session. A session that had already expired reports
// [ErrNotFound] even though its record is removed.
func (s *MemoryStore) Destroy(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sess, loaded := s.sessions.LoadAndDelete(id)
	if !loaded {
		return ErrNotFound
	}
	sess.Authz.Purge()
	if !sess.Live(s.clock.Now()) {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	var candidates []string
	s.sessions.Range(func(id string, sess *Session) bool {
		if !sess.Live(now) {
			candidates = append(candidates, id)
		}
		return ctx.Err() == nil
	})

	removed := 0
	for _, id := range candidates {
		if s.purgeExpired(id) {
			removed++
		}
	}
	return removed, ctx.Err()
}

func (s *MemoryStore) Clear(ctx context.Context) (int, error) {
	var ids []string
	s.sessions.Range(func(id string, _ *Session) bool {
		ids = append(ids, id)
		return true
	})

	removed := 0
	for _, id := range ids {
		if sess, ok := s.sessions.LoadAndDelete(id); ok {
			sess.Authz.Purge()
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	return s.sessions.Size(), nil
}

// purgeExpired is the only expiry removal path. It re-checks liveness under
// the per-key compute so a session refreshed in the meantime survives.
func (s *MemoryStore) purgeExpired(id string) bool {
	var removed *Session
	s.sessions.Compute(id, func(old *Session, loaded bool) (*Session, bool) {
		if !loaded {
			return nil, true
		}
		if old.Live(s.clock.Now()) {
			return old, false
		}
		removed = old
		return nil, true
	})
	if removed == nil {
		return false
	}
	removed.Authz.Purge()
	return true
}

var _ Store = (*MemoryStore)(nil)
