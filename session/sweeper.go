package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// DefaultSweepInterval is used when SweeperConfig.Interval is zero.
	DefaultSweepInterval = time.Minute
	// MinSweepInterval is the shortest accepted interval.
	MinSweepInterval = time.Second
)

// SweeperConfig configures a [Sweeper].
type SweeperConfig struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
	// OnSweep, if set, is called after every pass.
	OnSweep func(removed int, err error)
}

// Sweeper periodically removes expired sessions from a store.
//
// Sweeping only reclaims memory. Expired sessions are already invisible to
// every store operation.
type Sweeper struct {
	store    Store
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	onSweep  func(int, error)

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSweeper creates a stopped sweeper for store.
func NewSweeper(store Store, cfg SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	if interval < MinSweepInterval {
		interval = MinSweepInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sweeper{
		store:    store,
		interval: interval,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		onSweep:  cfg.OnSweep,
		done:     make(chan struct{}),
	}
}

// Interval returns the effective sweep interval.
func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

// Start launches the sweep loop. It runs until Stop is called or ctx is
// cancelled. Calling Start more than once has no effect.
func (s *Sweeper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ticker := s.clock.Ticker(s.interval)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					s.sweep(ctx)
				case <-s.done:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

// Stop terminates the sweep loop and waits for an in-flight pass to finish.
// It is safe to call more than once, and before Start.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.store.Sweep(ctx)
	if err != nil {
		s.logger.Warn("session sweep failed", slog.Any("error", err), slog.Int("removed", removed))
	} else if removed > 0 {
		s.logger.Debug("session sweep", slog.Int("removed", removed))
	}
	if s.onSweep != nil {
		s.onSweep(removed, err)
	}
}
