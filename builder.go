package authservice

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/MrEthical07/authservice/internal/audit"
	"github.com/MrEthical07/authservice/session"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Service]. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  session.Store

	verifier  CredentialVerifier
	clock     clock.Clock
	logger    *slog.Logger
	auditSink AuditSink

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the client used when Session.Backend is "redis".
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore injects a session store, overriding Session.Backend.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithVerifier(v CredentialVerifier) *Builder {
	b.verifier = v
	return b
}

// WithClock replaces the wall clock used for session timestamps and the
// sweeper ticker.
func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready service. Call
// [Service.Start] to enable background expiry.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.verifier == nil {
		return nil, errors.New("credential verifier required")
	}

	clk := b.clock
	if clk == nil {
		clk = clock.New()
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// -------- SESSION STORE --------
	store := b.store
	if store == nil {
		opts := session.Options{
			Clock:     clk,
			CacheSize: cfg.Authz.CacheSize,
		}
		switch strings.ToLower(cfg.Session.Backend) {
		case BackendRedis:
			if b.redis == nil {
				return nil, errors.New("redis backend requires a redis client")
			}
			store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, opts)
		default:
			store = session.NewMemoryStore(opts)
		}
	}

	svc := &Service{
		config:   cfg,
		store:    store,
		verifier: b.verifier,
		clock:    clk,
		logger:   logger,
		metrics:  NewMetrics(cfg.Metrics),
	}

	svc.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	if cfg.Session.EnableSweeper {
		svc.sweeper = session.NewSweeper(store, session.SweeperConfig{
			Interval: cfg.Session.SweepInterval,
			Clock:    clk,
			Logger:   logger,
			OnSweep:  svc.onSweep,
		})
	}

	b.built = true

	return svc, nil
}
