package authservice

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authservice/authz"
	"github.com/MrEthical07/authservice/session"
)

// Config holds every tunable of a [Service].
type Config struct {
	Session SessionConfig
	Authz   AuthzConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// Backend names accepted by SessionConfig.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// SessionConfig controls session lifetime and storage.
type SessionConfig struct {
	// DefaultTimeout applies when Login is called without a timeout.
	DefaultTimeout time.Duration
	// MaxTimeout caps caller-supplied timeouts. Zero disables the cap.
	MaxTimeout time.Duration

	EnableSweeper bool
	SweepInterval time.Duration

	Backend     string
	RedisPrefix string
}

// AuthzConfig bounds the per-session authorization cache.
type AuthzConfig struct {
	CacheSize int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			DefaultTimeout: 30 * time.Minute,
			MaxTimeout:     24 * time.Hour,
			EnableSweeper:  true,
			SweepInterval:  session.DefaultSweepInterval,
			Backend:        BackendMemory,
			RedisPrefix:    session.DefaultRedisPrefix,
		},
		Authz: AuthzConfig{
			CacheSize: authz.DefaultSize,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Session.DefaultTimeout <= 0 {
		return errors.New("Session DefaultTimeout must be > 0")
	}
	if c.Session.MaxTimeout < 0 {
		return errors.New("Session MaxTimeout must be >= 0")
	}
	if c.Session.MaxTimeout > 0 && c.Session.DefaultTimeout > c.Session.MaxTimeout {
		return errors.New("Session DefaultTimeout must not exceed MaxTimeout")
	}
	if c.Session.EnableSweeper && c.Session.SweepInterval != 0 && c.Session.SweepInterval < session.MinSweepInterval {
		return errors.New("Session SweepInterval must be >= 1s")
	}

	switch strings.ToLower(c.Session.Backend) {
	case "", BackendMemory:
	case BackendRedis:
		if c.Session.RedisPrefix == "" {
			return errors.New("Session RedisPrefix must be set for the redis backend")
		}
		if !session.ValidRedisPrefix(c.Session.RedisPrefix) {
			return errors.New("Session RedisPrefix must not contain ':' or glob characters")
		}
	default:
		return errors.New("Session Backend must be memory or redis")
	}

	if c.Authz.CacheSize < 0 {
		return errors.New("Authz CacheSize must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

// effectiveTimeout applies the default and the cap to a requested timeout.
func (c *Config) effectiveTimeout(requested time.Duration) time.Duration {
	if requested <= 0 {
		requested = c.Session.DefaultTimeout
	}
	if c.Session.MaxTimeout > 0 && requested > c.Session.MaxTimeout {
		requested = c.Session.MaxTimeout
	}
	return requested
}
