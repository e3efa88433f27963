package main

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "AUTHSERVICE_LOADTEST"

type loadConfig struct {
	Users        int           `mapstructure:"users" validate:"min=1,max=1000000"`
	Concurrency  int           `mapstructure:"concurrency" validate:"min=1,max=4096"`
	Ops          int           `mapstructure:"ops" validate:"min=1"`
	Realm        string        `mapstructure:"realm" validate:"oneof=memory token"`
	Backend      string        `mapstructure:"backend" validate:"oneof=memory redis"`
	RedisAddr    string        `mapstructure:"redis-addr" validate:"omitempty,hostname_port"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"min=1s"`
	HashMemoryKB uint32        `mapstructure:"hash-memory-kb" validate:"min=8192"`
	MetricsAddr  string        `mapstructure:"metrics-addr" validate:"omitempty,hostname_port"`
	LogLevel     string        `mapstructure:"log-level" validate:"oneof=debug info warn error"`
}

func registerFlags(fs *pflag.FlagSet) {
	fs.Int("users", 1000, "number of users in the realm, one session each")
	fs.Int("concurrency", 64, "number of concurrent workers")
	fs.Int("ops", 100000, "operations per check and refresh phase")
	fs.String("realm", "memory", "credential verifier: memory (password) or token (signed JWT)")
	fs.String("backend", "memory", "session backend: memory or redis")
	fs.String("redis-addr", "", "redis address; empty starts an embedded miniredis")
	fs.Duration("timeout", 30*time.Minute, "session timeout requested at login")
	fs.Uint32("hash-memory-kb", 8*1024, "argon2 memory cost for the seeded password hash")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
}

// loadConfiguration layers flags over environment over the optional config
// file, then validates the result.
func loadConfiguration(fs *pflag.FlagSet, file string) (loadConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return loadConfig{}, oops.Code("CONFIG_INVALID").Wrapf(err, "bind flags")
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return loadConfig{}, oops.Code("CONFIG_INVALID").With("file", file).Wrapf(err, "read config file")
		}
	}

	var cfg loadConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return loadConfig{}, oops.Code("CONFIG_INVALID").Wrapf(err, "decode config")
	}
	if err := cfg.validate(); err != nil {
		return loadConfig{}, err
	}
	return cfg, nil
}

func (c loadConfig) validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return oops.Code("CONFIG_INVALID").
			With("field", first.Field(), "rule", first.Tag()).
			Errorf("invalid %s: failed %q", first.Field(), first.Tag())
	}
	return oops.Code("CONFIG_INVALID").Wrap(err)
}

func (c loadConfig) logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn
	}
	return level
}
