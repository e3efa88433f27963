package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	registerFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := loadConfiguration(newFlagSet(t), "")
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Users)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "memory", cfg.Realm)
	assert.Equal(t, 30*time.Minute, cfg.Timeout)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("AUTHSERVICE_LOADTEST_USERS", "12")
	t.Setenv("AUTHSERVICE_LOADTEST_CONCURRENCY", "3")

	cfg, err := loadConfiguration(newFlagSet(t, "--concurrency=5"), "")
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Users)
	assert.Equal(t, 5, cfg.Concurrency)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "load.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users: 7\nbackend: redis\ntimeout: 90s\n"), 0o600))

	cfg, err := loadConfiguration(newFlagSet(t), path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Users)
	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
}

func TestInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown backend", args: []string{"--backend=etcd"}},
		{name: "unknown realm", args: []string{"--realm=ldap"}},
		{name: "zero users", args: []string{"--users=0"}},
		{name: "zero concurrency", args: []string{"--concurrency=0"}},
		{name: "short timeout", args: []string{"--timeout=10ms"}},
		{name: "weak hash", args: []string{"--hash-memory-kb=16"}},
		{name: "bad redis address", args: []string{"--redis-addr=nohost"}},
		{name: "bad log level", args: []string{"--log-level=loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfiguration(newFlagSet(t, tt.args...), "")
			require.Error(t, err)

			oopsErr, ok := oops.AsOops(err)
			require.True(t, ok)
			assert.Equal(t, "CONFIG_INVALID", oopsErr.Code())
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := loadConfiguration(newFlagSet(t), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
