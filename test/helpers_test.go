//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/MrEthical07/authservice"
	"github.com/MrEthical07/authservice/password"
	"github.com/MrEthical07/authservice/realm/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var timCreds = authservice.Credentials{
	memory.KeyUsername: "tim",
	memory.KeyPassword: "sausages",
}

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) *redis.Client
}

// redisModes returns the set of Redis backends to test. miniredis is always
// available; a real server is added when REDIS_ADDR is set
// (e.g. "127.0.0.1:6379").
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) *redis.Client {
				t.Helper()
				mr := miniredis.RunT(t)
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		},
	}

	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) *redis.Client {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				if err := rdb.Ping(context.Background()).Err(); err != nil {
					t.Skipf("redis at %s unavailable: %v", addr, err)
				}
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		})
	}

	return modes
}

func testRealm(t *testing.T) *memory.Realm {
	t.Helper()
	hasher, err := password.New(password.Params{
		MemoryKB:    8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	realm, err := memory.NewBuilder(hasher).
		Role("developer", "do_actual_work").
		Role("morris_dancer", "dance").
		User("tim", "sausages", "developer", "morris_dancer").
		Build()
	if err != nil {
		t.Fatalf("realm: %v", err)
	}
	return realm
}

// newRedisService builds a service on rdb with a unique key prefix, so runs
// against a shared server do not collide.
func newRedisService(t *testing.T, rdb redis.UniversalClient, clk clock.Clock) *authservice.Service {
	t.Helper()

	cfg := authservice.DefaultConfig()
	cfg.Session.Backend = authservice.BackendRedis
	cfg.Session.RedisPrefix = "it-" + uuid.NewString()[:8]
	cfg.Session.EnableSweeper = false
	cfg.Metrics.Enabled = true

	svc, err := authservice.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithVerifier(testRealm(t)).
		WithClock(clk).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc
}
