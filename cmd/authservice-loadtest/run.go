package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authservice"
	"github.com/MrEthical07/authservice/metrics/export/prometheus"
	"github.com/MrEthical07/authservice/password"
	"github.com/MrEthical07/authservice/realm/memory"
	"github.com/MrEthical07/authservice/realm/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

const seedPassword = "load-test-password"

var seedRoles = []struct {
	name        string
	permissions []string
}{
	{name: "reader", permissions: []string{"read"}},
	{name: "writer", permissions: []string{"read", "write"}},
	{name: "admin", permissions: []string{"read", "write", "delete"}},
}

func run(ctx context.Context, cfg loadConfig, logger *slog.Logger) (report, error) {
	seed, err := seedVerifier(cfg)
	if err != nil {
		return report{}, err
	}

	scfg := authservice.DefaultConfig()
	scfg.Session.DefaultTimeout = cfg.Timeout
	if scfg.Session.MaxTimeout > 0 && cfg.Timeout > scfg.Session.MaxTimeout {
		scfg.Session.MaxTimeout = cfg.Timeout
	}
	scfg.Session.Backend = cfg.Backend
	scfg.Metrics.Enabled = true
	scfg.Metrics.EnableLatencyHistograms = true

	builder := authservice.New().WithConfig(scfg).WithVerifier(seed.verifier).WithLogger(logger)
	if cfg.Backend == authservice.BackendRedis {
		client, closeRedis, err := openRedis(cfg, logger)
		if err != nil {
			return report{}, err
		}
		defer closeRedis()
		builder = builder.WithRedis(client)
	}

	svc, err := builder.Build()
	if err != nil {
		return report{}, oops.Code("SERVICE_BUILD_FAILED").Wrap(err)
	}
	if err := svc.Start(ctx); err != nil {
		return report{}, oops.Code("SERVICE_START_FAILED").Wrap(err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			logger.Warn("stopping service", slog.Any("error", err))
		}
	}()

	if cfg.MetricsAddr != "" {
		shutdown, err := serveMetrics(svc, cfg.MetricsAddr, logger)
		if err != nil {
			return report{}, err
		}
		defer shutdown()
	}

	var out report

	ids, login := loginPhase(ctx, svc, cfg, seed.credentials)
	out.phases = append(out.phases, login)
	if len(ids) == 0 {
		return out, oops.Code("LOGIN_FAILED").Errorf("no user could log in")
	}

	out.phases = append(out.phases, runPhase(ctx, "check", ids, cfg, func(r *rand.Rand, id string) error {
		role := seedRoles[r.Intn(len(seedRoles))]
		if r.Intn(2) == 0 {
			_, err := svc.HasRole(ctx, id, role.name)
			return err
		}
		_, err := svc.HasPermission(ctx, id, role.permissions[r.Intn(len(role.permissions))])
		return err
	}))
	out.phases = append(out.phases, runPhase(ctx, "refresh", ids, cfg, func(_ *rand.Rand, id string) error {
		return svc.RefreshLoginSession(ctx, id)
	}))
	out.phases = append(out.phases, logoutPhase(ctx, svc, ids))

	out.metrics = svc.MetricsSnapshot()
	return out, nil
}

type seeded struct {
	verifier    authservice.CredentialVerifier
	credentials func(i int) authservice.Credentials
}

func seedVerifier(cfg loadConfig) (seeded, error) {
	if cfg.Realm == "token" {
		return seedTokenRealm(cfg)
	}
	return seedMemoryRealm(cfg)
}

// seedMemoryRealm hashes the shared password once so seeding stays cheap.
func seedMemoryRealm(cfg loadConfig) (seeded, error) {
	params := password.DefaultParams()
	params.MemoryKB = cfg.HashMemoryKB
	params.Iterations = 1
	params.Parallelism = 1

	hasher, err := password.New(params)
	if err != nil {
		return seeded{}, oops.Code("CONFIG_INVALID").Wrapf(err, "argon2 parameters")
	}
	hash, err := hasher.Hash(seedPassword)
	if err != nil {
		return seeded{}, oops.Code("SEED_FAILED").Wrapf(err, "hash seed password")
	}

	b := memory.NewBuilder(hasher)
	for _, role := range seedRoles {
		b.Role(role.name, role.permissions...)
	}
	for i := 0; i < cfg.Users; i++ {
		b.UserWithHash(userName(i), hash, seedRoles[i%len(seedRoles)].name)
	}

	realm, err := b.Build()
	if err != nil {
		return seeded{}, oops.Code("SEED_FAILED").Wrapf(err, "build realm")
	}
	return seeded{
		verifier: realm,
		credentials: func(i int) authservice.Credentials {
			return authservice.Credentials{
				memory.KeyUsername: userName(i),
				memory.KeyPassword: seedPassword,
			}
		},
	}, nil
}

// seedTokenRealm signs one token per user with a throwaway Ed25519 key.
func seedTokenRealm(cfg loadConfig) (seeded, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return seeded{}, oops.Code("SEED_FAILED").Wrapf(err, "generate signing key")
	}
	realm, err := token.New(token.Config{
		Method:     token.MethodEd25519,
		SigningKey: priv,
		Issuer:     "authservice-loadtest",
		TTL:        time.Hour,
	})
	if err != nil {
		return seeded{}, oops.Code("SEED_FAILED").Wrapf(err, "token realm")
	}

	tokens := make([]string, cfg.Users)
	for i := range tokens {
		role := seedRoles[i%len(seedRoles)]
		raw, err := realm.Issue(authservice.NewPrincipal(userName(i), []string{role.name}, role.permissions))
		if err != nil {
			return seeded{}, oops.Code("SEED_FAILED").Wrapf(err, "issue token")
		}
		tokens[i] = raw
	}

	return seeded{
		verifier: realm,
		credentials: func(i int) authservice.Credentials {
			return authservice.Credentials{token.KeyToken: tokens[i]}
		},
	}, nil
}

func userName(i int) string {
	return fmt.Sprintf("user-%d", i)
}

func openRedis(cfg loadConfig, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.RedisAddr
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, oops.Code("REDIS_UNAVAILABLE").Wrapf(err, "start miniredis")
		}
		addr = mr.Addr()
		logger.Info("using miniredis", slog.String("addr", addr))
	} else {
		logger.Info("using redis", slog.String("addr", addr))
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	closeFn := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}
	return client, closeFn, nil
}

func serveMetrics(svc *authservice.Service, addr string, logger *slog.Logger) (func(), error) {
	handler, err := prometheus.Handler(svc)
	if err != nil {
		return nil, oops.Code("METRICS_FAILED").Wrap(err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.Code("METRICS_FAILED").With("addr", addr).Wrap(err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", slog.Any("error", err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func loginPhase(ctx context.Context, svc *authservice.Service, cfg loadConfig, credentials func(int) authservice.Credentials) ([]string, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		ids       = make([]string, 0, cfg.Users)
		latencies = make([]time.Duration, 0, cfg.Users)
	)

	start := time.Now()
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= cfg.Users || ctx.Err() != nil {
					return
				}
				t0 := time.Now()
				id, err := svc.Login(ctx, credentials(i), cfg.Timeout)
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				if err == nil {
					ids = append(ids, id)
				}
				mu.Unlock()
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}
	wg.Wait()

	return ids, computeStats("login", time.Since(start), latencies, failures)
}

func runPhase(ctx context.Context, name string, ids []string, cfg loadConfig, op func(*rand.Rand, string) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, cfg.Ops)
	)

	start := time.Now()
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= cfg.Ops || ctx.Err() != nil {
					return
				}
				id := ids[r.Intn(len(ids))]
				t0 := time.Now()
				err := op(r, id)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	return computeStats(name, time.Since(start), latencies, failures)
}

func logoutPhase(ctx context.Context, svc *authservice.Service, ids []string) phaseStats {
	var failures int64
	latencies := make([]time.Duration, 0, len(ids))

	start := time.Now()
	for _, id := range ids {
		t0 := time.Now()
		if err := svc.Logout(ctx, id); err != nil {
			failures++
		}
		latencies = append(latencies, time.Since(t0))
	}
	return computeStats("logout", time.Since(start), latencies, failures)
}
