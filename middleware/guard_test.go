package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/authservice"
	"github.com/MrEthical07/authservice/middleware"
	"github.com/MrEthical07/authservice/password"
	"github.com/MrEthical07/authservice/realm/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*authservice.Service, string) {
	t.Helper()
	return newServiceWith(t, authservice.DefaultConfig(), nil)
}

func newServiceWith(t *testing.T, cfg authservice.Config, client redis.UniversalClient) (*authservice.Service, string) {
	t.Helper()

	hasher, err := password.New(password.Params{
		MemoryKB:    8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	realm, err := memory.NewBuilder(hasher).
		Role("developer", "do_actual_work").
		Role("morris_dancer", "dance").
		User("tim", "sausages", "developer", "morris_dancer").
		Build()
	require.NoError(t, err)

	cfg.Session.EnableSweeper = false
	b := authservice.New().WithConfig(cfg).WithVerifier(realm)
	if client != nil {
		b.WithRedis(client)
	}
	svc, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	id, err := svc.Login(context.Background(), authservice.Credentials{"username": "tim", "password": "sausages"}, 0)
	require.NoError(t, err)
	return svc, id
}

func serve(mw func(http.Handler) http.Handler, req *http.Request) (*httptest.ResponseRecorder, authservice.Principal) {
	var seen authservice.Principal
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = authservice.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func withSession(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Session "+id)
	return req
}

func TestRequireRoles(t *testing.T) {
	svc, id := newService(t)

	tests := []struct {
		name  string
		roles []string
		code  int
	}{
		{name: "single held role", roles: []string{"developer"}, code: http.StatusNoContent},
		{name: "all held roles", roles: []string{"developer", "morris_dancer"}, code: http.StatusNoContent},
		{name: "missing role", roles: []string{"manager"}, code: http.StatusForbidden},
		{name: "one missing of two", roles: []string{"developer", "manager"}, code: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, p := serve(middleware.RequireRoles(svc, tt.roles...), withSession(id))
			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusNoContent {
				assert.Equal(t, "tim", p.ID())
			}
		})
	}
}

func TestRequirePermissions(t *testing.T) {
	svc, id := newService(t)

	rec, _ := serve(middleware.RequirePermissions(svc, "dance", "do_actual_work"), withSession(id))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = serve(middleware.RequirePermissions(svc, "play_golf"), withSession(id))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSessionFromCookie(t *testing.T) {
	svc, id := newService(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: id})

	rec, p := serve(middleware.RequireSession(svc), req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "tim", p.ID())
}

func TestUnauthorizedRequests(t *testing.T) {
	svc, id := newService(t)
	require.NoError(t, svc.Logout(context.Background(), id))

	bearer := httptest.NewRequest(http.MethodGet, "/", nil)
	bearer.Header.Set("Authorization", "Bearer "+id)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{name: "no credentials", req: httptest.NewRequest(http.MethodGet, "/", nil)},
		{name: "wrong scheme", req: bearer},
		{name: "malformed id", req: withSession("not-a-session")},
		{name: "logged out session", req: withSession(id)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := serve(middleware.RequireSession(svc), tt.req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestStoppedServiceIsUnavailable(t *testing.T) {
	svc, id := newService(t)
	require.NoError(t, svc.Stop(context.Background()))

	rec, _ := serve(middleware.RequireRoles(svc, "developer"), withSession(id))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNilServiceRejects(t *testing.T) {
	rec, _ := serve(middleware.RequireSession(nil), withSession("x"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type commandCount struct{ n atomic.Int64 }

func (c *commandCount) DialHook(next redis.DialHook) redis.DialHook { return next }

func (c *commandCount) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		c.n.Add(1)
		return next(ctx, cmd)
	}
}

func (c *commandCount) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		c.n.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func TestGuardUsesOneRedisLookup(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	counter := &commandCount{}
	client.AddHook(counter)

	cfg := authservice.DefaultConfig()
	cfg.Session.Backend = authservice.BackendRedis
	svc, id := newServiceWith(t, cfg, client)

	guards := map[string]func(http.Handler) http.Handler{
		"session":     middleware.RequireSession(svc),
		"roles":       middleware.RequireRoles(svc, "developer", "morris_dancer"),
		"permissions": middleware.RequirePermissions(svc, "dance"),
		"forbidden":   middleware.RequireRoles(svc, "manager"),
	}
	for name, guard := range guards {
		t.Run(name, func(t *testing.T) {
			counter.n.Store(0)
			rec, _ := serve(guard, withSession(id))
			assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
			assert.EqualValues(t, 1, counter.n.Load(), "one HGETALL per request")
		})
	}
}
