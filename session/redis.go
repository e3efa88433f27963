package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authservice/authz"
	"github.com/benbjohnson/clock"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session keys.
const DefaultRedisPrefix = "asess"

const scanBatch = 1000

const (
	fieldPrincipal = "p"
	fieldCreated   = "c"
	fieldRefreshed = "r"
	fieldTimeout   = "t"
)

const (
	refreshStatusMissing   int64 = 0
	refreshStatusExpired   int64 = 1
	refreshStatusRefreshed int64 = 2

	destroyStatusMissing int64 = 0
	destroyStatusExpired int64 = 1
	destroyStatusRemoved int64 = 2
)

const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "p", ARGV[1], "c", ARGV[2], "r", ARGV[2], "t", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`

var createSessionLua = redis.NewScript(createSessionScript)

const refreshSessionScript = `
local vals = redis.call("HMGET", KEYS[1], "r", "t")
if not vals[1] or not vals[2] then
  return 0
end
local now = tonumber(ARGV[1])
local refreshed = tonumber(vals[1])
local timeout = tonumber(vals[2])
if now - refreshed >= timeout then
  return 1
end
if now > refreshed then
  redis.call("HSET", KEYS[1], "r", ARGV[1])
end
redis.call("PEXPIRE", KEYS[1], vals[2])
return 2
`

var refreshSessionLua = redis.NewScript(refreshSessionScript)

const purgeExpiredScript = `
local vals = redis.call("HMGET", KEYS[1], "r", "t")
if not vals[1] or not vals[2] then
  return 0
end
if tonumber(ARGV[1]) - tonumber(vals[1]) < tonumber(vals[2]) then
  return 0
end
redis.call("DEL", KEYS[1])
return 1
`

var purgeExpiredLua = redis.NewScript(purgeExpiredScript)

const destroySessionScript = `
local vals = redis.call("HMGET", KEYS[1], "r", "t")
if not vals[1] or not vals[2] then
  return 0
end
redis.call("DEL", KEYS[1])
if tonumber(ARGV[1]) - tonumber(vals[1]) >= tonumber(vals[2]) then
  return 1
end
return 2
`

var destroySessionLua = redis.NewScript(destroySessionScript)

// RedisStore is a Redis-backed [Store] suitable for sharing sessions between
// processes.
//
// Each session is a hash holding the encoded principal and millisecond
// timestamps. The key's TTL follows the session timeout so abandoned sessions
// are reclaimed by Redis even without a sweep. Authorization caches are kept
// in process and dropped when the session is destroyed or found expired.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	clock     clock.Clock
	cacheSize int
	newID     func() (string, error)
	caches    *xsync.MapOf[string, *authz.Cache]
}

// NewRedisStore creates a session store on the given client. An empty prefix
// uses [DefaultRedisPrefix]. The prefix must not contain ':' (see
// [ValidRedisPrefix]); stores whose prefixes nest would sweep and clear each
// other's keys.
func NewRedisStore(client redis.UniversalClient, prefix string, opts Options) *RedisStore {
	opts = opts.withDefaults()
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		clock:     opts.Clock,
		cacheSize: opts.CacheSize,
		newID:     opts.NewID,
		caches:    xsync.NewMapOf[string, *authz.Cache](),
	}
}

// ValidRedisPrefix reports whether prefix can namespace a [RedisStore]
// without overlapping another store's keys.
func ValidRedisPrefix(prefix string) bool {
	return !strings.ContainsAny(prefix, ":*?[]\\")
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *RedisStore) idFromKey(key string) string {
	return strings.TrimPrefix(key, s.prefix+":")
}

func (s *RedisStore) nowMillis() int64 {
	return s.clock.Now().UnixMilli()
}

func timeoutMillis(timeout time.Duration) int64 {
	ms := timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return ms
}

func (s *RedisStore) Create(ctx context.Context, p Principal, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		return nil, ErrInvalidTimeout
	}

	blob := EncodePrincipal(p)
	nowMs := s.nowMillis()
	timeoutMs := timeoutMillis(timeout)

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
		}

		created, err := createSessionLua.Run(ctx, s.redis, []string{s.key(id)}, blob, nowMs, timeoutMs).Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if created == 0 {
			continue
		}

		cache := authz.New(s.cacheSize)
		s.caches.Store(id, cache)

		return &Session{
			ID:              id,
			Principal:       p,
			CreatedAt:       time.UnixMilli(nowMs),
			LastRefreshedAt: time.UnixMilli(nowMs),
			Timeout:         time.Duration(timeoutMs) * time.Millisecond,
			Authz:           cache,
		}, nil
	}

	return nil, fmt.Errorf("%w: identifier collision", ErrEntropyUnavailable)
}

func (s *RedisStore) Refresh(ctx context.Context, id string) error {
	status, err := refreshSessionLua.Run(ctx, s.redis, []string{s.key(id)}, s.nowMillis()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch status {
	case refreshStatusRefreshed:
		return nil
	case refreshStatusExpired:
		if _, err := s.purgeExpired(ctx, id); err != nil {
			return err
		}
		return ErrNotFound
	default:
		s.dropCache(id)
		return ErrNotFound
	}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		s.dropCache(id)
		return nil, ErrNotFound
	}

	sess, err := decodeSessionFields(id, fields)
	if err != nil {
		return nil, err
	}

	if !sess.Live(s.clock.Now()) {
		if _, err := s.purgeExpired(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	cache, loaded := s.caches.LoadOrCompute(id, func() *authz.Cache {
		return authz.New(s.cacheSize)
	})
	if !loaded {
		// A Destroy or purge between HGETALL and here has already dropped
		// caches for id; make sure this one does not outlive the key.
		n, err := s.redis.Exists(ctx, s.key(id)).Result()
		if err != nil {
			s.dropCache(id)
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if n == 0 {
			s.dropCache(id)
			return nil, ErrNotFound
		}
	}
	sess.Authz = cache
	return sess, nil
}

// Destroy removes the session. A session that had already expired reports
// [ErrNotFound] even though its record is removed.
func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	status, err := destroySessionLua.Run(ctx, s.redis, []string{s.key(id)}, s.nowMillis()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.dropCache(id)

	if status == destroyStatusRemoved {
		return nil
	}
	return ErrNotFound
}

func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	removed := 0
	err := s.scan(ctx, func(keys []string) error {
		for _, key := range keys {
			ok, err := s.purgeExpired(ctx, s.idFromKey(key))
			if err != nil {
				return err
			}
			if ok {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, err
	}

	// Sessions reclaimed by key TTL leave their local cache behind.
	var orphans []string
	s.caches.Range(func(id string, _ *authz.Cache) bool {
		orphans = append(orphans, id)
		return true
	})
	for _, id := range orphans {
		n, err := s.redis.Exists(ctx, s.key(id)).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if n == 0 {
			s.dropCache(id)
		}
	}

	return removed, nil
}

func (s *RedisStore) Clear(ctx context.Context) (int, error) {
	removed := 0
	err := s.scan(ctx, func(keys []string) error {
		n, err := s.redis.Del(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		removed += int(n)
		for _, key := range keys {
			s.dropCache(s.idFromKey(key))
		}
		return nil
	})
	return removed, err
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	total := 0
	err := s.scan(ctx, func(keys []string) error {
		total += len(keys)
		return nil
	})
	return total, err
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

// purgeExpired is the only expiry removal path; the script re-checks
// liveness so a concurrently refreshed session survives.
func (s *RedisStore) purgeExpired(ctx context.Context, id string) (bool, error) {
	n, err := purgeExpiredLua.Run(ctx, s.redis, []string{s.key(id)}, s.nowMillis()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 1 {
		s.dropCache(id)
		return true, nil
	}
	return false, nil
}

func (s *RedisStore) dropCache(id string) {
	if cache, ok := s.caches.LoadAndDelete(id); ok {
		cache.Purge()
	}
}

func (s *RedisStore) scan(ctx context.Context, fn func(keys []string) error) error {
	pattern := s.prefix + ":*"
	var cursor uint64

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func decodeSessionFields(id string, fields map[string]string) (*Session, error) {
	blob, ok := fields[fieldPrincipal]
	if !ok {
		return nil, fmt.Errorf("%w: missing principal", ErrCorrupt)
	}
	principal, err := DecodePrincipal([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	created, err := parseMillis(fields, fieldCreated)
	if err != nil {
		return nil, err
	}
	refreshed, err := parseMillis(fields, fieldRefreshed)
	if err != nil {
		return nil, err
	}
	timeout, err := parseMillis(fields, fieldTimeout)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:              id,
		Principal:       principal,
		CreatedAt:       time.UnixMilli(created),
		LastRefreshedAt: time.UnixMilli(refreshed),
		Timeout:         time.Duration(timeout) * time.Millisecond,
	}, nil
}

func parseMillis(fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrCorrupt, name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", ErrCorrupt, name)
	}
	return v, nil
}

var _ Store = (*RedisStore)(nil)
