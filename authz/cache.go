package authz

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize bounds the number of distinct names a single session caches.
const DefaultSize = 256

// Subject is the authoritative source a cache falls back to on a miss.
type Subject interface {
	HasRole(role string) bool
	HasPermission(permission string) bool
}

// Kind distinguishes role checks from permission checks in the cache key.
type Kind uint8

const (
	KindRole Kind = iota + 1
	KindPermission
)

type key struct {
	kind Kind
	name string
}

// Stats reports cache effectiveness for one session.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Cache memoises role and permission checks for a single session.
// It is safe for concurrent use. A nil *Cache evaluates every check directly.
type Cache struct {
	entries *lru.Cache[key, bool]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// New returns a cache holding at most size entries. Non-positive sizes use
// [DefaultSize].
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[key, bool](size)
	if err != nil {
		return nil
	}
	return &Cache{entries: entries}
}

// CheckRole reports whether subject holds role, consulting the cache first.
func (c *Cache) CheckRole(subject Subject, role string) bool {
	return c.check(subject, KindRole, role)
}

// CheckRoles reports whether subject holds every role. It stops at the first
// missing role. An empty list is vacuously true.
func (c *Cache) CheckRoles(subject Subject, roles []string) bool {
	for _, role := range roles {
		if !c.check(subject, KindRole, role) {
			return false
		}
	}
	return true
}

// CheckPermission reports whether subject holds permission.
func (c *Cache) CheckPermission(subject Subject, permission string) bool {
	return c.check(subject, KindPermission, permission)
}

// CheckPermissions reports whether subject holds every permission.
func (c *Cache) CheckPermissions(subject Subject, permissions []string) bool {
	for _, perm := range permissions {
		if !c.check(subject, KindPermission, perm) {
			return false
		}
	}
	return true
}

// Len returns the number of cached single-name results.
func (c *Cache) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

// Purge drops every cached result.
func (c *Cache) Purge() {
	if c == nil || c.entries == nil {
		return
	}
	c.entries.Purge()
}

func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

func (c *Cache) check(subject Subject, kind Kind, name string) bool {
	if subject == nil {
		return false
	}
	if c == nil || c.entries == nil {
		return evaluate(subject, kind, name)
	}

	k := key{kind: kind, name: name}
	if v, ok := c.entries.Get(k); ok {
		c.hits.Add(1)
		return v
	}

	c.misses.Add(1)
	v := evaluate(subject, kind, name)
	c.entries.Add(k, v)
	return v
}

func evaluate(subject Subject, kind Kind, name string) bool {
	switch kind {
	case KindRole:
		return subject.HasRole(name)
	case KindPermission:
		return subject.HasPermission(name)
	default:
		return false
	}
}
