package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/MrEthical07/authservice"
	"github.com/MrEthical07/authservice/password"
)

const (
	KeyUsername = "username"
	KeyPassword = "password"
)

type user struct {
	hash  string
	roles []string
}

// Realm verifies username/password credentials against a fixed user table.
// It is immutable once built and safe for concurrent use.
type Realm struct {
	hasher *password.Hasher
	users  map[string]user
	grants map[string][]string
}

// Builder collects roles and users for a [Realm].
type Builder struct {
	hasher *password.Hasher
	users  map[string]user
	grants map[string][]string
	err    error
}

// NewBuilder starts a realm that hashes and verifies with hasher.
func NewBuilder(hasher *password.Hasher) *Builder {
	return &Builder{
		hasher: hasher,
		users:  make(map[string]user),
		grants: make(map[string][]string),
	}
}

// Role declares a role and the permissions it grants. Declaring the same
// role twice merges the permissions.
func (b *Builder) Role(name string, permissions ...string) *Builder {
	if name == "" {
		b.fail(errors.New("role name must not be empty"))
		return b
	}
	b.grants[name] = append(b.grants[name], permissions...)
	return b
}

// User adds a user, hashing plaintext.
func (b *Builder) User(username, plaintext string, roles ...string) *Builder {
	if b.err != nil {
		return b
	}
	if b.hasher == nil {
		b.fail(errors.New("password hasher required"))
		return b
	}
	hash, err := b.hasher.Hash(plaintext)
	if err != nil {
		b.fail(fmt.Errorf("user %q: %w", username, err))
		return b
	}
	return b.UserWithHash(username, hash, roles...)
}

// UserWithHash adds a user whose password is already hashed.
func (b *Builder) UserWithHash(username, hash string, roles ...string) *Builder {
	if username == "" {
		b.fail(errors.New("username must not be empty"))
		return b
	}
	if _, exists := b.users[username]; exists {
		b.fail(fmt.Errorf("duplicate user %q", username))
		return b
	}
	b.users[username] = user{hash: hash, roles: append([]string(nil), roles...)}
	return b
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build checks that every role referenced by a user is declared.
func (b *Builder) Build() (*Realm, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.hasher == nil {
		return nil, errors.New("password hasher required")
	}

	for name, u := range b.users {
		for _, role := range u.roles {
			if _, ok := b.grants[role]; !ok {
				return nil, fmt.Errorf("user %q references unknown role %q", name, role)
			}
		}
	}

	users := make(map[string]user, len(b.users))
	for name, u := range b.users {
		users[name] = u
	}
	grants := make(map[string][]string, len(b.grants))
	for role, perms := range b.grants {
		grants[role] = append([]string(nil), perms...)
	}

	return &Realm{hasher: b.hasher, users: users, grants: grants}, nil
}

// Verify checks the username and password credentials and resolves the
// user's roles and the union of their permissions.
func (r *Realm) Verify(ctx context.Context, creds authservice.Credentials) (authservice.Principal, error) {
	if err := ctx.Err(); err != nil {
		return authservice.Principal{}, err
	}

	username, ok := creds.String(KeyUsername)
	if !ok || username == "" {
		return authservice.Principal{}, authservice.ErrInvalidCredentials
	}
	plaintext, ok := creds.String(KeyPassword)
	if !ok {
		return authservice.Principal{}, authservice.ErrInvalidCredentials
	}

	u, known := r.users[username]
	if !known {
		_ = r.hasher.VerifyDecoy(plaintext)
		return authservice.Principal{}, authservice.ErrInvalidCredentials
	}
	if err := r.hasher.Verify(plaintext, u.hash); err != nil {
		return authservice.Principal{}, authservice.ErrInvalidCredentials
	}

	return authservice.NewPrincipal(username, u.roles, r.permissionsFor(u.roles)), nil
}

func (r *Realm) permissionsFor(roles []string) []string {
	var perms []string
	for _, role := range roles {
		perms = append(perms, r.grants[role]...)
	}
	return perms
}

// Users returns the usernames in sorted order.
func (r *Realm) Users() []string {
	names := make([]string, 0, len(r.users))
	for name := range r.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ authservice.CredentialVerifier = (*Realm)(nil)
