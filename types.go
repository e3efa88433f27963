package authservice

import (
	"context"

	"github.com/MrEthical07/authservice/session"
)

// Credentials is the opaque credential bag handed to a [CredentialVerifier].
// Keys are verifier specific, e.g. "username" and "password".
type Credentials map[string]any

// String returns the value under key when it is a string.
func (c Credentials) String(key string) (string, bool) {
	v, ok := c[key].(string)
	return v, ok
}

// Principal is the identity resolved at login together with its role and
// permission sets.
type Principal = session.Principal

// NewPrincipal builds a [Principal].
func NewPrincipal(id string, roles, permissions []string) Principal {
	return session.NewPrincipal(id, roles, permissions)
}

// CredentialVerifier checks credentials and resolves the principal they
// identify. Any error is reported to Login callers as [ErrInvalidCredentials].
type CredentialVerifier interface {
	Verify(ctx context.Context, creds Credentials) (Principal, error)
}

// VerifierFunc adapts a function to [CredentialVerifier].
type VerifierFunc func(ctx context.Context, creds Credentials) (Principal, error)

func (f VerifierFunc) Verify(ctx context.Context, creds Credentials) (Principal, error) {
	return f(ctx, creds)
}

// Result carries the outcome of an asynchronous operation.
type Result[T any] struct {
	Value T
	Err   error
}

// Unwrap returns the value and error as a pair.
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}
