package authservice

import (
	"context"
	"time"
)

// The Async variants run the operation on a new goroutine and deliver its
// outcome on a buffered channel. Exactly one Result is sent, then the channel
// is closed, so a caller that never reads does not leak the goroutine.

func async[T any](fn func() (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		defer close(out)
		v, err := fn()
		out <- Result[T]{Value: v, Err: err}
	}()
	return out
}

func asyncErr(fn func() error) <-chan Result[struct{}] {
	return async(func() (struct{}, error) {
		return struct{}{}, fn()
	})
}

func (s *Service) LoginAsync(ctx context.Context, creds Credentials, timeout time.Duration) <-chan Result[string] {
	return async(func() (string, error) {
		return s.Login(ctx, creds, timeout)
	})
}

func (s *Service) RefreshLoginSessionAsync(ctx context.Context, sessionID string) <-chan Result[struct{}] {
	return asyncErr(func() error {
		return s.RefreshLoginSession(ctx, sessionID)
	})
}

func (s *Service) LogoutAsync(ctx context.Context, sessionID string) <-chan Result[struct{}] {
	return asyncErr(func() error {
		return s.Logout(ctx, sessionID)
	})
}

func (s *Service) HasRoleAsync(ctx context.Context, sessionID, role string) <-chan Result[bool] {
	return async(func() (bool, error) {
		return s.HasRole(ctx, sessionID, role)
	})
}

func (s *Service) HasRolesAsync(ctx context.Context, sessionID string, roles []string) <-chan Result[bool] {
	roles = append([]string(nil), roles...)
	return async(func() (bool, error) {
		return s.HasRoles(ctx, sessionID, roles)
	})
}

func (s *Service) HasPermissionAsync(ctx context.Context, sessionID, permission string) <-chan Result[bool] {
	return async(func() (bool, error) {
		return s.HasPermission(ctx, sessionID, permission)
	})
}

func (s *Service) HasPermissionsAsync(ctx context.Context, sessionID string, permissions []string) <-chan Result[bool] {
	permissions = append([]string(nil), permissions...)
	return async(func() (bool, error) {
		return s.HasPermissions(ctx, sessionID, permissions)
	})
}

func (s *Service) PrincipalAsync(ctx context.Context, sessionID string) <-chan Result[Principal] {
	return async(func() (Principal, error) {
		return s.Principal(ctx, sessionID)
	})
}
