package authservice

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authservice/internal/audit"
	"github.com/MrEthical07/authservice/session"
	"github.com/benbjohnson/clock"
)

// Service manages login sessions and answers authorization checks against
// them. Methods are safe for concurrent use.
//
// Every method other than Start and Stop returns [ErrServiceStopped] once
// Stop has been called.
type Service struct {
	config   Config
	store    session.Store
	verifier CredentialVerifier
	clock    clock.Clock
	logger   *slog.Logger
	audit    *audit.Dispatcher
	metrics  *Metrics
	sweeper  *session.Sweeper

	// lifecycle is held shared by every store access and exclusively by Stop,
	// so no operation can touch the store after Stop has cleared it. stopped
	// is written only under the exclusive lock.
	lifecycle sync.RWMutex
	stopped   atomic.Bool
	startOnce sync.Once
}

func (s *Service) enter() error {
	s.lifecycle.RLock()
	if s.stopped.Load() {
		s.lifecycle.RUnlock()
		return ErrServiceStopped
	}
	return nil
}

func (s *Service) leave() {
	s.lifecycle.RUnlock()
}

// Login verifies creds and opens a session for the resolved principal,
// returning its identifier. A timeout <= 0 selects the configured default;
// timeouts above the configured maximum are clamped.
//
// Verification failures of any kind are reported as [ErrInvalidCredentials]
// and leave no session behind.
//
// The verifier runs without the lifecycle lock, so a slow verifier never
// delays Stop or other operations. A Stop that lands during verification
// makes Login return [ErrServiceStopped].
func (s *Service) Login(ctx context.Context, creds Credentials, timeout time.Duration) (string, error) {
	if s.stopped.Load() {
		return "", ErrServiceStopped
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	defer func() {
		s.metrics.Observe(MetricLoginLatency, time.Since(start))
	}()

	principal, err := s.verifier.Verify(ctx, creds)
	if err == nil && principal.IsZero() {
		err = ErrInvalidCredentials
	}
	if err != nil {
		s.metrics.Inc(MetricLoginFailure)
		s.emitAudit(ctx, AuditLoginFailure, false, "", "", ErrInvalidCredentials, nil)
		return "", ErrInvalidCredentials
	}

	if err := s.enter(); err != nil {
		return "", err
	}
	defer s.leave()

	timeout = s.config.effectiveTimeout(timeout)
	sess, err := s.store.Create(ctx, principal, timeout)
	if err != nil {
		err = s.storeFailure("login", mapStoreError(err))
		s.metrics.Inc(MetricLoginFailure)
		s.emitAudit(ctx, AuditLoginFailure, false, principal.ID(), "", err, nil)
		return "", err
	}

	s.metrics.Inc(MetricLoginSuccess)
	s.metrics.Inc(MetricSessionCreated)
	s.emitAudit(ctx, AuditLoginSuccess, true, principal.ID(), sess.ID, nil, func() map[string]string {
		return map[string]string{"timeout": timeout.String()}
	})
	return sess.ID, nil
}

// RefreshLoginSession restarts the timeout window of a live session.
func (s *Service) RefreshLoginSession(ctx context.Context, sessionID string) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.store.Refresh(ctx, sessionID); err != nil {
		err = s.storeFailure("refresh", mapStoreError(err))
		s.metrics.Inc(MetricRefreshFailure)
		s.emitAudit(ctx, AuditSessionRefreshed, false, "", sessionID, err, nil)
		return err
	}

	s.metrics.Inc(MetricRefreshSuccess)
	s.emitAudit(ctx, AuditSessionRefreshed, true, "", sessionID, nil, nil)
	return nil
}

// Logout destroys the session. Logging out an unknown, already logged out or
// expired session returns [ErrSessionNotFound].
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.store.Destroy(ctx, sessionID); err != nil {
		err = s.storeFailure("logout", mapStoreError(err))
		s.metrics.Inc(MetricLogoutFailure)
		s.emitAudit(ctx, AuditLogout, false, "", sessionID, err, nil)
		return err
	}

	s.metrics.Inc(MetricLogout)
	s.emitAudit(ctx, AuditLogout, true, "", sessionID, nil, nil)
	return nil
}

// HasRole reports whether the session's principal holds role.
func (s *Service) HasRole(ctx context.Context, sessionID, role string) (bool, error) {
	return s.check(ctx, sessionID, MetricRoleCheck, MetricRoleDenied, func(sess *session.Session) bool {
		return sess.Authz.CheckRole(sess.Principal, role)
	})
}

// HasRoles reports whether the principal holds every role in roles. An empty
// list is satisfied by any live session.
func (s *Service) HasRoles(ctx context.Context, sessionID string, roles []string) (bool, error) {
	return s.check(ctx, sessionID, MetricRoleCheck, MetricRoleDenied, func(sess *session.Session) bool {
		return sess.Authz.CheckRoles(sess.Principal, roles)
	})
}

// HasPermission reports whether the session's principal holds permission.
func (s *Service) HasPermission(ctx context.Context, sessionID, permission string) (bool, error) {
	return s.check(ctx, sessionID, MetricPermissionCheck, MetricPermissionDenied, func(sess *session.Session) bool {
		return sess.Authz.CheckPermission(sess.Principal, permission)
	})
}

// HasPermissions reports whether the principal holds every permission.
func (s *Service) HasPermissions(ctx context.Context, sessionID string, permissions []string) (bool, error) {
	return s.check(ctx, sessionID, MetricPermissionCheck, MetricPermissionDenied, func(sess *session.Session) bool {
		return sess.Authz.CheckPermissions(sess.Principal, permissions)
	})
}

// Principal returns the principal bound to a live session.
func (s *Service) Principal(ctx context.Context, sessionID string) (Principal, error) {
	if err := s.enter(); err != nil {
		return Principal{}, err
	}
	defer s.leave()

	sess, err := s.lookup(ctx, sessionID)
	if err != nil {
		return Principal{}, err
	}
	return sess.Principal, nil
}

// Requirement lists the roles and permissions a session must all hold.
type Requirement struct {
	Roles       []string
	Permissions []string
}

// Authorize resolves the session's principal and evaluates req against it
// with a single store lookup. An empty requirement admits any live session.
func (s *Service) Authorize(ctx context.Context, sessionID string, req Requirement) (Principal, bool, error) {
	if err := s.enter(); err != nil {
		return Principal{}, false, err
	}
	defer s.leave()

	start := time.Now()
	sess, err := s.lookup(ctx, sessionID)
	if err != nil {
		return Principal{}, false, err
	}

	ok := true
	if len(req.Roles) > 0 {
		ok = sess.Authz.CheckRoles(sess.Principal, req.Roles)
		s.countCheck(MetricRoleCheck, MetricRoleDenied, ok)
	}
	if ok && len(req.Permissions) > 0 {
		ok = sess.Authz.CheckPermissions(sess.Principal, req.Permissions)
		s.countCheck(MetricPermissionCheck, MetricPermissionDenied, ok)
	}
	if len(req.Roles) > 0 || len(req.Permissions) > 0 {
		s.metrics.Observe(MetricCheckLatency, time.Since(start))
	}
	return sess.Principal, ok, nil
}

// ActiveSessions returns the number of stored sessions, including expired
// ones that have not been purged yet.
func (s *Service) ActiveSessions(ctx context.Context) (int, error) {
	if err := s.enter(); err != nil {
		return 0, err
	}
	defer s.leave()

	n, err := s.store.Len(ctx)
	if err != nil {
		return 0, s.storeFailure("len", mapStoreError(err))
	}
	return n, nil
}

func (s *Service) check(
	ctx context.Context,
	sessionID string,
	checkMetric MetricID,
	deniedMetric MetricID,
	decide func(*session.Session) bool,
) (bool, error) {
	if err := s.enter(); err != nil {
		return false, err
	}
	defer s.leave()

	start := time.Now()
	sess, err := s.lookup(ctx, sessionID)
	if err != nil {
		return false, err
	}

	ok := decide(sess)
	s.countCheck(checkMetric, deniedMetric, ok)
	s.metrics.Observe(MetricCheckLatency, time.Since(start))
	return ok, nil
}

func (s *Service) countCheck(checkMetric, deniedMetric MetricID, ok bool) {
	s.metrics.Inc(checkMetric)
	if !ok {
		s.metrics.Inc(deniedMetric)
	}
}

func (s *Service) lookup(ctx context.Context, sessionID string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, s.storeFailure("lookup", mapStoreError(err))
	}
	return sess, nil
}

// storeFailure records a mapped store error and logs fatal ones.
func (s *Service) storeFailure(op string, err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		s.metrics.Inc(MetricSessionNotFound)
	case IsFatal(err):
		s.metrics.Inc(MetricFatalError)
		s.logger.Error("session store failure", slog.String("op", op), slog.Any("error", err))
	}
	return err
}

func (s *Service) onSweep(removed int, err error) {
	if err != nil {
		s.metrics.Inc(MetricSweepFailure)
	}
	if removed > 0 {
		s.metrics.Add(MetricSessionExpired, uint64(removed))
		s.emitAudit(context.Background(), AuditSessionExpired, true, "", "", nil, func() map[string]string {
			return map[string]string{"removed": strconv.Itoa(removed)}
		})
	}
	// Counted last so a completed run implies its other counters are visible.
	s.metrics.Inc(MetricSweepRun)
}

// Start launches background expiry when the sweeper is enabled. The sweeper
// runs until Stop is called or ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	s.startOnce.Do(func() {
		if s.sweeper != nil {
			s.sweeper.Start(ctx)
			s.logger.Debug("session sweeper started", slog.Duration("interval", s.sweeper.Interval()))
		}
	})
	return nil
}

// Stop invalidates every session and releases background resources. It
// waits for in-flight operations to finish. Calling Stop again is a no-op.
func (s *Service) Stop(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.stopped.Load() {
		return nil
	}
	s.stopped.Store(true)

	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	cleared, err := s.store.Clear(ctx)
	if err != nil {
		err = mapStoreError(err)
		s.logger.Error("clearing sessions on stop", slog.Any("error", err))
	}
	s.metrics.Add(MetricSessionsCleared, uint64(cleared))

	s.emitAudit(ctx, AuditServiceStopped, err == nil, "", "", err, func() map[string]string {
		return map[string]string{"cleared": strconv.Itoa(cleared)}
	})
	if closeErr := s.audit.Close(ctx); closeErr != nil {
		s.logger.Warn("audit drain incomplete", slog.Any("error", closeErr), slog.Uint64("dropped", s.audit.Dropped()))
	}

	s.logger.Info("auth service stopped", slog.Int("cleared_sessions", cleared))
	return err
}

// Metrics returns the service's counters. It is never nil.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// MetricsSnapshot returns a point-in-time copy of all counters and
// histograms.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped returns the number of audit events discarded because the
// buffer was full.
func (s *Service) AuditDropped() uint64 {
	return s.audit.Dropped()
}

// Config returns the configuration the service was built with.
func (s *Service) Config() Config {
	return s.config
}
