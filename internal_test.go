package authservice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrEthical07/authservice/session"
	"github.com/stretchr/testify/assert"
)

func TestFatalErrorsSatisfyErrFatal(t *testing.T) {
	for _, err := range []error{ErrEntropyUnavailable, ErrStoreUnavailable, ErrServiceStopped} {
		assert.ErrorIs(t, err, ErrFatal)
		assert.True(t, IsFatal(fmt.Errorf("wrapped: %w", err)))
	}
	assert.False(t, IsFatal(ErrSessionNotFound))
	assert.False(t, IsFatal(ErrInvalidCredentials))
	assert.False(t, errors.Is(ErrStoreUnavailable, ErrEntropyUnavailable))
}

func TestMapStoreError(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{session.ErrNotFound, ErrSessionNotFound},
		{fmt.Errorf("%w: io", session.ErrStoreUnavailable), ErrStoreUnavailable},
		{fmt.Errorf("%w: bad bytes", session.ErrCorrupt), ErrStoreUnavailable},
		{fmt.Errorf("%w: rng", session.ErrEntropyUnavailable), ErrEntropyUnavailable},
		{context.Canceled, context.Canceled},
		{errors.New("surprise"), ErrFatal},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, mapStoreError(tc.in), tc.want, "mapping %v", tc.in)
	}
	assert.NoError(t, mapStoreError(nil))
}

func TestEffectiveTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.MaxTimeout = time.Hour

	assert.Equal(t, 30*time.Minute, cfg.effectiveTimeout(0))
	assert.Equal(t, 30*time.Minute, cfg.effectiveTimeout(-time.Second))
	assert.Equal(t, 5*time.Second, cfg.effectiveTimeout(5*time.Second))
	assert.Equal(t, time.Hour, cfg.effectiveTimeout(3*time.Hour))

	cfg.Session.MaxTimeout = 0
	assert.Equal(t, 3*time.Hour, cfg.effectiveTimeout(3*time.Hour))
}

func TestAuditErrorCode(t *testing.T) {
	assert.Equal(t, AuditErrorCode(""), auditErrorCode(nil))
	assert.Equal(t, auditErrInvalidCredentials, auditErrorCode(ErrInvalidCredentials))
	assert.Equal(t, auditErrSessionNotFound, auditErrorCode(ErrSessionNotFound))
	assert.Equal(t, auditErrUnavailable, auditErrorCode(fmt.Errorf("%w: x", ErrStoreUnavailable)))
	assert.Equal(t, auditErrEntropy, auditErrorCode(ErrEntropyUnavailable))
	assert.Equal(t, auditErrStopped, auditErrorCode(ErrServiceStopped))
	assert.Equal(t, auditErrInternal, auditErrorCode(errors.New("x")))
}
