package authservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authservice/session"
)

var (
	// ErrInvalidCredentials is returned by Login when the verifier rejects the
	// supplied credentials. No session is created.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionNotFound covers a session that never existed, was logged out
	// or has expired. Callers cannot tell these apart.
	ErrSessionNotFound = errors.New("session not found")
	// ErrFatal marks failures the caller cannot fix by retrying with other
	// input. Every fatal refinement below satisfies errors.Is(err, ErrFatal).
	ErrFatal = errors.New("fatal")

	ErrEntropyUnavailable = fatalError("session id entropy unavailable")
	ErrStoreUnavailable   = fatalError("session store unavailable")
	ErrServiceStopped     = fatalError("service stopped")
)

type fatal struct {
	msg string
}

func fatalError(msg string) error {
	return &fatal{msg: msg}
}

func (e *fatal) Error() string {
	return e.msg
}

func (e *fatal) Is(target error) bool {
	return target == ErrFatal
}

// IsFatal reports whether err belongs to the fatal class.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// mapStoreError translates store sentinels into the service's error surface.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, session.ErrNotFound):
		return ErrSessionNotFound
	case errors.Is(err, session.ErrEntropyUnavailable):
		return fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	case errors.Is(err, session.ErrStoreUnavailable), errors.Is(err, session.ErrCorrupt):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrFatal, err)
	}
}
