package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authservice"
	"github.com/MrEthical07/authservice/session"
)

// CookieName is the cookie consulted when no Authorization header is present.
const CookieName = "authservice_session"

// Guard resolves the request's session and checks req against it in one
// lookup. A missing, malformed or expired session yields 401, an unmet
// requirement 403 and a fatal service error 503. On success the principal is
// attached to the request context.
func Guard(svc *authservice.Service, req authservice.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if svc == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			id, ok := sessionID(r)
			if !ok || !session.WellFormedID(id) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := r.Context()
			if ip := remoteIP(r); ip != "" {
				ctx = authservice.WithClientIP(ctx, ip)
			}

			p, allowed, err := svc.Authorize(ctx, id, req)
			if err != nil {
				writeError(w, err)
				return
			}
			if !allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(authservice.WithPrincipal(ctx, id, p)))
		})
	}
}

// RequireSession admits any request carrying a live session.
func RequireSession(svc *authservice.Service) func(http.Handler) http.Handler {
	return Guard(svc, authservice.Requirement{})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case authservice.IsFatal(err):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

// sessionID reads "Authorization: Session <id>", falling back to the
// session cookie.
func sessionID(r *http.Request) (string, bool) {
	const scheme = "Session "
	if value := r.Header.Get("Authorization"); value != "" {
		if len(value) <= len(scheme) || !strings.EqualFold(value[:len(scheme)], scheme) {
			return "", false
		}
		return strings.TrimSpace(value[len(scheme):]), true
	}

	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
