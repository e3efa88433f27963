package middleware

import (
	"net/http"

	"github.com/MrEthical07/authservice"
)

// RequireRoles admits a session holding every role. No roles admits any live
// session.
func RequireRoles(svc *authservice.Service, roles ...string) func(http.Handler) http.Handler {
	return Guard(svc, authservice.Requirement{Roles: roles})
}

// RequirePermissions admits a session granted every permission.
func RequirePermissions(svc *authservice.Service, permissions ...string) func(http.Handler) http.Handler {
	return Guard(svc, authservice.Requirement{Permissions: permissions})
}
