package internaldefs

import (
	"github.com/MrEthical07/authservice"
)

// CounterDef names one counter for every exporter.
type CounterDef struct {
	ID   authservice.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram for every exporter.
type HistogramDef struct {
	ID   authservice.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authservice.MetricLoginSuccess, Name: "authservice_login_success_total", Help: "Successful logins."},
	{ID: authservice.MetricLoginFailure, Name: "authservice_login_failure_total", Help: "Logins rejected for invalid credentials."},
	{ID: authservice.MetricRefreshSuccess, Name: "authservice_refresh_success_total", Help: "Sessions refreshed."},
	{ID: authservice.MetricRefreshFailure, Name: "authservice_refresh_failure_total", Help: "Refresh attempts that failed."},
	{ID: authservice.MetricLogout, Name: "authservice_logout_total", Help: "Sessions ended by logout."},
	{ID: authservice.MetricLogoutFailure, Name: "authservice_logout_failure_total", Help: "Logout attempts that failed."},
	{ID: authservice.MetricSessionCreated, Name: "authservice_session_created_total", Help: "Created sessions."},
	{ID: authservice.MetricSessionExpired, Name: "authservice_session_expired_total", Help: "Expired sessions reclaimed by the sweeper."},
	{ID: authservice.MetricSessionsCleared, Name: "authservice_sessions_cleared_total", Help: "Sessions discarded on shutdown."},
	{ID: authservice.MetricRoleCheck, Name: "authservice_role_check_total", Help: "Role checks."},
	{ID: authservice.MetricRoleDenied, Name: "authservice_role_denied_total", Help: "Role checks answered false."},
	{ID: authservice.MetricPermissionCheck, Name: "authservice_permission_check_total", Help: "Permission checks."},
	{ID: authservice.MetricPermissionDenied, Name: "authservice_permission_denied_total", Help: "Permission checks answered false."},
	{ID: authservice.MetricSessionNotFound, Name: "authservice_session_not_found_total", Help: "Operations on unknown or expired sessions."},
	{ID: authservice.MetricFatalError, Name: "authservice_fatal_error_total", Help: "Fatal errors such as backend or entropy failure."},
	{ID: authservice.MetricSweepRun, Name: "authservice_sweep_run_total", Help: "Completed sweeper passes."},
	{ID: authservice.MetricSweepFailure, Name: "authservice_sweep_failure_total", Help: "Sweeper passes that failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: authservice.MetricLoginLatency, Name: "authservice_login_latency_seconds", Help: "Login latency including credential verification."},
	{ID: authservice.MetricCheckLatency, Name: "authservice_check_latency_seconds", Help: "Role and permission check latency."},
}

// HistogramUpperBounds holds the finite bucket bounds in seconds. The last
// snapshot bucket is +Inf.
var HistogramUpperBounds = []float64{
	0.0001,
	0.00025,
	0.0005,
	0.001,
	0.005,
	0.01,
	0.05,
}

// HistogramBoundSuffix names every bucket, +Inf included, for exporters that
// publish one instrument per bucket.
var HistogramBoundSuffix = []string{
	"0_0001",
	"0_00025",
	"0_0005",
	"0_001",
	"0_005",
	"0_01",
	"0_05",
	"inf",
}

const AuditDroppedName = "authservice_audit_dropped_total"

const AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
