// Package metrics exposes Prometheus instrumentation for the auth subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AccessValidations counts access token validations by result
	// (ok, expired, invalid, inactive_user).
	AccessValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_access_validations_total",
		Help: "Access token validations by result.",
	}, []string{"result"})

	// RefreshRotations counts refresh rotations by result (ok, rejected).
	RefreshRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_refresh_rotations_total",
		Help: "Refresh token rotations by result.",
	}, []string{"result"})

	// ReuseDetections counts refresh secrets presented after they were spent.
	ReuseDetections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_reuse_detections_total",
		Help: "Refresh token reuse detections.",
	})

	// SessionsEvicted counts sessions evicted by the per-user cap.
	SessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_sessions_evicted_total",
		Help: "Sessions evicted by the per-user session cap.",
	})

	// AuthorizationDenied counts role-check denials.
	AuthorizationDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_authorization_denied_total",
		Help: "Requests denied by role checks.",
	})

	// SweptTokens counts refresh tokens removed by the background sweep.
	SweptTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_swept_tokens_total",
		Help: "Refresh tokens removed by the background sweep.",
	})

	// SweptSessions counts sessions ended by the background sweep.
	SweptSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_swept_sessions_total",
		Help: "Sessions ended by the background sweep.",
	})
)
