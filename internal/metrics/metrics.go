// Package metrics holds Prometheus instruments used across the admin
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultError   = "error"
	ResultDenied  = "denied"
)

var (
	ContentMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteadmin_content_mutations_total",
			Help: "Content writes by entity, operation, and result.",
		}, []string{"entity", "op", "result"})

	AssetCleanupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteadmin_asset_cleanup_failures_total",
			Help: "Deletes whose asset removal failed while the row delete went ahead.",
		}, []string{"entity"})

	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteadmin_uploads_total",
			Help: "Asset uploads by site and result.",
		}, []string{"site", "result"})

	UploadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "siteadmin_upload_bytes_total",
			Help: "Cumulative bytes stored by successful uploads.",
		})

	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteadmin_login_attempts_total",
			Help: "Login attempts by result.",
		}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		ContentMutations,
		AssetCleanupFailures,
		Uploads,
		UploadBytes,
		LoginAttempts,
	)
}
