// Package metrics provides the centralized Prometheus metrics registry for
// the export pipeline. All metrics are defined in their respective packages
// (admanager, importer, quota, settings) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the export pipeline.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/admanager):
//   - gam_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - gam_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - gam_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/admanager):
//   - gam_retries_total{error_class} (Counter): Retry attempts by error class
//   - gam_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - gam_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Import Metrics (pkg/importer):
//   - gam_import_pages_fetched_total (Counter): Pages fetched across all sessions
//   - gam_import_records_retrieved_total (Counter): Records written to destinations
//   - gam_import_failures_total (Counter): Import sessions that ended cancelled
//
// Quota Metrics (pkg/quota):
//   - gam_quota_slot_rejections_total (Counter): Imports rejected at the concurrent-import cap
//   - gam_quota_blocks_total (Counter): Requests blocked by an exhausted fault budget
//   - gam_quota_faults_total (Counter): Upstream faults recorded against the budget
//
// Settings Metrics (pkg/settings):
//   - gam_directory_cache_hits_total (Counter): Publisher directory cache hits
//   - gam_directory_cache_misses_total (Counter): Publisher directory cache misses
//   - gam_settings_errors_total{operation} (Counter): Settings store errors by operation
//
// Example Prometheus Queries:
//
//   # Directory Cache Hit Rate
//   rate(gam_directory_cache_hits_total[5m]) /
//   (rate(gam_directory_cache_hits_total[5m]) + rate(gam_directory_cache_misses_total[5m]))
//
//   # Import Failure Rate
//   rate(gam_import_failures_total[15m])
//
//   # Request Error Rate
//   rate(gam_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(gam_request_duration_seconds_bucket[5m]))
//
//   # Retry Pressure by Class
//   sum by (error_class) (rate(gam_retries_total[5m]))
