// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes.
const (
	LoginSucceeded  = "succeeded"
	LoginRejected   = "rejected"
	LoginTimedOut   = "timed_out"
	LoginNetwork    = "network_error"
	LoginInvalid    = "invalid_input"
	LoginStoreError = "store_error"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ekaya_admin_http_request_duration_seconds",
			Help:    "Dashboard HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ekaya_admin_api_request_duration_seconds",
			Help:    "Products API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_admin_login_attempts_total",
			Help: "Login submissions by outcome",
		},
		[]string{"outcome"},
	)
	logouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_admin_logouts_total",
			Help: "Logouts by whether the API acknowledged them",
		},
		[]string{"api_reached"},
	)
	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_admin_status_transitions_total",
			Help: "Approve/decline requests by target status and success",
		},
		[]string{"status", "success"},
	)
	staleSnapshots = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ekaya_admin_stale_listings_discarded_total",
			Help: "Product listings discarded because a newer listing was already applied",
		},
	)
)

// ObserveHTTPRequest records a dashboard request. route should be the mux pattern, not the raw path.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveAPIRequest records an outgoing products API request. status 0 means no response.
func ObserveAPIRequest(method string, status int, d time.Duration) {
	apiRequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordLoginAttempt counts a login submission.
func RecordLoginAttempt(outcome string) {
	loginAttempts.WithLabelValues(outcome).Inc()
}

// RecordLogout counts a logout.
func RecordLogout(apiReached bool) {
	logouts.WithLabelValues(strconv.FormatBool(apiReached)).Inc()
}

// RecordStatusTransition counts an approve/decline request.
func RecordStatusTransition(status string, success bool) {
	statusTransitions.WithLabelValues(status, strconv.FormatBool(success)).Inc()
}

// RecordStaleListing counts a discarded out-of-order listing.
func RecordStaleListing() {
	staleSnapshots.Inc()
}

// RegisterSizeGauges exports the number of browsers holding a product listing
// and, when sessions is non-nil, the number of in-memory sessions.
func RegisterSizeGauges(reg prometheus.Registerer, listings, sessions func() int) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ekaya_admin_product_listings",
		Help: "Browsers holding a product listing",
	}, func() float64 { return float64(listings()) })
	if sessions != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ekaya_admin_memory_sessions",
			Help: "Sessions held by the in-memory token store",
		}, func() float64 { return float64(sessions()) })
	}
}
