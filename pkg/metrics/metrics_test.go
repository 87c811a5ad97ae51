package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLoginAttempt(t *testing.T) {
	before := testutil.ToFloat64(loginAttempts.WithLabelValues(LoginTimedOut))
	RecordLoginAttempt(LoginTimedOut)
	assert.Equal(t, before+1, testutil.ToFloat64(loginAttempts.WithLabelValues(LoginTimedOut)))
}

func TestRecordStatusTransition(t *testing.T) {
	before := testutil.ToFloat64(statusTransitions.WithLabelValues("PUBLISHED", "true"))
	RecordStatusTransition("PUBLISHED", true)
	assert.Equal(t, before+1, testutil.ToFloat64(statusTransitions.WithLabelValues("PUBLISHED", "true")))
}

func TestRecordLogoutAndStale(t *testing.T) {
	before := testutil.ToFloat64(logouts.WithLabelValues("false"))
	RecordLogout(false)
	assert.Equal(t, before+1, testutil.ToFloat64(logouts.WithLabelValues("false")))

	staleBefore := testutil.ToFloat64(staleSnapshots)
	RecordStaleListing()
	assert.Equal(t, staleBefore+1, testutil.ToFloat64(staleSnapshots))
}

func TestObserveHistograms(t *testing.T) {
	ObserveHTTPRequest("GET", "GET /{$}", 200, 15*time.Millisecond)
	ObserveAPIRequest("GET", 200, 20*time.Millisecond)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(httpRequestDuration, "ekaya_admin_http_request_duration_seconds"), 1)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(apiRequestDuration), 1)
}

func TestRegisterSizeGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	listings, sessions := 3, 2
	RegisterSizeGauges(reg, func() int { return listings }, func() int { return sessions })

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	expected := `
# HELP ekaya_admin_product_listings Browsers holding a product listing
# TYPE ekaya_admin_product_listings gauge
ekaya_admin_product_listings 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ekaya_admin_product_listings"))

	sessions = 5
	expected = `
# HELP ekaya_admin_memory_sessions Sessions held by the in-memory token store
# TYPE ekaya_admin_memory_sessions gauge
ekaya_admin_memory_sessions 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ekaya_admin_memory_sessions"))
}

func TestRegisterSizeGauges_WithoutSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterSizeGauges(reg, func() int { return 0 }, nil)

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
