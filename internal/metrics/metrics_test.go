package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCounters(t *testing.T) {
	m := New()

	m.SessionOpened("productivity", 1)
	m.SessionOpened("productivity", 2)
	m.SessionClosed("focus_lost", 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsOpened.WithLabelValues("productivity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsClosed.WithLabelValues("focus_lost")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsOpen))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObservationRecorded("ok")
	m.SetTracking(true)
	m.SessionOpened("x", 1)
	m.SessionClosed("stop", 0)
	m.PersistFailed()
	m.RequestServed("GET", "/health", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObservationRecorded("failed")
	m.SetTracking(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `appclock_observations_total{result="failed"} 1`))
	assert.True(t, strings.Contains(body, "appclock_tracking_active 1"))
}
