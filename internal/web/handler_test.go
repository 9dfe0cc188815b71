package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/actionsum/appclock/internal/config"
	"github.com/actionsum/appclock/internal/metrics"
	"github.com/actionsum/appclock/internal/models"
	"github.com/actionsum/appclock/internal/tracker"
	"github.com/actionsum/appclock/pkg/window"
)

type fakeTracker struct {
	mu      sync.Mutex
	started []string
	stopped int
	window  *window.WindowInfo
}

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func (f *fakeTracker) StartTracking(apps []string) (tracker.StartResult, error) {
	result := tracker.StartResult{Accepted: []string{}, Rejected: []tracker.Rejection{}}
	for _, a := range apps {
		if strings.TrimSpace(a) == "" {
			result.Rejected = append(result.Rejected, tracker.Rejection{App: a, Error: tracker.ErrInvalidApp.Error()})
			continue
		}
		result.Accepted = append(result.Accepted, a)
	}
	if len(apps) > 0 && len(result.Accepted) == 0 {
		return result, fmt.Errorf("%w: no usable app identifiers", tracker.ErrInvalidApp)
	}
	f.mu.Lock()
	f.started = result.Accepted
	f.mu.Unlock()
	return result, nil
}

func (f *fakeTracker) StopTracking() {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
}

func (f *fakeTracker) setWindow(info *window.WindowInfo) {
	f.mu.Lock()
	f.window = info
	f.mu.Unlock()
}

func (f *fakeTracker) snapshot() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}

func (f *fakeTracker) ActiveSessions() []models.SessionSnapshot {
	return []models.SessionSnapshot{{
		ID: "s1", ExeName: "Code.exe", Category: "productivity",
		StartTime: base, TotalSeconds: 1800, Date: "2024-05-01",
	}}
}

func checkDate(date string) error {
	if date != "" && date != "today" && date != "2024-05-01" {
		return fmt.Errorf("%w: %q", tracker.ErrInvalidDate, date)
	}
	return nil
}

func (f *fakeTracker) ChartDataForDate(date string) (models.ChartData, error) {
	if err := checkDate(date); err != nil {
		return models.ChartData{}, err
	}
	return models.ChartData{
		Columns: []string{"utilities", "entertainment", "productivity"},
		Rows:    []models.ChartRow{{"10", int64(0), int64(0), int64(30)}},
		Total:   30,
	}, nil
}

func (f *fakeTracker) Breakdown(date string) (models.Breakdown, error) {
	if err := checkDate(date); err != nil {
		return models.Breakdown{}, err
	}
	return models.Breakdown{
		Date:         "2024-05-01",
		Hours:        []models.HourBucket{{Hour: 10, Label: "10", Minutes: map[string]int64{"productivity": 30}}},
		TotalMinutes: 30,
	}, nil
}

func (f *fakeTracker) ActiveWindow(ctx context.Context) (*window.WindowInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.window == nil {
		return nil, errors.New("no window")
	}
	return f.window, nil
}

func (f *fakeTracker) TrackedTotals() ([]models.AppTotal, error) {
	return []models.AppTotal{{ExeName: "Code.exe", TotalSeconds: 1800}}, nil
}

func (f *fakeTracker) DailySummary(date string) ([]models.SessionSnapshot, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	end := base.Add(30 * time.Minute)
	return []models.SessionSnapshot{{
		ID: "s1", ExeName: "Code.exe", Category: "productivity",
		StartTime: base, EndTime: &end, TotalSeconds: 1800, Date: "2024-05-01",
	}}, nil
}

func (f *fakeTracker) Status() tracker.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return tracker.Status{Tracking: len(f.started) > 0, Registered: f.started, DisplayServer: "test"}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeTracker) {
	t.Helper()
	ft := &fakeTracker{}
	srv := NewServer(config.Default(), ft, metrics.New(), zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, ft
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestStartTrackingRoute(t *testing.T) {
	ts, ft := newTestServer(t)

	resp, body := post(t, ts.URL+"/api/tracking/start", `{"apps":["Code.exe",""]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out StartResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, []string{"Code.exe"}, out.Accepted)
	require.Len(t, out.Rejected, 1)
	assert.Empty(t, out.Error)
	started, _ := ft.snapshot()
	assert.Equal(t, []string{"Code.exe"}, started)

	resp, body = post(t, ts.URL+"/api/tracking/start", `{"apps":[" "]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Contains(t, out.Error, "invalid app identifier")

	resp, _ = post(t, ts.URL+"/api/tracking/start", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStopTrackingRoute(t *testing.T) {
	ts, ft := newTestServer(t)

	for i := 0; i < 2; i++ {
		resp, body := post(t, ts.URL+"/api/tracking/stop", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"tracking":false}`, string(body))
	}
	_, stopped := ft.snapshot()
	assert.Equal(t, 2, stopped)
}

func TestActiveSessionsRoute(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/api/sessions/active")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var sessions []map[string]any
	require.NoError(t, json.Unmarshal(body, &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "Code.exe", sessions[0]["exe_name"])
	assert.Equal(t, float64(1800), sessions[0]["total_seconds"])
	assert.Equal(t, "2024-05-01T10:00:00Z", sessions[0]["start_time"])
	assert.NotContains(t, sessions[0], "end_time")
}

func TestChartRoute(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/api/chart?date=today")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[["10",0,0,30]]`, string(body))

	resp, body = get(t, ts.URL+"/api/chart?date=01-05-2024")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "invalid date")
}

func TestSummaryAndReportRoutes(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/api/sessions?date=2024-05-01")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"end_time":"2024-05-01T10:30:00Z"`)

	resp, body = get(t, ts.URL+"/api/report?date=2024-05-01")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report models.Report
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, "2024-05-01", report.Date)
	assert.Equal(t, int64(1800), report.TotalSeconds)

	resp, _ = get(t, ts.URL+"/api/breakdown?date=bad")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWindowRoute(t *testing.T) {
	ts, ft := newTestServer(t)

	resp, _ := get(t, ts.URL+"/api/window")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	ft.setWindow(&window.WindowInfo{ExeName: "firefox", WindowTitle: "Docs", ProcessID: 7})
	resp, body := get(t, ts.URL+"/api/window")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"exe_name":"firefox","title":"Docs","process_id":7}`, string(body))
}

func TestTotalsRoute(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/api/totals")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[["Code.exe",1800]]`, string(body))
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := get(t, ts.URL+"/api/tracking/start")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "POST, OPTIONS", resp.Header.Get("Allow"))

	resp, _ = post(t, ts.URL+"/api/chart", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPreflightRequest(t *testing.T) {
	ts, ft := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/tracking/start", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))

	started, _ := ft.snapshot()
	assert.Nil(t, started)
}

func TestEncodeFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := NewHandler(&fakeTracker{}, metrics.New(), zap.New(core))

	rec := httptest.NewRecorder()
	h.respondJSON(rec, map[string]float64{"minutes": math.Inf(1)})

	require.Equal(t, 1, logs.FilterMessage("failed to encode response").Len())
}

func TestHealthStatusAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")

	resp, body = get(t, ts.URL+"/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"display_server":"test"`)

	resp, body = get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "appclock_http_requests_total")
}
