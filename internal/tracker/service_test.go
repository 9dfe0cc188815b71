package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/actionsum/appclock/internal/category"
	"github.com/actionsum/appclock/internal/config"
	"github.com/actionsum/appclock/internal/database"
	"github.com/actionsum/appclock/internal/models"
	"github.com/actionsum/appclock/internal/observer"
	"github.com/actionsum/appclock/internal/session"
	"github.com/actionsum/appclock/pkg/window"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type scriptedDetector struct {
	mu    sync.Mutex
	exe   string
	err   error
	block bool
}

func (d *scriptedDetector) set(exe string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exe, d.err = exe, err
}

func (d *scriptedDetector) GetFocusedWindow(ctx context.Context) (*window.WindowInfo, error) {
	d.mu.Lock()
	exe, err, block := d.exe, d.err, d.block
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &window.WindowInfo{ExeName: exe, WindowTitle: exe + " window", ProcessID: 42}, nil
}
func (d *scriptedDetector) IsAvailable() bool        { return true }
func (d *scriptedDetector) GetDisplayServer() string { return "test" }
func (d *scriptedDetector) Close() error             { return nil }

type harness struct {
	svc   *Service
	det   *scriptedDetector
	clock *manualClock
	repo  *database.Repository
}

func newHarness(t *testing.T, timeout time.Duration) *harness {
	t.Helper()
	return newHarnessAt(t, timeout, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
}

// newHarnessAt starts the clock at start and uses start's location as the
// tracker's time zone.
func newHarnessAt(t *testing.T, timeout time.Duration, start time.Time) *harness {
	t.Helper()
	loc := start.Location()

	db, err := database.Connect(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	repo := database.NewRepository(db)

	cfg := config.Default()
	cfg.Tracker.PollInterval = 10 * time.Millisecond
	cfg.Tracker.CheckpointInterval = 20 * time.Millisecond
	cfg.Tracker.TimeZone = loc.String()

	table, err := category.NewTable(cfg.Categories.Default, map[string]string{
		"Code.exe": "productivity",
		"vlc":      "entertainment",
	})
	require.NoError(t, err)

	clock := &manualClock{now: start}
	det := &scriptedDetector{exe: "explorer.exe"}
	obs := observer.New(det, timeout, zap.NewNop(), observer.WithClock(clock.Now), observer.WithErrorSink(repo))
	manager := session.NewManager(repo, table, loc, zap.NewNop())
	svc := NewService(cfg, manager, obs, zap.NewNop(),
		WithClock(clock.Now),
		WithDisplayServer(det.GetDisplayServer()),
		WithRetention(repo, 30))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Close(ctx)
		_ = db.Close()
	})

	return &harness{svc: svc, det: det, clock: clock, repo: repo}
}

func TestStartTrackingValidatesApps(t *testing.T) {
	h := newHarness(t, time.Second)

	result, err := h.svc.StartTracking([]string{"", "  ", "vlc", "VLC", "Code.exe"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vlc", "Code.exe"}, result.Accepted)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, ErrInvalidApp.Error(), result.Rejected[0].Error)
	assert.True(t, h.svc.IsRunning())

	_, err = h.svc.StartTracking([]string{" "})
	assert.True(t, errors.Is(err, ErrInvalidApp))
	assert.Equal(t, []string{"Code.exe", "vlc"}, h.svc.Status().Registered)
}

func TestTrackingScenario(t *testing.T) {
	h := newHarness(t, time.Second)
	h.det.set("Code.exe", nil)

	_, err := h.svc.StartTracking([]string{"Code.exe"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.svc.ActiveSessions()) == 1
	}, time.Second, 5*time.Millisecond)

	h.clock.Set(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))
	active := h.svc.ActiveSessions()
	require.Len(t, active, 1)
	assert.Equal(t, "Code.exe", active[0].ExeName)
	assert.Equal(t, "productivity", active[0].Category)
	assert.Equal(t, int64(1800), active[0].TotalSeconds)
	assert.Equal(t, "2024-05-01", active[0].Date)

	h.det.set("explorer.exe", nil)
	require.Eventually(t, func() bool {
		return len(h.svc.ActiveSessions()) == 0
	}, time.Second, 5*time.Millisecond)

	chart, err := h.svc.ChartDataForDate("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, []models.ChartRow{{"10", int64(0), int64(0), int64(30)}}, chart.Rows)
	assert.Equal(t, int64(30), chart.Total)

	today, err := h.svc.ChartDataForDate("today")
	require.NoError(t, err)
	assert.Equal(t, chart.Rows, today.Rows)

	totals, err := h.svc.TrackedTotals()
	require.NoError(t, err)
	assert.Equal(t, []models.AppTotal{{ExeName: "Code.exe", TotalSeconds: 1800}}, totals)

	summary, err := h.svc.DailySummary("2024-05-01")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	require.NotNil(t, summary[0].EndTime)
}

func TestTrackingScenarioInLocalZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 20:00 local on May 1 is midnight UTC on May 2.
	start := time.Date(2024, 5, 1, 20, 0, 0, 0, ny)
	h := newHarnessAt(t, time.Second, start)
	h.det.set("Code.exe", nil)

	_, err = h.svc.StartTracking([]string{"Code.exe"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(h.svc.ActiveSessions()) == 1
	}, time.Second, 5*time.Millisecond)

	h.clock.Set(start.Add(30 * time.Minute))
	h.det.set("explorer.exe", nil)
	require.Eventually(t, func() bool {
		return len(h.svc.ActiveSessions()) == 0
	}, time.Second, 5*time.Millisecond)

	chart, err := h.svc.ChartDataForDate("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, []models.ChartRow{{"20", int64(0), int64(0), int64(30)}}, chart.Rows)

	today, err := h.svc.ChartDataForDate("today")
	require.NoError(t, err)
	assert.Equal(t, chart.Rows, today.Rows)

	next, err := h.svc.ChartDataForDate("2024-05-02")
	require.NoError(t, err)
	assert.Empty(t, next.Rows)

	summary, err := h.svc.DailySummary("2024-05-01")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, "2024-05-01", summary[0].Date)
	assert.Equal(t, int64(1800), summary[0].TotalSeconds)
}

func TestStopTrackingIsIdempotent(t *testing.T) {
	h := newHarness(t, time.Second)
	h.det.set("vlc", nil)

	_, err := h.svc.StartTracking([]string{"vlc"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(h.svc.ActiveSessions()) == 1
	}, time.Second, 5*time.Millisecond)

	h.svc.StopTracking()
	h.svc.StopTracking()

	assert.False(t, h.svc.IsRunning())
	assert.Empty(t, h.svc.ActiveSessions())

	open, err := h.repo.OpenSessions()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestFailedObservationsKeepSessionsOpen(t *testing.T) {
	h := newHarness(t, time.Second)
	h.det.set("vlc", nil)

	_, err := h.svc.StartTracking([]string{"vlc"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(h.svc.ActiveSessions()) == 1
	}, time.Second, 5*time.Millisecond)
	id := h.svc.ActiveSessions()[0].ID

	h.det.set("", errors.New("display unavailable"))
	time.Sleep(50 * time.Millisecond)

	active := h.svc.ActiveSessions()
	require.Len(t, active, 1)
	assert.Equal(t, id, active[0].ID)
}

func TestQueriesDoNotWaitForDetector(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.det.mu.Lock()
	h.det.block = true
	h.det.mu.Unlock()

	_, err := h.svc.StartTracking([]string{"vlc"})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.svc.ActiveSessions()
		_, _ = h.svc.ChartDataForDate("today")
		h.svc.StopTracking()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queries blocked on the detector")
	}
}

func TestChartDataRejectsMalformedDates(t *testing.T) {
	h := newHarness(t, time.Second)

	for _, date := range []string{"yesterday", "2024-13-01", "05/01/2024", "2024-5-1"} {
		_, err := h.svc.ChartDataForDate(date)
		assert.True(t, errors.Is(err, ErrInvalidDate), date)
	}

	chart, err := h.svc.ChartDataForDate(" Today ")
	require.NoError(t, err)
	assert.Empty(t, chart.Rows)
}

func TestActiveWindow(t *testing.T) {
	h := newHarness(t, time.Second)
	h.det.set("firefox", nil)

	info, err := h.svc.ActiveWindow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "firefox", info.ExeName)
	assert.Equal(t, uint32(42), info.ProcessID)
	assert.Empty(t, h.svc.ActiveSessions())
}

func TestStatus(t *testing.T) {
	h := newHarness(t, time.Second)

	status := h.svc.Status()
	assert.False(t, status.Tracking)
	assert.Equal(t, "test", status.DisplayServer)
	assert.Equal(t, "UTC", status.TimeZone)
	assert.Equal(t, "10ms", status.PollInterval)
	assert.Empty(t, status.Registered)
}

func TestPruneHistory(t *testing.T) {
	h := newHarness(t, time.Second)

	old := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := old.Add(time.Hour)
	require.NoError(t, h.repo.CreateSession(&models.Session{
		ID: "old", ExeName: "vlc", Category: "entertainment",
		StartTime: old, EndTime: &end, LastSeenAt: end, Date: "2024-03-01",
	}))
	recent := time.Date(2024, 4, 28, 10, 0, 0, 0, time.UTC)
	recentEnd := recent.Add(time.Hour)
	require.NoError(t, h.repo.CreateSession(&models.Session{
		ID: "recent", ExeName: "vlc", Category: "entertainment",
		StartTime: recent, EndTime: &recentEnd, LastSeenAt: recentEnd, Date: "2024-04-28",
	}))

	n, err := h.svc.PruneHistory()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = h.repo.GetSession("recent")
	assert.NoError(t, err)
}
