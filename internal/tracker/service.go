package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/actionsum/appclock/internal/aggregate"
	"github.com/actionsum/appclock/internal/config"
	"github.com/actionsum/appclock/internal/models"
	"github.com/actionsum/appclock/internal/observer"
	"github.com/actionsum/appclock/internal/session"
	"github.com/actionsum/appclock/pkg/window"
)

var (
	// ErrInvalidApp is returned for an empty application identifier.
	ErrInvalidApp = errors.New("invalid app identifier")
	// ErrInvalidDate is returned for a date that is neither "today" nor YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
)

// Rejection explains why one identifier passed to StartTracking was refused.
type Rejection struct {
	App   string `json:"app"`
	Error string `json:"error"`
}

// StartResult lists which identifiers StartTracking registered.
type StartResult struct {
	Accepted []string    `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
}

// Status describes the tracker at a point in time.
type Status struct {
	Tracking      bool      `json:"tracking"`
	Registered    []string  `json:"registered_apps"`
	OpenSessions  int       `json:"open_sessions"`
	DisplayServer string    `json:"display_server"`
	TimeZone      string    `json:"time_zone"`
	PollInterval  string    `json:"poll_interval"`
	StartedAt     time.Time `json:"started_at"`
	Now           time.Time `json:"now"`
}

// Service exposes the tracker operations and runs the observation loop.
type Service struct {
	config        *config.Config
	manager       *session.Manager
	observer      *observer.Observer
	logger        *zap.Logger
	clock         func() time.Time
	displayServer string
	startedAt     time.Time

	pruner        Pruner
	retentionDays int
	lastPruned    string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Pruner deletes closed sessions that ended before a cutoff.
type Pruner interface {
	DeleteSessionsBefore(before time.Time) (int64, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithDisplayServer sets the display server name reported by Status.
func WithDisplayServer(name string) Option {
	return func(s *Service) { s.displayServer = name }
}

// WithRetention deletes history older than days whole days. Zero keeps everything.
func WithRetention(p Pruner, days int) Option {
	return func(s *Service) {
		s.pruner = p
		s.retentionDays = days
	}
}

// NewService wires the session manager and the observer together.
func NewService(cfg *config.Config, manager *session.Manager, obs *observer.Observer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		config:        cfg,
		manager:       manager,
		observer:      obs,
		logger:        logger,
		clock:         time.Now,
		displayServer: "unknown",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.clock()
	return s
}

// StartTracking replaces the registered app set and starts the observation
// loop if it is not running. Blank identifiers are rejected individually; an
// error is returned only when identifiers were given and none was accepted.
func (s *Service) StartTracking(apps []string) (StartResult, error) {
	result := StartResult{Accepted: []string{}, Rejected: []Rejection{}}
	seen := make(map[string]bool, len(apps))
	for _, app := range apps {
		name := strings.TrimSpace(app)
		if name == "" {
			result.Rejected = append(result.Rejected, Rejection{App: app, Error: ErrInvalidApp.Error()})
			continue
		}
		k := strings.ToLower(name)
		if seen[k] {
			continue
		}
		seen[k] = true
		result.Accepted = append(result.Accepted, name)
	}

	if len(apps) > 0 && len(result.Accepted) == 0 {
		return result, fmt.Errorf("%w: no usable app identifiers", ErrInvalidApp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gen, started := s.manager.Start(result.Accepted, s.clock())
	if started {
		s.startLoop(gen)
	}
	return result, nil
}

// StopTracking closes all open sessions and cancels the observation loop
// without waiting for an in-flight detector query. It is idempotent.
func (s *Service) StopTracking() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manager.Stop(s.clock())
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// IsRunning reports whether tracking is active.
func (s *Service) IsRunning() bool {
	return s.manager.Tracking()
}

// Close stops tracking, waits for the loop to exit and flushes pending writes.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	s.StopTracking()

	var err error
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	s.manager.Flush()
	return err
}

func (s *Service) startLoop(gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.run(ctx, gen, done)
}

func (s *Service) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	poll := s.config.Tracker.PollInterval
	s.logger.Info("observation loop started",
		zap.Duration("poll_interval", poll),
		zap.Uint64("generation", gen))

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var checkpointC <-chan time.Time
	if interval := s.config.Tracker.CheckpointInterval; interval > 0 {
		checkpoint := time.NewTicker(interval)
		defer checkpoint.Stop()
		checkpointC = checkpoint.C
	}

	s.trackOnce(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("observation loop stopped", zap.Uint64("generation", gen))
			return
		case <-ticker.C:
			s.trackOnce(ctx, gen)
		case <-checkpointC:
			now := s.clock()
			s.manager.Checkpoint(now)
			s.pruneDaily(now)
		}
	}
}

// PruneHistory deletes sessions that ended before the retention window.
func (s *Service) PruneHistory() (int64, error) {
	if s.pruner == nil || s.retentionDays <= 0 {
		return 0, nil
	}
	today := s.manager.DayStart(s.clock())
	cutoff := time.Date(today.Year(), today.Month(), today.Day()-s.retentionDays, 0, 0, 0, 0, today.Location())
	n, err := s.pruner.DeleteSessionsBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned old sessions", zap.Int64("deleted", n), zap.Time("before", cutoff))
	}
	return n, nil
}

// pruneDaily runs PruneHistory at most once per calendar day. It is only
// called from the observation loop.
func (s *Service) pruneDaily(now time.Time) {
	date := s.manager.Date(now)
	if date == s.lastPruned {
		return
	}
	s.lastPruned = date
	if _, err := s.PruneHistory(); err != nil {
		s.logger.Warn("retention sweep failed", zap.Error(err))
	}
}

func (s *Service) trackOnce(ctx context.Context, gen uint64) {
	obs, ok := s.observer.Observe(ctx)
	if !ok {
		s.manager.Tick(s.clock())
		return
	}
	s.manager.Apply(gen, obs)
}

// ActiveSessions returns the open sessions with live totals.
func (s *Service) ActiveSessions() []models.SessionSnapshot {
	now := s.clock()
	open := s.manager.ActiveSessions(now)
	out := make([]models.SessionSnapshot, 0, len(open))
	for i := range open {
		out = append(out, open[i].Snapshot(now))
	}
	return out
}

// ResolveDate turns "today" or YYYY-MM-DD into local midnight of that day.
func (s *Service) ResolveDate(date string) (time.Time, error) {
	now := s.clock()
	date = strings.TrimSpace(date)
	if date == "" || strings.EqualFold(date, "today") {
		return s.manager.DayStart(now), nil
	}
	day, err := time.ParseInLocation(models.DateLayout, date, s.manager.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return day, nil
}

func (s *Service) sessionsForDay(day time.Time, now time.Time) ([]models.Session, error) {
	next := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location())
	sessions, err := s.manager.SessionsBetween(day, next, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions for %s: %w", day.Format(models.DateLayout), err)
	}
	return sessions, nil
}

// Breakdown returns the hourly per-category breakdown of a day.
func (s *Service) Breakdown(date string) (models.Breakdown, error) {
	day, err := s.ResolveDate(date)
	if err != nil {
		return models.Breakdown{}, err
	}
	now := s.clock()
	sessions, err := s.sessionsForDay(day, now)
	if err != nil {
		return models.Breakdown{}, err
	}
	return aggregate.HourlyBreakdown(day, sessions, now), nil
}

// ChartDataForDate returns the chart rows of a day in the configured column order.
func (s *Service) ChartDataForDate(date string) (models.ChartData, error) {
	b, err := s.Breakdown(date)
	if err != nil {
		return models.ChartData{}, err
	}
	return aggregate.ChartRows(b, s.config.Categories.Columns), nil
}

// ActiveWindow reports the window currently in focus. It does not affect sessions.
func (s *Service) ActiveWindow(ctx context.Context) (*window.WindowInfo, error) {
	return s.observer.ActiveWindow(ctx)
}

// TrackedTotals returns today's tracked seconds per executable.
func (s *Service) TrackedTotals() ([]models.AppTotal, error) {
	now := s.clock()
	sessions, err := s.sessionsForDay(s.manager.DayStart(now), now)
	if err != nil {
		return nil, err
	}
	return aggregate.Totals(sessions, now), nil
}

// DailySummary returns every session that overlaps the given day.
func (s *Service) DailySummary(date string) ([]models.SessionSnapshot, error) {
	day, err := s.ResolveDate(date)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	sessions, err := s.sessionsForDay(day, now)
	if err != nil {
		return nil, err
	}
	out := make([]models.SessionSnapshot, 0, len(sessions))
	for i := range sessions {
		out = append(out, sessions[i].Snapshot(now))
	}
	return out, nil
}

// Status returns the current tracker status.
func (s *Service) Status() Status {
	now := s.clock()
	return Status{
		Tracking:      s.manager.Tracking(),
		Registered:    s.manager.Registered(),
		OpenSessions:  len(s.manager.ActiveSessions(now)),
		DisplayServer: s.displayServer,
		TimeZone:      s.manager.Location().String(),
		PollInterval:  s.config.Tracker.PollInterval.String(),
		StartedAt:     s.startedAt,
		Now:           now,
	}
}
