// Package session turns focus observations into per-application sessions.
//
// Manager is the only component that creates or closes sessions. All state
// changes happen under one mutex; store writes are queued in transition order
// and flushed after the mutex is released.
package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/actionsum/appclock/internal/category"
	"github.com/actionsum/appclock/internal/metrics"
	"github.com/actionsum/appclock/internal/models"
	"github.com/actionsum/appclock/internal/observer"
)

// Close reasons, also used as metric labels.
const (
	ReasonFocusLost    = "focus_lost"
	ReasonStopped      = "stopped"
	ReasonDeregistered = "deregistered"
	ReasonRollover     = "rollover"
	ReasonRecovered    = "recovered"
)

// fallbackCategory guards against a categorizer returning an empty label.
const fallbackCategory = "utilities"

// Store persists sessions. *database.Repository implements it.
type Store interface {
	CreateSession(session *models.Session) error
	CloseSession(id string, end time.Time) error
	TouchSessions(ids []string, at time.Time) error
	SessionsBetween(from, to time.Time) ([]models.Session, error)
	OpenSessions() ([]models.Session, error)
}

// Manager owns the registered app set and the open sessions.
type Manager struct {
	store       Store
	categorizer category.Categorizer
	loc         *time.Location
	logger      *zap.Logger
	metrics     *metrics.Metrics
	newID       func() string

	mu         sync.Mutex
	tracking   bool
	generation uint64
	registered map[string]string          // key -> identifier as registered
	open       map[string]*models.Session // key -> open session
	lastEnd    map[string]time.Time       // key -> end of the previous session

	journal journal
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records session metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(mgr *Manager) { mgr.newID = fn }
}

// WithErrorSink stores writes that had to be dropped.
func WithErrorSink(sink observer.ErrorSink) Option {
	return func(mgr *Manager) { mgr.journal.sink = sink }
}

// NewManager creates a Manager. loc defines calendar days.
func NewManager(store Store, categorizer category.Categorizer, loc *time.Location, logger *zap.Logger, opts ...Option) *Manager {
	if loc == nil {
		loc = time.Local
	}
	m := &Manager{
		store:       store,
		categorizer: categorizer,
		loc:         loc,
		logger:      logger,
		newID:       uuid.NewString,
		registered:  make(map[string]string),
		open:        make(map[string]*models.Session),
		lastEnd:     make(map[string]time.Time),
	}
	m.journal.store = store
	m.journal.logger = logger
	for _, opt := range opts {
		opt(m)
	}
	m.journal.metrics = m.metrics
	return m
}

func key(exe string) string {
	return strings.ToLower(strings.TrimSpace(exe))
}

// Location returns the time zone that defines calendar days.
func (m *Manager) Location() *time.Location {
	return m.loc
}

// Date returns the calendar date of t in the manager's time zone.
func (m *Manager) Date(t time.Time) string {
	return t.In(m.loc).Format(models.DateLayout)
}

// DayStart returns local midnight of the day containing t.
func (m *Manager) DayStart(t time.Time) time.Time {
	t = t.In(m.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, m.loc)
}

func (m *Manager) nextDay(t time.Time) time.Time {
	t = t.In(m.loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, m.loc)
}

// Start replaces the registered app set and begins tracking. Sessions of apps
// that stay registered remain open; the others are closed at now. started is
// true when tracking was not running, in which case gen identifies the new
// tracking run.
func (m *Manager) Start(apps []string, now time.Time) (gen uint64, started bool) {
	m.mu.Lock()

	next := make(map[string]string, len(apps))
	for _, app := range apps {
		if k := key(app); k != "" {
			if _, dup := next[k]; !dup {
				next[k] = strings.TrimSpace(app)
			}
		}
	}

	m.rolloverLocked(now)
	for k, s := range m.open {
		if _, keep := next[k]; !keep {
			m.closeLocked(s, now, ReasonDeregistered)
		}
	}
	m.registered = next

	if !m.tracking {
		m.tracking = true
		m.generation++
		started = true
	}
	gen = m.generation
	m.metrics.SetTracking(true)

	m.logger.Info("tracking apps",
		zap.Strings("apps", m.registeredLocked()),
		zap.Bool("started", started),
		zap.Uint64("generation", gen))

	m.mu.Unlock()
	m.journal.flush()
	return gen, started
}

// Stop closes every open session at now, clears the registered set and
// invalidates the current tracking run. Calling it again is a no-op.
func (m *Manager) Stop(now time.Time) bool {
	m.mu.Lock()
	if !m.tracking {
		m.mu.Unlock()
		return false
	}

	for _, s := range m.openLocked() {
		m.closeLocked(s, now, ReasonStopped)
	}
	m.registered = make(map[string]string)
	m.tracking = false
	m.generation++
	m.metrics.SetTracking(false)
	m.logger.Info("tracking stopped")

	m.mu.Unlock()
	m.journal.flush()
	return true
}

// Apply feeds one observation produced by tracking run gen. Observations of
// a stopped or superseded run are discarded. It reports whether the
// observation was applied.
func (m *Manager) Apply(gen uint64, obs observer.Observation) bool {
	m.mu.Lock()
	if !m.tracking || gen != m.generation {
		m.mu.Unlock()
		return false
	}

	now := obs.Timestamp
	m.rolloverLocked(now)

	focused := key(obs.ExeName)
	for k, s := range m.open {
		if k != focused {
			m.closeLocked(s, now, ReasonFocusLost)
		}
	}

	if exe, ok := m.registered[focused]; ok {
		if _, isOpen := m.open[focused]; !isOpen {
			m.openSessionLocked(exe, now)
		}
	}

	m.mu.Unlock()
	m.journal.flush()
	return true
}

// Tick applies day rollover at now without an observation.
func (m *Manager) Tick(now time.Time) {
	m.mu.Lock()
	changed := m.rolloverLocked(now)
	m.mu.Unlock()
	if changed {
		m.journal.flush()
	}
}

// ActiveSessions returns copies of the open sessions, oldest first, after
// applying day rollover at now.
func (m *Manager) ActiveSessions(now time.Time) []models.Session {
	m.mu.Lock()
	changed := m.rolloverLocked(now)
	open := m.openLocked()
	out := make([]models.Session, 0, len(open))
	for _, s := range open {
		out = append(out, *s)
	}
	m.mu.Unlock()

	if changed {
		m.journal.flush()
	}
	return out
}

// Tracking reports whether tracking is running.
func (m *Manager) Tracking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracking
}

// Generation returns the id of the current tracking run.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Registered returns the registered identifiers, sorted.
func (m *Manager) Registered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registeredLocked()
}

func (m *Manager) registeredLocked() []string {
	out := make([]string, 0, len(m.registered))
	for _, exe := range m.registered {
		out = append(out, exe)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) openLocked() []*models.Session {
	out := make([]*models.Session, 0, len(m.open))
	for _, s := range m.open {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// openSessionLocked creates a session for exe at start. A start that does not
// come strictly after the app's previous session end is moved just past it.
func (m *Manager) openSessionLocked(exe string, start time.Time) *models.Session {
	k := key(exe)
	if prev, ok := m.lastEnd[k]; ok && !start.After(prev) {
		start = prev.Add(time.Nanosecond)
	}

	cat := m.categorizer.Lookup(exe)
	if cat == "" {
		cat = fallbackCategory
	}

	s := &models.Session{
		ID:         m.newID(),
		ExeName:    exe,
		Category:   cat,
		StartTime:  start,
		LastSeenAt: start,
		Date:       m.Date(start),
	}
	m.open[k] = s
	m.journal.enqueue(op{kind: opCreate, session: *s})
	m.metrics.SessionOpened(cat, len(m.open))

	m.logger.Debug("session opened",
		zap.String("id", s.ID),
		zap.String("exe", exe),
		zap.String("category", cat),
		zap.Time("start", start))
	return s
}

func (m *Manager) closeLocked(s *models.Session, end time.Time, reason string) {
	if s.EndTime != nil {
		m.logger.Error("attempt to close a closed session",
			zap.String("id", s.ID),
			zap.String("exe", s.ExeName),
			zap.String("reason", reason))
		return
	}
	if end.Before(s.StartTime) {
		m.logger.Warn("session end before start; clamping",
			zap.String("id", s.ID),
			zap.Time("start", s.StartTime),
			zap.Time("end", end))
		end = s.StartTime
	}

	s.EndTime = &end
	s.LastSeenAt = end

	k := key(s.ExeName)
	if cur, ok := m.open[k]; ok && cur == s {
		delete(m.open, k)
	}
	m.lastEnd[k] = end
	m.journal.enqueue(op{kind: opClose, session: *s})
	m.metrics.SessionClosed(reason, len(m.open))

	m.logger.Debug("session closed",
		zap.String("id", s.ID),
		zap.String("exe", s.ExeName),
		zap.String("reason", reason),
		zap.Int64("seconds", s.TotalSeconds(end)))
}

// rolloverLocked closes sessions that started on an earlier day than now at
// the following midnight and reopens them for the new day.
func (m *Manager) rolloverLocked(now time.Time) bool {
	today := m.Date(now)
	changed := false

	for _, s := range m.openLocked() {
		cur := s
		for cur.Date != today {
			boundary := m.nextDay(cur.StartTime)
			if boundary.After(now) {
				break
			}
			m.closeLocked(cur, boundary, ReasonRollover)
			cur = m.openSessionLocked(cur.ExeName, boundary)
			changed = true
		}
	}
	return changed
}

// Checkpoint records that open sessions were still live at now and retries
// any queued writes.
func (m *Manager) Checkpoint(now time.Time) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.open))
	for _, s := range m.open {
		s.LastSeenAt = now
		ids = append(ids, s.ID)
	}
	m.mu.Unlock()

	m.journal.flush()
	if err := m.store.TouchSessions(ids, now); err != nil {
		m.logger.Warn("failed to checkpoint open sessions", zap.Error(err))
	}
}

// Flush blocks until every queued write has been attempted.
func (m *Manager) Flush() {
	m.journal.flushWait()
}

// Recover closes sessions left open in the store by a previous process at the
// last time they were seen, splitting them at midnight like a rollover.
func (m *Manager) Recover() (int, error) {
	stale, err := m.store.OpenSessions()
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	known := make(map[string]bool, len(m.open))
	for _, s := range m.open {
		known[s.ID] = true
	}

	recovered := 0
	for i := range stale {
		s := stale[i]
		if known[s.ID] {
			continue
		}
		s.StartTime = s.StartTime.In(m.loc)
		end := s.LastSeenAt.In(m.loc)
		if end.Before(s.StartTime) {
			end = s.StartTime
		}

		cur := &s
		for {
			boundary := m.nextDay(cur.StartTime)
			if !end.After(boundary) {
				break
			}
			closeAt := boundary
			cur.EndTime = &closeAt
			m.journal.enqueue(op{kind: opClose, session: *cur})

			next := models.Session{
				ID:         m.newID(),
				ExeName:    cur.ExeName,
				Category:   cur.Category,
				StartTime:  boundary,
				LastSeenAt: end,
				Date:       m.Date(boundary),
			}
			m.journal.enqueue(op{kind: opCreate, session: next})
			cur = &next
		}
		closeAt := end
		cur.EndTime = &closeAt
		m.journal.enqueue(op{kind: opClose, session: *cur})

		if prev, ok := m.lastEnd[key(cur.ExeName)]; !ok || end.After(prev) {
			m.lastEnd[key(cur.ExeName)] = end
		}
		recovered++
		m.metrics.SessionClosed(ReasonRecovered, len(m.open))
		m.logger.Info("recovered session left open by a previous run",
			zap.String("id", s.ID),
			zap.String("exe", s.ExeName),
			zap.Time("end", end))
	}
	m.mu.Unlock()

	m.journal.flushWait()
	return recovered, nil
}

// SessionsBetween returns every session intersecting [from, to): stored
// history merged with writes still queued and the live open sessions.
// Rows left open by a previous process end at their last heartbeat.
func (m *Manager) SessionsBetween(from, to, now time.Time) ([]models.Session, error) {
	m.mu.Lock()
	changed := m.rolloverLocked(now)
	live := make([]models.Session, 0, len(m.open))
	for _, s := range m.open {
		live = append(live, *s)
	}
	queued := m.journal.latest()
	m.mu.Unlock()

	if changed {
		m.journal.flush()
	}

	stored, err := m.store.SessionsBetween(from, to)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]models.Session, len(stored)+len(queued)+len(live))
	for _, s := range stored {
		merged[s.ID] = s
	}
	for _, s := range queued {
		merged[s.ID] = s
	}
	liveIDs := make(map[string]bool, len(live))
	for _, s := range live {
		merged[s.ID] = s
		liveIDs[s.ID] = true
	}

	out := make([]models.Session, 0, len(merged))
	for id, s := range merged {
		if s.EndTime == nil && !liveIDs[id] {
			end := s.LastSeenAt
			if end.Before(s.StartTime) {
				end = s.StartTime
			}
			s.EndTime = &end
		}
		if !s.StartTime.Before(to) || !s.End(now).After(from) {
			continue
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}
