package session

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/actionsum/appclock/internal/database"
	"github.com/actionsum/appclock/internal/metrics"
	"github.com/actionsum/appclock/internal/models"
	"github.com/actionsum/appclock/internal/observer"
)

// reportAfter is the number of failed attempts after which a stuck write is
// recorded in the error log. The write itself stays queued until it succeeds.
const reportAfter = 5

type opKind int

const (
	opCreate opKind = iota
	opClose
)

func (k opKind) String() string {
	if k == opCreate {
		return "create"
	}
	return "close"
}

type op struct {
	kind     opKind
	session  models.Session
	attempts int
}

// journal is a FIFO of store writes. Writes are appended in transition order
// and applied by one drainer at a time, so the store sees them in the same
// order. A failed write stays at the head and is retried on the next flush;
// nothing is dropped, so latest() keeps serving history while the store is down.
type journal struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	sink    observer.ErrorSink

	mu    sync.Mutex
	queue []op

	writer sync.Mutex
}

func (j *journal) enqueue(o op) {
	j.mu.Lock()
	j.queue = append(j.queue, o)
	j.mu.Unlock()
}

func (j *journal) pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.queue)
}

// latest returns the newest queued state of every session with a pending write.
func (j *journal) latest() []models.Session {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.queue) == 0 {
		return nil
	}
	byID := make(map[string]int, len(j.queue))
	out := make([]models.Session, 0, len(j.queue))
	for _, o := range j.queue {
		if i, ok := byID[o.session.ID]; ok {
			out[i] = o.session
			continue
		}
		byID[o.session.ID] = len(out)
		out = append(out, o.session)
	}
	return out
}

// flush drains the queue unless another goroutine is already draining it.
func (j *journal) flush() {
	for {
		if !j.writer.TryLock() {
			return
		}
		ok := j.drain()
		j.writer.Unlock()
		if !ok || j.pending() == 0 {
			return
		}
	}
}

// flushWait drains the queue, waiting for a concurrent drainer to finish.
func (j *journal) flushWait() {
	j.writer.Lock()
	defer j.writer.Unlock()
	j.drain()
}

// drain must be called with writer held. It returns false when a write failed.
func (j *journal) drain() bool {
	for {
		j.mu.Lock()
		if len(j.queue) == 0 {
			j.mu.Unlock()
			return true
		}
		next := j.queue[0]
		j.mu.Unlock()

		err := j.apply(next)

		j.mu.Lock()
		if err == nil {
			j.queue = j.queue[1:]
			j.mu.Unlock()
			continue
		}
		j.queue[0].attempts++
		attempts := j.queue[0].attempts
		j.mu.Unlock()

		j.metrics.PersistFailed()
		fields := []zap.Field{
			zap.String("op", next.kind.String()),
			zap.String("id", next.session.ID),
			zap.String("exe", next.session.ExeName),
			zap.Int("attempts", attempts),
			zap.Error(err),
		}
		if attempts != reportAfter {
			j.logger.Warn("failed to persist session; will retry", fields...)
			return false
		}

		j.logger.Error("session write keeps failing; still queued", fields...)
		if j.sink != nil {
			_ = j.sink.RecordError("session", errors.Wrapf(err, "%s session %s", next.kind, next.session.ID))
		}
		return false
	}
}

func (j *journal) apply(o op) error {
	switch o.kind {
	case opCreate:
		s := o.session
		return j.store.CreateSession(&s)
	case opClose:
		if o.session.EndTime == nil {
			return errors.Errorf("close of session %s without end time", o.session.ID)
		}
		err := j.store.CloseSession(o.session.ID, *o.session.EndTime)
		if errors.Is(err, database.ErrSessionNotFound) {
			j.logger.Warn("closed session missing from store; inserting it",
				zap.String("id", o.session.ID))
			s := o.session
			return j.store.CreateSession(&s)
		}
		if errors.Is(err, database.ErrSessionClosed) {
			j.logger.Warn("session already closed in store",
				zap.String("id", o.session.ID))
			return nil
		}
		return err
	}
	return errors.Errorf("unknown session write %d", o.kind)
}
