// Package observer samples OS focus at a bounded cost per call.
package observer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/actionsum/appclock/internal/metrics"
	"github.com/actionsum/appclock/pkg/window"
)

// Observation is one sample of OS focus state.
type Observation struct {
	ExeName     string
	WindowTitle string
	ProcessID   uint32
	Timestamp   time.Time
}

// ErrorSink stores failures that are handled locally.
type ErrorSink interface {
	RecordError(source string, err error) error
}

// Observer wraps a window.Detector so that a query never takes longer than
// the configured timeout and failures turn into "no observation".
type Observer struct {
	detector window.Detector
	timeout  time.Duration
	clock    func() time.Time
	logger   *zap.Logger
	sink     ErrorSink
	metrics  *metrics.Metrics

	mu      sync.Mutex
	lastErr string
}

// Option configures an Observer.
type Option func(*Observer)

// WithClock overrides the time source used to stamp observations.
func WithClock(clock func() time.Time) Option {
	return func(o *Observer) { o.clock = clock }
}

// WithErrorSink stores each distinct failure through sink.
func WithErrorSink(sink ErrorSink) Option {
	return func(o *Observer) { o.sink = sink }
}

// WithMetrics counts observations by result.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Observer) { o.metrics = m }
}

// New creates an observer. A non-positive timeout disables the bound.
func New(detector window.Detector, timeout time.Duration, logger *zap.Logger, opts ...Option) *Observer {
	o := &Observer{
		detector: detector,
		timeout:  timeout,
		clock:    time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type result struct {
	info *window.WindowInfo
	err  error
}

// ActiveWindow queries the focused window, giving up after the timeout.
func (o *Observer) ActiveWindow(ctx context.Context) (*window.WindowInfo, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	// Buffered so an abandoned query can still finish and exit.
	done := make(chan result, 1)
	go func() {
		info, err := o.detector.GetFocusedWindow(ctx)
		done <- result{info: info, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.info == nil || strings.TrimSpace(r.info.ExeName) == "" {
			return nil, fmt.Errorf("detector returned no executable name")
		}
		return r.info, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("focus query abandoned: %w", ctx.Err())
	}
}

// Observe samples the focused window. ok is false when the OS query failed,
// timed out or returned nothing usable; callers treat that as "focus unknown".
func (o *Observer) Observe(ctx context.Context) (Observation, bool) {
	at := o.clock()

	info, err := o.ActiveWindow(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// The caller stopped; not a detector failure.
			return Observation{}, false
		}
		o.fail(err)
		return Observation{}, false
	}

	o.recovered()
	o.metrics.ObservationRecorded("ok")

	return Observation{
		ExeName:     strings.TrimSpace(info.ExeName),
		WindowTitle: info.WindowTitle,
		ProcessID:   info.ProcessID,
		Timestamp:   at,
	}, true
}

// fail logs and stores a failure once per distinct message so a missing
// display does not write a row every poll.
func (o *Observer) fail(err error) {
	label := "failed"
	if errors.Is(err, context.DeadlineExceeded) {
		label = "timeout"
	}
	o.metrics.ObservationRecorded(label)

	o.mu.Lock()
	repeated := o.lastErr == err.Error()
	o.lastErr = err.Error()
	o.mu.Unlock()

	if repeated {
		o.logger.Debug("focus query failed again", zap.Error(err))
		return
	}

	o.logger.Warn("focus query failed; skipping cycle", zap.Error(err))
	if o.sink != nil {
		if serr := o.sink.RecordError("observer", err); serr != nil {
			o.logger.Error("failed to store observer error", zap.Error(serr))
		}
	}
}

func (o *Observer) recovered() {
	o.mu.Lock()
	had := o.lastErr != ""
	o.lastErr = ""
	o.mu.Unlock()

	if had {
		o.logger.Info("focus query recovered")
	}
}
