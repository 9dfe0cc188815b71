// Package autostart begins tracking once one of a configured set of
// applications is running.
package autostart

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/actionsum/appclock/internal/tracker"
)

// ProcessScanner finds running processes. *process.Detector implements it.
type ProcessScanner interface {
	AnyRunning(ctx context.Context, apps []string) (string, bool, error)
}

// Starter starts tracking. *tracker.Service implements it.
type Starter interface {
	StartTracking(apps []string) (tracker.StartResult, error)
	IsRunning() bool
}

// Watcher polls the process table and starts tracking the configured apps
// the first time one of them runs. Once tracking is active, whoever started
// it, the watcher is done; a later stop does not re-arm it.
type Watcher struct {
	scanner  ProcessScanner
	starter  Starter
	apps     []string
	interval time.Duration
	logger   *zap.Logger
}

func New(scanner ProcessScanner, starter Starter, apps []string, interval time.Duration, logger *zap.Logger) *Watcher {
	return &Watcher{
		scanner:  scanner,
		starter:  starter,
		apps:     apps,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until tracking is active or ctx is done. It reports whether the
// watcher itself started tracking.
func (w *Watcher) Run(ctx context.Context) bool {
	if len(w.apps) == 0 {
		return false
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("waiting for autostart apps", zap.Strings("apps", w.apps))
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if done, started := w.check(ctx); done {
				return started
			}
		}
	}
}

// check reports whether the watcher is done and whether it started tracking.
func (w *Watcher) check(ctx context.Context) (done, started bool) {
	if w.starter.IsRunning() {
		w.logger.Info("tracking already active; autostart disarmed")
		return true, false
	}

	name, found, err := w.scanner.AnyRunning(ctx, w.apps)
	if err != nil {
		w.logger.Warn("process scan failed", zap.Error(err))
		return false, false
	}
	if !found {
		return false, false
	}

	w.logger.Info("detected registered app; starting tracking", zap.String("app", name))
	if _, err := w.starter.StartTracking(w.apps); err != nil {
		w.logger.Error("autostart failed", zap.Error(err))
		return false, false
	}
	return true, true
}
