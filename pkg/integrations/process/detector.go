// Package process resolves executable names of running processes.
package process

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Detector looks up processes through the OS process table
type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// IsAvailable reports whether the process table can be read
func (d *Detector) IsAvailable() bool {
	_, err := process.PidsWithContext(context.Background())
	return err == nil
}

// ExeName returns the executable name of pid. The base name of the
// executable path is preferred; the short process name is the fallback.
func (d *Detector) ExeName(ctx context.Context, pid uint32) (string, error) {
	if pid == 0 {
		return "", fmt.Errorf("invalid pid 0")
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return "", fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if exe, err := proc.ExeWithContext(ctx); err == nil && exe != "" {
		return filepath.Base(exe), nil
	}

	name, err := proc.NameWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read name of process %d: %w", pid, err)
	}
	return name, nil
}

// RunningNames returns the lowercased executable names of all running
// processes. Each process contributes the base name of its executable path,
// which is never truncated, and its short process name when that differs.
func (d *Detector) RunningNames(ctx context.Context) (map[string]bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	names := make(map[string]bool, len(procs))
	for _, proc := range procs {
		var exe, short string
		if path, err := proc.ExeWithContext(ctx); err == nil {
			exe = path
		}
		if name, err := proc.NameWithContext(ctx); err == nil {
			short = name
		}
		addNames(names, exe, short)
	}
	return names, nil
}

// addNames records a process under its executable base name and its short
// name. The short name is kernel-truncated on Linux, so it is only a fallback
// for processes whose executable path cannot be read.
func addNames(names map[string]bool, exe, short string) {
	if exe != "" {
		names[strings.ToLower(filepath.Base(exe))] = true
	}
	if short != "" {
		names[strings.ToLower(short)] = true
	}
}

// AnyRunning returns the first of apps that currently has a running process.
func (d *Detector) AnyRunning(ctx context.Context, apps []string) (string, bool, error) {
	names, err := d.RunningNames(ctx)
	if err != nil {
		return "", false, err
	}
	for _, app := range apps {
		if names[strings.ToLower(strings.TrimSpace(app))] {
			return app, true, nil
		}
	}
	return "", false, nil
}
