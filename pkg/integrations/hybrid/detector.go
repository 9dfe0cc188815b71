package hybrid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/actionsum/appclock/pkg/integrations/process"
	"github.com/actionsum/appclock/pkg/integrations/wayland"
	"github.com/actionsum/appclock/pkg/integrations/x11"
	"github.com/actionsum/appclock/pkg/window"
)

// Detector tries each available window detector in order, Wayland first,
// and resolves executable names through the process table.
type Detector struct {
	detectors []window.Detector

	mu                   sync.Mutex
	lastSuccessfulMethod string
}

func NewDetector() (*Detector, error) {
	resolver := process.NewDetector()
	return newDetector(candidates(resolver)...)
}

func newDetector(all ...window.Detector) (*Detector, error) {
	d := &Detector{}
	for _, det := range all {
		if det.IsAvailable() {
			d.detectors = append(d.detectors, det)
		} else {
			_ = det.Close()
		}
	}

	if len(d.detectors) == 0 {
		return nil, fmt.Errorf("no window detector available (need an X11 display, sway or Hyprland)")
	}
	return d, nil
}

func candidates(resolver window.ExeResolver) []window.Detector {
	var out []window.Detector

	if os.Getenv("WAYLAND_DISPLAY") != "" || os.Getenv("XDG_SESSION_TYPE") == "wayland" {
		out = append(out, wayland.NewDetector(resolver))
	}

	// Also covers XWayland on Wayland sessions
	if os.Getenv("DISPLAY") != "" {
		out = append(out, x11.NewDetector(resolver))
	}

	return out
}

// GetFocusedWindow returns the first successful answer of the detectors
func (d *Detector) GetFocusedWindow(ctx context.Context) (*window.WindowInfo, error) {
	var errs []error

	for _, det := range d.detectors {
		info, err := det.GetFocusedWindow(ctx)
		if err == nil && info != nil && info.ExeName != "" {
			d.mu.Lock()
			d.lastSuccessfulMethod = det.GetDisplayServer()
			d.mu.Unlock()
			return info, nil
		}
		if err == nil {
			err = fmt.Errorf("%s: no valid window information", det.GetDisplayServer())
		}
		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("all detection methods failed: %w", errors.Join(errs...))
}

func (d *Detector) IsAvailable() bool {
	for _, det := range d.detectors {
		if det.IsAvailable() {
			return true
		}
	}
	return false
}

func (d *Detector) GetDisplayServer() string {
	if len(d.detectors) > 0 {
		return d.detectors[0].GetDisplayServer()
	}
	return "unknown"
}

func (d *Detector) Close() error {
	var errs []error
	for _, det := range d.detectors {
		if err := det.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Detector) GetStatus() string {
	var b strings.Builder
	b.WriteString("Hybrid Detector Status:\n")
	for _, det := range d.detectors {
		fmt.Fprintf(&b, "  %s detector (available: %v)\n", det.GetDisplayServer(), det.IsAvailable())
	}

	d.mu.Lock()
	fmt.Fprintf(&b, "  Last successful method: %s\n", d.lastSuccessfulMethod)
	d.mu.Unlock()

	return b.String()
}
