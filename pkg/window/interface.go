package window

import "context"

// WindowInfo represents information about the currently focused window
type WindowInfo struct {
	ExeName       string `json:"exe_name"`
	WindowTitle   string `json:"title"`
	ProcessID     uint32 `json:"process_id"`
	Class         string `json:"-"`
	DisplayServer string `json:"-"` // "x11" or "wayland"
}

// Detector is the interface that all window detection implementations must satisfy
type Detector interface {
	// GetFocusedWindow returns information about the currently focused window
	GetFocusedWindow(ctx context.Context) (*WindowInfo, error)

	// IsAvailable checks if this detector can run on the current system
	IsAvailable() bool

	// GetDisplayServer returns the display server type ("x11" or "wayland")
	GetDisplayServer() string

	// Close cleans up any resources used by the detector
	Close() error
}

// ExeResolver maps a process ID to its executable name
type ExeResolver interface {
	ExeName(ctx context.Context, pid uint32) (string, error)
}
