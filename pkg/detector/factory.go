package detector

import (
	"os"

	"github.com/actionsum/appclock/pkg/integrations/hybrid"
)

// New returns the window detector for the current session
func New() (*hybrid.Detector, error) {
	return hybrid.NewDetector()
}

// DetectDisplayServer guesses the session type from the environment.
func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}
