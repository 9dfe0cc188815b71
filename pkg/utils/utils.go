// Package utils holds small formatting helpers shared by the CLI and reports.
package utils

import "fmt"

// FormatDuration renders a tracked duration in seconds at the coarsest unit
// that still shows minutes: "45s", "30m", "1h5m", "2h". Partial minutes are
// dropped and negative inputs are formatted by magnitude.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = -seconds
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours, rest := minutes/60, minutes%60
	if rest == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh%dm", hours, rest)
}
