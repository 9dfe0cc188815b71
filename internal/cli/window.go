package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/actionsum/appclock/pkg/detector"
	"github.com/actionsum/appclock/pkg/window"
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Show the focused window as seen by the local detector",
	Long: `Query the window detector directly, without the daemon.

With --watch the focused window is printed every --interval until --duration
elapses or the command is interrupted. Switch between applications to check
what the tracker will record.`,
	Args: cobra.NoArgs,
	RunE: runWindow,
}

var (
	windowWatch    bool
	windowInterval time.Duration
	windowDuration time.Duration
)

func init() {
	rootCmd.AddCommand(windowCmd)
	windowCmd.Flags().BoolVarP(&windowWatch, "watch", "w", false, "Keep printing the focused window")
	windowCmd.Flags().DurationVar(&windowInterval, "interval", 2*time.Second, "Time between samples in watch mode")
	windowCmd.Flags().DurationVar(&windowDuration, "duration", 30*time.Second, "How long to watch")
}

func runWindow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session Type: %s\n", detector.DetectDisplayServer())

	det, err := detector.New()
	if err != nil {
		return fmt.Errorf("failed to initialize window detector: %w", err)
	}
	defer det.Close()

	fmt.Fprintf(out, "Display Server: %s\n", det.GetDisplayServer())
	fmt.Fprintln(out, det.GetStatus())

	if !windowWatch {
		ctx, cancel := context.WithTimeout(cmd.Context(), windowInterval)
		defer cancel()
		info, err := det.GetFocusedWindow(ctx)
		if err != nil {
			return err
		}
		printWindow(out, 0, info)
		return nil
	}

	return watchWindow(cmd.Context(), out, det, windowInterval, windowDuration)
}

func watchWindow(ctx context.Context, out io.Writer, det window.Detector, interval, duration time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	count := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nDone.")
			return nil
		case <-ticker.C:
			count++
			sampleCtx, sampleCancel := context.WithTimeout(ctx, interval)
			info, err := det.GetFocusedWindow(sampleCtx)
			sampleCancel()
			if err != nil {
				fmt.Fprintf(out, "[%d] Error: %v\n", count, err)
				continue
			}
			printWindow(out, count, info)
		}
	}
}

func printWindow(out io.Writer, n int, info *window.WindowInfo) {
	if info == nil {
		fmt.Fprintf(out, "[%d] No window detected\n", n)
		return
	}
	fmt.Fprintf(out, "[%d] App: %-20s | Title: %-50s | PID: %d\n",
		n,
		truncate(info.ExeName, 20),
		truncate(info.WindowTitle, 50),
		info.ProcessID,
	)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
