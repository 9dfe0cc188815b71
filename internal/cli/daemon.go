package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/actionsum/appclock/internal/daemon"
)

var startCmd = &cobra.Command{
	Use:   "start [apps...]",
	Short: "Start the tracking daemon in the background",
	Long: `Start the tracking daemon detached from the terminal.

The daemon runs "appclock serve" in a new session and writes its log to
APPCLOCK_DAEMON_LOG_FILE. Apps given as arguments are registered on startup.`,
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the tracking daemon",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running {
		return fmt.Errorf("daemon is already running (PID: %d)", pid)
	}

	childArgs := append([]string{os.Args[0], "serve"}, args...)
	pid, err = daemon.Spawn(childArgs, cfg.Daemon.LogFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Daemon started successfully (PID: %d)\n", pid)
	fmt.Fprintf(out, "Web API available at: http://%s\n", cfg.Address())
	fmt.Fprintf(out, "Logs: %s\n", cfg.Daemon.LogFile)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	out := cmd.OutOrStdout()
	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	fmt.Fprintf(out, "Stopping daemon (PID: %d)...\n", pid)
	if err := dm.Stop(); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	fmt.Fprintln(out, "Daemon stopped successfully")
	return nil
}
