package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trackCmd = &cobra.Command{
	Use:   "track <apps...>",
	Short: "Register applications and start tracking",
	Long: `Register executables with the running daemon and start tracking them.

Identifiers are matched case-insensitively. Calling track while tracking is
already active adds the new apps and keeps open sessions.

Examples:
  appclock track Code.exe firefox
  appclock track vlc`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTrack,
}

var untrackCmd = &cobra.Command{
	Use:   "untrack",
	Short: "Stop tracking and close open sessions",
	Args:  cobra.NoArgs,
	RunE:  runUntrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(untrackCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	result, err := c.StartTracking(cmd.Context(), args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, app := range result.Accepted {
		fmt.Fprintf(out, "  tracking %s\n", app)
	}
	for _, r := range result.Rejected {
		fmt.Fprintf(out, "  rejected %q: %s\n", r.App, r.Error)
	}
	return nil
}

func runUntrack(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if err := c.StopTracking(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Tracking stopped")
	return nil
}
