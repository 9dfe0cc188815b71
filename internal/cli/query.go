package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/actionsum/appclock/internal/aggregate"
	"github.com/actionsum/appclock/internal/models"
	"github.com/actionsum/appclock/internal/reporter"
	"github.com/actionsum/appclock/pkg/utils"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions",
	Long: `List the sessions of a day, or only the open ones.

Examples:
  appclock sessions                     # Today
  appclock sessions --date 2024-05-01   # A past day
  appclock sessions --active            # Open sessions only`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

var chartCmd = &cobra.Command{
	Use:   "chart [date]",
	Short: "Show minutes per hour and category",
	Long: `Show the hourly per-category breakdown of a day.

The date is YYYY-MM-DD or "today" (the default).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChart,
}

var totalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Show today's tracked time per application",
	Args:  cobra.NoArgs,
	RunE:  runTotals,
}

var reportCmd = &cobra.Command{
	Use:   "report [date]",
	Short: "Generate a daily report",
	Long: `Generate the report of a day: time per application plus the hourly
breakdown.

Examples:
  appclock report
  appclock report 2024-05-01 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and tracking status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// Flags
var (
	sessionsDate   string
	sessionsActive bool
	chartJSON      bool
	reportJSON     bool
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(chartCmd)
	rootCmd.AddCommand(totalsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statusCmd)

	sessionsCmd.Flags().StringVarP(&sessionsDate, "date", "d", "", "Day to list (YYYY-MM-DD or today)")
	sessionsCmd.Flags().BoolVarP(&sessionsActive, "active", "a", false, "Only list open sessions")
	chartCmd.Flags().BoolVar(&chartJSON, "json", false, "Print the raw chart rows as JSON")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
}

func dateArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func runSessions(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	var sessions []models.SessionSnapshot
	if sessionsActive {
		sessions, err = c.ActiveSessions(cmd.Context())
	} else {
		sessions, err = c.Sessions(cmd.Context(), sessionsDate)
	}
	if err != nil {
		return err
	}

	printSessions(cmd.OutOrStdout(), sessions)
	return nil
}

func printSessions(out io.Writer, sessions []models.SessionSnapshot) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAPP\tCATEGORY\tSTART\tEND\tDURATION")
	for _, s := range sessions {
		end := "open"
		if s.EndTime != nil {
			end = s.EndTime.Local().Format(time.TimeOnly)
		}
		id := s.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			id,
			s.ExeName,
			s.Category,
			s.StartTime.Local().Format(time.TimeOnly),
			end,
			utils.FormatDuration(s.TotalSeconds),
		)
	}
	_ = w.Flush()
}

func runChart(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	date := dateArg(args)
	out := cmd.OutOrStdout()

	if chartJSON {
		rows, err := c.Chart(cmd.Context(), date)
		if err != nil {
			return err
		}
		data, err := json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	breakdown, err := c.Breakdown(cmd.Context(), date)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Activity on %s\n\n", breakdown.Date)
	fmt.Fprint(out, reporter.FormatChartText(aggregate.ChartRows(breakdown, cfg.Categories.Columns)))
	return nil
}

func runTotals(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	totals, err := c.Totals(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(totals) == 0 {
		fmt.Fprintln(out, "Nothing tracked today")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "APP\tTIME")
	for _, t := range totals {
		fmt.Fprintf(w, "%s\t%s\n", t.ExeName, utils.FormatDuration(t.TotalSeconds))
	}
	return w.Flush()
}

func runReport(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	report, err := c.Report(cmd.Context(), dateArg(args))
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	out := cmd.OutOrStdout()
	if reportJSON {
		text, err := reporter.FormatReportJSON(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}
	fmt.Fprint(out, reporter.FormatReportText(report))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	status, err := c.Status(cmd.Context())
	if err != nil {
		fmt.Fprintln(out, "Status: Not running")
		return nil
	}

	state := "idle"
	if status.Tracking {
		state = "tracking"
	}
	fmt.Fprintf(out, "Status: Running (%s)\n", state)
	fmt.Fprintf(out, "Display Server: %s\n", status.DisplayServer)
	fmt.Fprintf(out, "Time Zone: %s\n", status.TimeZone)
	fmt.Fprintf(out, "Poll Interval: %s\n", status.PollInterval)
	fmt.Fprintf(out, "Open Sessions: %d\n", status.OpenSessions)
	if len(status.Registered) > 0 {
		fmt.Fprintln(out, "Registered Apps:")
		for _, app := range status.Registered {
			fmt.Fprintf(out, "  %s\n", app)
		}
	}

	info, err := c.ActiveWindow(cmd.Context())
	if err == nil && info != nil {
		fmt.Fprintf(out, "\nCurrent Window:\n")
		fmt.Fprintf(out, "  App: %s\n", info.ExeName)
		fmt.Fprintf(out, "  Title: %s\n", info.WindowTitle)
	}
	return nil
}
