package reporter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/actionsum/appclock/internal/models"
	"github.com/actionsum/appclock/pkg/utils"
)

// Source provides the session data a report is built from
type Source interface {
	DailySummary(date string) ([]models.SessionSnapshot, error)
	Breakdown(date string) (models.Breakdown, error)
}

// Reporter handles report generation
type Reporter struct {
	source Source
}

// New creates a new reporter
func New(source Source) *Reporter {
	return &Reporter{source: source}
}

// GenerateReport generates the report of one day ("today" or YYYY-MM-DD).
// Sessions are split at midnight when recorded, so every session of the
// summary lies within the day.
func (r *Reporter) GenerateReport(date string) (*models.Report, error) {
	sessions, err := r.source.DailySummary(date)
	if err != nil {
		return nil, err
	}
	breakdown, err := r.source.Breakdown(date)
	if err != nil {
		return nil, err
	}

	byExe := make(map[string]*models.AppSummary)
	var order []string
	for _, s := range sessions {
		app, ok := byExe[s.ExeName]
		if !ok {
			app = &models.AppSummary{ExeName: s.ExeName, Category: s.Category}
			byExe[s.ExeName] = app
			order = append(order, s.ExeName)
		}
		app.Sessions++
		app.TotalSeconds += s.TotalSeconds
	}

	var totalSeconds int64
	apps := make([]models.AppSummary, 0, len(order))
	for _, exe := range order {
		app := byExe[exe]
		app.TotalMinutes = float64(app.TotalSeconds) / 60.0
		app.TotalHours = float64(app.TotalSeconds) / 3600.0
		totalSeconds += app.TotalSeconds
		apps = append(apps, *app)
	}

	// Calculate percentages
	if totalSeconds > 0 {
		for i := range apps {
			apps[i].Percentage = (float64(apps[i].TotalSeconds) / float64(totalSeconds)) * 100.0
		}
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].TotalSeconds > apps[j].TotalSeconds })

	return &models.Report{
		Date:         breakdown.Date,
		Apps:         apps,
		Hours:        breakdown.Hours,
		TotalSeconds: totalSeconds,
		TotalMinutes: float64(totalSeconds) / 60.0,
		TotalHours:   float64(totalSeconds) / 3600.0,
		GeneratedAt:  breakdown.GeneratedAt,
	}, nil
}

// FormatReportText formats the report as human-readable text
func FormatReportText(report *models.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Activity Report - %s\n", report.Date)
	fmt.Fprintf(&b, "Total Time: %.2fh (%.0fm)\n\n", report.TotalHours, report.TotalMinutes)

	if len(report.Apps) == 0 {
		b.WriteString("No activity recorded for this day.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%-30s %-14s %8s %8s %9s\n", "Application", "Category", "Sessions", "Time", "Percent")
	b.WriteString(strings.Repeat("-", 73) + "\n")
	for _, app := range report.Apps {
		fmt.Fprintf(&b, "%-30s %-14s %8d %8s %8.1f%%\n",
			truncate(app.ExeName, 30),
			truncate(app.Category, 14),
			app.Sessions,
			utils.FormatDuration(app.TotalSeconds),
			app.Percentage)
	}

	if len(report.Hours) > 0 {
		b.WriteString("\nHourly breakdown (minutes)\n")
		for _, h := range report.Hours {
			fmt.Fprintf(&b, "  %s:00  %s\n", h.Label, formatMinutes(h.Minutes))
		}
	}

	return b.String()
}

// FormatChartText renders chart rows as an aligned table
func FormatChartText(data models.ChartData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s", "Hour")
	for _, c := range data.Columns {
		fmt.Fprintf(&b, " %14s", c)
	}
	b.WriteString("\n")

	if len(data.Rows) == 0 {
		b.WriteString("No activity recorded for this day.\n")
		return b.String()
	}

	for _, row := range data.Rows {
		for i, v := range row {
			if i == 0 {
				fmt.Fprintf(&b, "%-6v", v)
				continue
			}
			fmt.Fprintf(&b, " %14v", v)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Total: %dm\n", data.Total)
	return b.String()
}

// FormatReportJSON formats the report as JSON
func FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatMinutes(minutes map[string]int64) string {
	cats := make([]string, 0, len(minutes))
	for c := range minutes {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	parts := make([]string, 0, len(cats))
	for _, c := range cats {
		parts = append(parts, fmt.Sprintf("%s=%d", c, minutes[c]))
	}
	return strings.Join(parts, " ")
}

// truncate truncates a string to the specified length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
