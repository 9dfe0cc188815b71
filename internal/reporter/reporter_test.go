package reporter

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actionsum/appclock/internal/models"
)

type stubSource struct {
	sessions  []models.SessionSnapshot
	breakdown models.Breakdown
	err       error
}

func (s *stubSource) DailySummary(date string) ([]models.SessionSnapshot, error) {
	return s.sessions, s.err
}

func (s *stubSource) Breakdown(date string) (models.Breakdown, error) {
	return s.breakdown, s.err
}

func newStubSource() *stubSource {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &stubSource{
		sessions: []models.SessionSnapshot{
			{ID: "1", ExeName: "vlc", Category: "entertainment", StartTime: base, TotalSeconds: 600},
			{ID: "2", ExeName: "Code.exe", Category: "productivity", StartTime: base.Add(time.Hour), TotalSeconds: 1800},
			{ID: "3", ExeName: "vlc", Category: "entertainment", StartTime: base.Add(2 * time.Hour), TotalSeconds: 600},
		},
		breakdown: models.Breakdown{
			Date: "2024-05-01",
			Hours: []models.HourBucket{
				{Hour: 10, Label: "10", Minutes: map[string]int64{"entertainment": 10}},
				{Hour: 11, Label: "11", Minutes: map[string]int64{"productivity": 30}},
				{Hour: 12, Label: "12", Minutes: map[string]int64{"entertainment": 10}},
			},
			TotalMinutes: 50,
		},
	}
}

func TestGenerateReport(t *testing.T) {
	report, err := New(newStubSource()).GenerateReport("2024-05-01")
	require.NoError(t, err)

	assert.Equal(t, "2024-05-01", report.Date)
	assert.Equal(t, int64(3000), report.TotalSeconds)
	assert.InDelta(t, 50.0, report.TotalMinutes, 0.001)
	require.Len(t, report.Apps, 2)

	assert.Equal(t, "Code.exe", report.Apps[0].ExeName)
	assert.Equal(t, 1, report.Apps[0].Sessions)
	assert.InDelta(t, 60.0, report.Apps[0].Percentage, 0.001)

	assert.Equal(t, "vlc", report.Apps[1].ExeName)
	assert.Equal(t, 2, report.Apps[1].Sessions)
	assert.Equal(t, int64(1200), report.Apps[1].TotalSeconds)
	assert.InDelta(t, 40.0, report.Apps[1].Percentage, 0.001)
	assert.Len(t, report.Hours, 3)
}

func TestGenerateReportPropagatesErrors(t *testing.T) {
	src := &stubSource{err: errors.New("invalid date")}
	_, err := New(src).GenerateReport("nope")
	assert.Error(t, err)
}

func TestFormatReportText(t *testing.T) {
	report, err := New(newStubSource()).GenerateReport("2024-05-01")
	require.NoError(t, err)

	text := FormatReportText(report)
	assert.Contains(t, text, "Activity Report - 2024-05-01")
	assert.Contains(t, text, "Total Time: 0.83h (50m)")
	assert.Contains(t, text, "Code.exe")
	assert.Contains(t, text, "30m")
	assert.Contains(t, text, "11:00  productivity=30")

	empty := FormatReportText(&models.Report{Date: "2024-05-02"})
	assert.Contains(t, empty, "No activity recorded")
}

func TestFormatChartText(t *testing.T) {
	data := models.ChartData{
		Columns: []string{"utilities", "entertainment", "productivity"},
		Rows:    []models.ChartRow{{"10", int64(0), int64(0), int64(30)}},
		Total:   30,
	}

	text := FormatChartText(data)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "productivity")
	assert.True(t, strings.HasPrefix(lines[1], "10"))
	assert.Equal(t, "Total: 30m", lines[2])
}

func TestFormatReportJSON(t *testing.T) {
	report, err := New(newStubSource()).GenerateReport("today")
	require.NoError(t, err)

	out, err := FormatReportJSON(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "2024-05-01", decoded["date"])
	assert.Len(t, decoded["apps"], 2)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
