// Package aggregate turns sessions into per-hour, per-category totals.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/actionsum/appclock/internal/models"
)

// HourlyBreakdown sums the time each category spent in every hour of the
// calendar day containing day, in day's location. Open sessions count up to
// now. Durations are accumulated per (hour, category) cell and rounded to
// whole minutes once per cell, half up. Empty cells and hours are omitted.
func HourlyBreakdown(day time.Time, sessions []models.Session, now time.Time) models.Breakdown {
	loc := day.Location()
	y, m, d := day.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	cells := make(map[int]map[string]time.Duration)
	for i := range sessions {
		s := &sessions[i]
		start, end := s.StartTime, s.End(now)
		if start.Before(dayStart) {
			start = dayStart
		}
		if end.After(dayEnd) {
			end = dayEnd
		}

		for cursor := start; cursor.Before(end); {
			local := cursor.In(loc)
			hour := local.Hour()
			next := time.Date(y, m, d, hour+1, 0, 0, 0, loc)
			if !next.After(cursor) {
				next = cursor.Truncate(time.Hour).Add(time.Hour)
			}
			if next.After(end) {
				next = end
			}

			if cells[hour] == nil {
				cells[hour] = make(map[string]time.Duration)
			}
			cells[hour][s.Category] += next.Sub(cursor)
			cursor = next
		}
	}

	b := models.Breakdown{
		Date:        dayStart.Format(models.DateLayout),
		Hours:       []models.HourBucket{},
		GeneratedAt: now,
	}
	for hour, byCategory := range cells {
		bucket := models.HourBucket{
			Hour:    hour,
			Label:   fmt.Sprintf("%02d", hour),
			Minutes: make(map[string]int64),
		}
		for cat, dur := range byCategory {
			if minutes := roundMinutes(dur); minutes > 0 {
				bucket.Minutes[cat] = minutes
				b.TotalMinutes += minutes
			}
		}
		if len(bucket.Minutes) > 0 {
			b.Hours = append(b.Hours, bucket)
		}
	}
	sort.Slice(b.Hours, func(i, j int) bool { return b.Hours[i].Hour < b.Hours[j].Hour })
	return b
}

func roundMinutes(d time.Duration) int64 {
	return int64((d + 30*time.Second) / time.Minute)
}

// ChartRows renders a breakdown as [label, minutes per column...] rows.
// Categories missing from columns are added to the first column.
func ChartRows(b models.Breakdown, columns []string) models.ChartData {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}

	data := models.ChartData{
		Columns: columns,
		Rows:    make([]models.ChartRow, 0, len(b.Hours)),
		Total:   b.TotalMinutes,
	}
	if len(columns) == 0 {
		return data
	}

	for _, h := range b.Hours {
		values := make([]int64, len(columns))
		for cat, minutes := range h.Minutes {
			values[index[cat]] += minutes
		}

		row := make(models.ChartRow, 0, len(columns)+1)
		row = append(row, h.Label)
		for _, v := range values {
			row = append(row, v)
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

// Totals returns tracked seconds per executable, largest first.
func Totals(sessions []models.Session, now time.Time) []models.AppTotal {
	byExe := make(map[string]int64)
	for i := range sessions {
		byExe[sessions[i].ExeName] += sessions[i].TotalSeconds(now)
	}

	out := make([]models.AppTotal, 0, len(byExe))
	for exe, secs := range byExe {
		out = append(out, models.AppTotal{ExeName: exe, TotalSeconds: secs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSeconds == out[j].TotalSeconds {
			return out[i].ExeName < out[j].ExeName
		}
		return out[i].TotalSeconds > out[j].TotalSeconds
	})
	return out
}
