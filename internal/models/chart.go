package models

import "time"

// HourBucket holds the minutes per category for one hour of a day.
type HourBucket struct {
	Hour    int              `json:"hour"`
	Label   string           `json:"label"`
	Minutes map[string]int64 `json:"minutes"`
}

// Breakdown is the hourly per-category activity of one calendar day.
type Breakdown struct {
	Date         string       `json:"date"`
	Hours        []HourBucket `json:"hours"`
	TotalMinutes int64        `json:"total_minutes"`
	GeneratedAt  time.Time    `json:"generated_at"`
}

// ChartRow is one chart tuple: the hour label followed by one minute count
// per chart column.
type ChartRow []any

// ChartData is the chart-ready form of a Breakdown.
type ChartData struct {
	Columns []string   `json:"columns"`
	Rows    []ChartRow `json:"rows"`
	Total   int64      `json:"total_minutes"`
}
