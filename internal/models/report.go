package models

import "time"

// AppSummary represents the tracked time of one executable over a report day
type AppSummary struct {
	ExeName      string  `json:"exe_name"`
	Category     string  `json:"category"`
	Sessions     int     `json:"sessions"`
	TotalSeconds int64   `json:"total_seconds"`
	TotalMinutes float64 `json:"total_minutes"`
	TotalHours   float64 `json:"total_hours"`
	Percentage   float64 `json:"percentage"`
}

// Report represents a daily activity report
type Report struct {
	Date         string       `json:"date"`
	Apps         []AppSummary `json:"apps"`
	Hours        []HourBucket `json:"hours"`
	TotalSeconds int64        `json:"total_seconds"`
	TotalMinutes float64      `json:"total_minutes"`
	TotalHours   float64      `json:"total_hours"`
	GeneratedAt  time.Time    `json:"generated_at"`
}
