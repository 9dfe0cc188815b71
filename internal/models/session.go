package models

import (
	"time"
)

// DateLayout is the calendar date format used for session dates and queries.
const DateLayout = "2006-01-02"

// Session is one contiguous interval during which a registered application
// held focus. EndTime is nil while the session is open.
type Session struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	ExeName    string     `gorm:"not null;index:idx_sessions_date_exe,priority:2" json:"exe_name"`
	Category   string     `gorm:"not null" json:"category"`
	StartTime  time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime    *time.Time `gorm:"index" json:"end_time,omitempty"`
	LastSeenAt time.Time  `gorm:"not null" json:"-"`
	Date       string     `gorm:"not null;size:10;index:idx_sessions_date_exe,priority:1" json:"date"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"-"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"-"`
}

// IsOpen reports whether the session has not been closed yet.
func (s *Session) IsOpen() bool {
	return s.EndTime == nil
}

// End returns the end of the session interval, using now for open sessions.
func (s *Session) End(now time.Time) time.Time {
	if s.EndTime != nil {
		return *s.EndTime
	}
	if now.Before(s.StartTime) {
		return s.StartTime
	}
	return now
}

// TotalSeconds is end - start for closed sessions and now - start for open ones.
func (s *Session) TotalSeconds(now time.Time) int64 {
	return int64(s.End(now).Sub(s.StartTime) / time.Second)
}

// SessionSnapshot is the wire form of a session at a point in time.
type SessionSnapshot struct {
	ID           string     `json:"id"`
	ExeName      string     `json:"exe_name"`
	Category     string     `json:"category"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	TotalSeconds int64      `json:"total_seconds"`
	Date         string     `json:"date"`
}

// Snapshot renders the session as seen at now.
func (s *Session) Snapshot(now time.Time) SessionSnapshot {
	snap := SessionSnapshot{
		ID:           s.ID,
		ExeName:      s.ExeName,
		Category:     s.Category,
		StartTime:    s.StartTime,
		TotalSeconds: s.TotalSeconds(now),
		Date:         s.Date,
	}
	if s.EndTime != nil {
		end := *s.EndTime
		snap.EndTime = &end
	}
	return snap
}

// AppTotal is the tracked time of one executable.
type AppTotal struct {
	ExeName      string `json:"exe_name"`
	TotalSeconds int64  `json:"total_seconds"`
}
