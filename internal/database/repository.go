package database

import (
	"time"

	"github.com/actionsum/appclock/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSessionClosed is returned when closing a session that is not open.
var ErrSessionClosed = errors.New("session is not open")

// ErrSessionNotFound is returned when closing a session that was never stored.
var ErrSessionNotFound = errors.New("session not found")

// Repository handles all database operations for sessions
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateSession inserts a session. Inserting an id that is already stored is
// a no-op, so a retried insert is safe.
func (r *Repository) CreateSession(session *models.Session) error {
	row := *session
	row.StartTime = row.StartTime.UTC()
	row.LastSeenAt = row.LastSeenAt.UTC()
	if row.EndTime != nil {
		end := row.EndTime.UTC()
		row.EndTime = &end
	}
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert session")
	}
	return nil
}

// CloseSession sets the end time of an open session
func (r *Repository) CloseSession(id string, end time.Time) error {
	end = end.UTC()
	result := r.db.Model(&models.Session{}).
		Where("id = ? AND end_time IS NULL", id).
		Updates(map[string]any{"end_time": end, "last_seen_at": end})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to close session")
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.Model(&models.Session{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return errors.Wrap(err, "failed to look up session")
		}
		if count == 0 {
			return errors.Wrapf(ErrSessionNotFound, "session %s", id)
		}
		return errors.Wrapf(ErrSessionClosed, "session %s", id)
	}
	return nil
}

// TouchSessions records that the given open sessions were still focused at
// the given time
func (r *Repository) TouchSessions(ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.Model(&models.Session{}).
		Where("id IN ? AND end_time IS NULL", ids).
		Update("last_seen_at", at.UTC())
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update session heartbeat")
	}
	return nil
}

// GetSession retrieves a session by its ID
func (r *Repository) GetSession(id string) (*models.Session, error) {
	var session models.Session
	result := r.db.First(&session, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get session")
	}
	return &session, nil
}

// SessionsBetween returns every session whose interval intersects
// [from, to), open sessions included
func (r *Repository) SessionsBetween(from, to time.Time) ([]models.Session, error) {
	var sessions []models.Session
	result := r.db.
		Where("start_time < ? AND (end_time IS NULL OR end_time > ?)", to.UTC(), from.UTC()).
		Order("start_time ASC").
		Find(&sessions)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query sessions")
	}
	return sessions, nil
}

// SessionsForDate returns the sessions that started on the given date
func (r *Repository) SessionsForDate(date string) ([]models.Session, error) {
	var sessions []models.Session
	result := r.db.Where("date = ?", date).Order("start_time ASC").Find(&sessions)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query sessions for date")
	}
	return sessions, nil
}

// OpenSessions returns the sessions without an end time
func (r *Repository) OpenSessions() ([]models.Session, error) {
	var sessions []models.Session
	result := r.db.Where("end_time IS NULL").Order("start_time ASC").Find(&sessions)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query open sessions")
	}
	return sessions, nil
}

// DeleteSessionsBefore removes closed sessions that ended before a cutoff
func (r *Repository) DeleteSessionsBefore(before time.Time) (int64, error) {
	result := r.db.Where("end_time IS NOT NULL AND end_time < ?", before.UTC()).Delete(&models.Session{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old sessions")
	}
	return result.RowsAffected, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// RecordError stores a handled failure from the named source
func (r *Repository) RecordError(source string, err error) error {
	return r.CreateErrorLog(&models.ErrorLog{
		Timestamp: time.Now(),
		Source:    source,
		ErrorMsg:  err.Error(),
	})
}

// Clear removes all sessions and error logs from the database
func (r *Repository) Clear() error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM sessions").Error; err != nil {
			return errors.Wrap(err, "failed to clear sessions")
		}
		if err := tx.Exec("DELETE FROM error_logs").Error; err != nil {
			return errors.Wrap(err, "failed to clear error logs")
		}
		return nil
	})
}
