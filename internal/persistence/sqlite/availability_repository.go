package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/tutorbook/internal/persistence"
)

// AvailabilityRepository implements persistence.AvailabilityRepository.
type AvailabilityRepository struct {
	pool *ConnectionPool
	now  func() time.Time
}

func NewAvailabilityRepository(pool *ConnectionPool, now func() time.Time) *AvailabilityRepository {
	if now == nil {
		now = time.Now
	}
	return &AvailabilityRepository{pool: pool, now: now}
}

// ListAvailability returns the speaker's entries ordered by day and start time.
func (r *AvailabilityRepository) ListAvailability(ctx context.Context, speakerID string) ([]persistence.AvailabilityEntry, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, speaker_id, day, start_time, end_time, is_available, created_at
		FROM availability
		WHERE speaker_id = ?
		ORDER BY day ASC, start_time ASC, id ASC
	`, speakerID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	entries := make([]persistence.AvailabilityEntry, 0)
	for rows.Next() {
		var entry persistence.AvailabilityEntry
		var day int
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.SpeakerID, &day, &entry.StartTime, &entry.EndTime, &entry.IsAvailable, &createdAt); err != nil {
			return nil, mapError(err)
		}
		entry.Day = time.Weekday(day)
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// ReplaceAvailability deletes the speaker's entries and inserts the new set atomically.
func (r *AvailabilityRepository) ReplaceAvailability(ctx context.Context, speakerID string, entries []persistence.AvailabilityEntry) error {
	if speakerID == "" {
		return persistence.ErrConstraintViolation
	}
	now := formatTime(r.now())
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, speakerID).Scan(&exists); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM availability WHERE speaker_id = ?`, speakerID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO availability (id, speaker_id, day, start_time, end_time, is_available, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, entry := range entries {
			if entry.ID == "" {
				return persistence.ErrConstraintViolation
			}
			if _, err := stmt.ExecContext(ctx, entry.ID, speakerID, int(entry.Day), entry.StartTime, entry.EndTime, entry.IsAvailable, now); err != nil {
				return err
			}
		}
		return nil
	})
	return mapError(err)
}
