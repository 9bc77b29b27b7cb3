package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/tutorbook/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	pool *ConnectionPool
	now  func() time.Time
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool, now func() time.Time) *SessionRepository {
	if now == nil {
		now = time.Now
	}
	return &SessionRepository{pool: pool, now: now}
}

const sessionColumns = `
	id, speaker_id, learner_id, title, date, time, start_minute, duration_minutes, status,
	topics, icebreaker, meeting_link, calendar_event_id, calendar_synced,
	cancellation_reason, cancelled_at, cancelled_by, completed_at, created_at, updated_at
`

// CreateSession re-checks the speaker's scheduled sessions on the same date
// for overlap and inserts inside one transaction.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if session.ID == "" || session.SpeakerID == "" || session.LearnerID == "" {
		return persistence.ErrConstraintViolation
	}
	if session.DurationMinutes <= 0 {
		return persistence.ErrConstraintViolation
	}
	if session.Status == "" {
		session.Status = persistence.StatusScheduled
	}
	topics, err := encodeTopics(session.Topics)
	if err != nil {
		return err
	}
	now := r.now().UTC()
	candidateEnd := session.StartMinute + session.DurationMinutes

	err = r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var conflictID, conflictTime string
		err := tx.QueryRowContext(ctx, `
			SELECT id, time
			FROM sessions
			WHERE speaker_id = ? AND date = ? AND status = 'scheduled'
				AND start_minute < ? AND start_minute + duration_minutes > ?
			ORDER BY start_minute ASC
			LIMIT 1
		`, session.SpeakerID, session.Date, candidateEnd, session.StartMinute).Scan(&conflictID, &conflictTime)
		switch {
		case err == nil:
			return &persistence.SlotConflictError{SessionID: conflictID, Time: conflictTime}
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (`+sessionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			session.ID,
			session.SpeakerID,
			session.LearnerID,
			session.Title,
			session.Date,
			session.Time,
			session.StartMinute,
			session.DurationMinutes,
			session.Status,
			topics,
			session.Icebreaker,
			session.MeetingLink,
			nullString(session.CalendarEventID),
			session.CalendarSynced,
			nullString(session.CancellationReason),
			nullTime(session.CancelledAt),
			nullString(session.CancelledBy),
			nullTime(session.CompletedAt),
			formatTime(now),
			formatTime(now),
		)
		return err
	})
	if err == nil {
		return nil
	}
	var conflict *persistence.SlotConflictError
	if errors.As(err, &conflict) {
		return conflict
	}
	if containsAny(err.Error(), []string{"idx_sessions_speaker_slot", "sessions.speaker_id, sessions.date, sessions.time"}) {
		return &persistence.SlotConflictError{Time: session.Time}
	}
	return mapError(err)
}

// GetSession retrieves a session by ID.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	if id == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	return session, nil
}

// ListSessions returns sessions matching filter ordered by date and start.
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	query, args := buildListQuery(filter)
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	sessions := make([]persistence.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, mapError(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return sessions, nil
}

// CancelSession moves a scheduled session to cancelled.
func (r *SessionRepository) CancelSession(ctx context.Context, id string, cancellation persistence.Cancellation) (persistence.Session, error) {
	at := cancellation.At
	if at.IsZero() {
		at = r.now()
	}
	err := r.transition(ctx, id, `
		UPDATE sessions
		SET status = 'cancelled', cancellation_reason = ?, cancelled_at = ?, cancelled_by = ?, updated_at = ?
		WHERE id = ? AND status = 'scheduled'
	`, cancellation.Reason, formatTime(at), cancellation.By, formatTime(r.now()), id)
	if err != nil {
		return persistence.Session{}, err
	}
	return r.GetSession(ctx, id)
}

// CompleteSession moves a scheduled session to completed.
func (r *SessionRepository) CompleteSession(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, id, `
		UPDATE sessions
		SET status = 'completed', completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'scheduled'
	`, formatTime(at), formatTime(r.now()), id)
}

func (r *SessionRepository) transition(ctx context.Context, id, query string, args ...any) error {
	return mapError(r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected > 0 {
			return nil
		}
		var status string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, id).Scan(&status); err != nil {
			return err
		}
		return persistence.ErrNotScheduled
	}))
}

func buildListQuery(filter persistence.SessionFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.ParticipantID != "" {
		conditions = append(conditions, "(speaker_id = ? OR learner_id = ?)")
		args = append(args, filter.ParticipantID, filter.ParticipantID)
	}
	if filter.SpeakerID != "" {
		conditions = append(conditions, "speaker_id = ?")
		args = append(args, filter.SpeakerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.DateFrom != "" {
		conditions = append(conditions, "date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		conditions = append(conditions, "date <= ?")
		args = append(args, filter.DateTo)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date ASC, start_minute ASC, id ASC"
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var session persistence.Session
	var topics, createdAt, updatedAt string
	var eventID, reason, cancelledAt, cancelledBy, completedAt sql.NullString

	err := row.Scan(
		&session.ID,
		&session.SpeakerID,
		&session.LearnerID,
		&session.Title,
		&session.Date,
		&session.Time,
		&session.StartMinute,
		&session.DurationMinutes,
		&session.Status,
		&topics,
		&session.Icebreaker,
		&session.MeetingLink,
		&eventID,
		&session.CalendarSynced,
		&reason,
		&cancelledAt,
		&cancelledBy,
		&completedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Session{}, err
	}

	if err := json.Unmarshal([]byte(topics), &session.Topics); err != nil {
		return persistence.Session{}, fmt.Errorf("decode topics of session %s: %w", session.ID, err)
	}
	session.CalendarEventID = stringPtr(eventID)
	session.CancellationReason = stringPtr(reason)
	session.CancelledBy = stringPtr(cancelledBy)
	if session.CancelledAt, err = parseNullTime(cancelledAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

func encodeTopics(topics []string) (string, error) {
	if topics == nil {
		topics = []string{}
	}
	encoded, err := json.Marshal(topics)
	if err != nil {
		return "", fmt.Errorf("encode topics: %w", err)
	}
	return string(encoded), nil
}
