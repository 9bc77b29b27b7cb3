package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/tutorbook/internal/persistence"
)

// UserRepository implements persistence.UserRepository and
// persistence.CredentialRepository on the users table.
type UserRepository struct {
	pool   *ConnectionPool
	sealer Sealer
	now    func() time.Time
}

func NewUserRepository(pool *ConnectionPool, sealer Sealer, now func() time.Time) *UserRepository {
	if now == nil {
		now = time.Now
	}
	return &UserRepository{pool: pool, sealer: sealer, now: now}
}

// UpsertUser inserts the user or refreshes email, display name and role.
// IsActive is only written on insert.
func (r *UserRepository) UpsertUser(ctx context.Context, user persistence.User) (persistence.User, error) {
	if strings.TrimSpace(user.ID) == "" {
		return persistence.User{}, persistence.ErrConstraintViolation
	}
	now := r.now().UTC()

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, display_name, role, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				email = excluded.email,
				display_name = excluded.display_name,
				role = excluded.role,
				updated_at = excluded.updated_at
		`,
			user.ID,
			normalizeEmail(user.Email),
			strings.TrimSpace(user.DisplayName),
			user.Role,
			formatTime(now),
			formatTime(now),
		)
		return err
	})
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	return r.GetUser(ctx, user.ID)
}

// GetUser retrieves a user by ID from the database
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	var user persistence.User
	var createdAt, updatedAt string
	err := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, email, display_name, role, is_active, created_at, updated_at
		FROM users
		WHERE id = ?
	`, id).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Role,
		&user.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

// GetCredential returns the speaker's calendar credential with tokens unsealed.
func (r *UserRepository) GetCredential(ctx context.Context, speakerID string) (persistence.Credential, error) {
	if speakerID == "" {
		return persistence.Credential{}, persistence.ErrNotFound
	}

	var access, refresh, expiresAt, updatedAt sql.NullString
	cred := persistence.Credential{SpeakerID: speakerID}
	err := r.pool.DB().QueryRowContext(ctx, `
		SELECT calendar_access_token, calendar_refresh_token, calendar_expires_at, calendar_connected, calendar_updated_at
		FROM users
		WHERE id = ?
	`, speakerID).Scan(&access, &refresh, &expiresAt, &cred.Connected, &updatedAt)
	if err != nil {
		return persistence.Credential{}, mapError(err)
	}

	if cred.AccessToken, err = r.open(access); err != nil {
		return persistence.Credential{}, err
	}
	if cred.RefreshToken, err = r.open(refresh); err != nil {
		return persistence.Credential{}, err
	}
	if cred.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return persistence.Credential{}, err
	}
	if ts, err := parseNullTime(updatedAt); err != nil {
		return persistence.Credential{}, err
	} else if ts != nil {
		cred.UpdatedAt = *ts
	}
	return cred, nil
}

// ConnectCredential stores a token pair and marks the calendar connected.
func (r *UserRepository) ConnectCredential(ctx context.Context, cred persistence.Credential) error {
	if cred.AccessToken == "" || cred.RefreshToken == "" {
		return persistence.ErrConstraintViolation
	}
	access, refresh, err := r.sealPair(cred.AccessToken, cred.RefreshToken)
	if err != nil {
		return err
	}
	return r.updateOne(ctx, `
		UPDATE users
		SET calendar_access_token = ?, calendar_refresh_token = ?, calendar_expires_at = ?,
			calendar_connected = 1, calendar_updated_at = ?, updated_at = ?
		WHERE id = ?
	`, access, refresh, nullTime(cred.ExpiresAt), formatTime(r.now()), formatTime(r.now()), cred.SpeakerID)
}

// UpdateTokens writes refreshed tokens. An empty refresh token keeps the stored one.
func (r *UserRepository) UpdateTokens(ctx context.Context, speakerID, accessToken, refreshToken string, expiresAt *time.Time) error {
	if accessToken == "" {
		return persistence.ErrConstraintViolation
	}
	access, err := r.sealer.Seal(accessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	var refresh sql.NullString
	if refreshToken != "" {
		sealed, err := r.sealer.Seal(refreshToken)
		if err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
		refresh = sql.NullString{String: sealed, Valid: true}
	}
	return r.updateOne(ctx, `
		UPDATE users
		SET calendar_access_token = ?, calendar_refresh_token = COALESCE(?, calendar_refresh_token),
			calendar_expires_at = ?, calendar_updated_at = ?
		WHERE id = ?
	`, access, refresh, nullTime(expiresAt), formatTime(r.now()), speakerID)
}

// MarkDisconnected clears the connected flag and keeps the stored tokens.
func (r *UserRepository) MarkDisconnected(ctx context.Context, speakerID string) error {
	return r.updateOne(ctx, `
		UPDATE users SET calendar_connected = 0, calendar_updated_at = ? WHERE id = ?
	`, formatTime(r.now()), speakerID)
}

// ClearCredential nulls every credential field.
func (r *UserRepository) ClearCredential(ctx context.Context, speakerID string) error {
	return r.updateOne(ctx, `
		UPDATE users
		SET calendar_access_token = NULL, calendar_refresh_token = NULL, calendar_expires_at = NULL,
			calendar_connected = 0, calendar_updated_at = ?
		WHERE id = ?
	`, formatTime(r.now()), speakerID)
}

func (r *UserRepository) updateOne(ctx context.Context, query string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *UserRepository) sealPair(access, refresh string) (string, string, error) {
	sealedAccess, err := r.sealer.Seal(access)
	if err != nil {
		return "", "", fmt.Errorf("seal access token: %w", err)
	}
	sealedRefresh, err := r.sealer.Seal(refresh)
	if err != nil {
		return "", "", fmt.Errorf("seal refresh token: %w", err)
	}
	return sealedAccess, sealedRefresh, nil
}

func (r *UserRepository) open(value sql.NullString) (string, error) {
	if !value.Valid || value.String == "" {
		return "", nil
	}
	plain, err := r.sealer.Open(value.String)
	if err != nil {
		return "", errors.Join(errors.New("unseal calendar token"), err)
	}
	return plain, nil
}

// normalizeEmail normalizes email addresses for consistent storage and lookup
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
