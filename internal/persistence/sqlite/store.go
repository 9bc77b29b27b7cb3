// Package sqlite implements the persistence repositories on modernc.org/sqlite.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/tutorbook/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Sealer protects OAuth tokens at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// Store bundles the repositories sharing one connection pool.
type Store struct {
	pool         *ConnectionPool
	Users        *UserRepository
	Availability *AvailabilityRepository
	Sessions     *SessionRepository
}

// Open connects to the database, applies pending migrations and builds the repositories.
func Open(ctx context.Context, config migration.SQLiteConfig, sealer Sealer, now func() time.Time, logger *slog.Logger) (*Store, error) {
	if sealer == nil {
		return nil, fmt.Errorf("sqlite: token sealer is required")
	}
	if now == nil {
		now = time.Now
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	manager := migration.NewManager(migration.NewExecutor(pool.DB()), migrationsFS, "migrations", logger)
	if err := manager.Run(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return &Store{
		pool:         pool,
		Users:        NewUserRepository(pool, sealer, now),
		Availability: NewAvailabilityRepository(pool, now),
		Sessions:     NewSessionRepository(pool, now),
	}, nil
}

// Pool exposes the underlying connection pool.
func (s *Store) Pool() *ConnectionPool {
	return s.pool
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}
