package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/tutorbook/internal/persistence"
	"github.com/example/tutorbook/internal/persistence/sqlite"
	"github.com/example/tutorbook/internal/persistence/sqlite/migration"
	"github.com/example/tutorbook/internal/tokenseal"
)

// SQLiteHarness provides repository access backed by a temporary, migrated
// SQLite database for integration-style tests.
type SQLiteHarness struct {
	Store *sqlite.Store
	Clock *Clock
}

// NewSQLiteHarness opens a store in tb.TempDir and closes it on cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	sealer, err := tokenseal.New(make([]byte, 32))
	if err != nil {
		tb.Fatalf("failed to build sealer: %v", err)
	}

	clock := NewClock(time.Time{})
	config := migration.TempFileTestSQLiteConfig(filepath.Join(tb.TempDir(), "tutorbook.db"))
	store, err := sqlite.Open(context.Background(), config, sealer, clock.NowFunc(), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	tb.Cleanup(func() { _ = store.Close() })
	return &SQLiteHarness{Store: store, Clock: clock}
}

// SeedUsers upserts users, failing the test on error.
func (h *SQLiteHarness) SeedUsers(tb testing.TB, users ...UserFixture) {
	tb.Helper()
	for _, user := range users {
		if _, err := h.Store.Users.UpsertUser(context.Background(), user.Persistence()); err != nil {
			tb.Fatalf("failed to seed user %s: %v", user.ID, err)
		}
	}
}

// SeedAvailability replaces speakerID's availability with entries.
func (h *SQLiteHarness) SeedAvailability(tb testing.TB, speakerID string, entries ...AvailabilityFixture) {
	tb.Helper()
	rows := make([]persistence.AvailabilityEntry, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, entry.Persistence())
	}
	if err := h.Store.Availability.ReplaceAvailability(context.Background(), speakerID, rows); err != nil {
		tb.Fatalf("failed to seed availability: %v", err)
	}
}

// SeedSessions inserts sessions, failing the test on error.
func (h *SQLiteHarness) SeedSessions(tb testing.TB, sessions ...SessionFixture) {
	tb.Helper()
	for _, session := range sessions {
		if err := h.Store.Sessions.CreateSession(context.Background(), session.Persistence()); err != nil {
			tb.Fatalf("failed to seed session %s: %v", session.ID, err)
		}
	}
}
