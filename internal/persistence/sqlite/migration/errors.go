package migration

import (
	"errors"
	"fmt"
)

var (
	ErrMigrationFailed      = errors.New("migration: apply failed")
	ErrInvalidMigrationFile = errors.New("migration: malformed file")
	ErrDuplicateVersion     = errors.New("migration: duplicate version")
	// ErrChecksumMismatch means an applied file was edited after it ran.
	ErrChecksumMismatch = errors.New("migration: checksum mismatch")
)

// MigrationError records which file and step of the schema upgrade failed.
type MigrationError struct {
	Version   string
	FilePath  string
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	name := e.FilePath
	if e.Version != "" {
		name = e.Version + " " + name
	}
	return fmt.Sprintf("migration %s: %s: %v", name, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

func NewMigrationError(version, filePath, operation string, err error) *MigrationError {
	return &MigrationError{Version: version, FilePath: filePath, Operation: operation, Err: err}
}
