package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort       int
	SQLiteDSN      string
	IdentitySecret string
	TokenKey       []byte
	Location       *time.Location

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	CalendarID         string

	ExternalTimeout    time.Duration
	RetryAttempts      int
	RetryBaseDelay     time.Duration
	RefreshBuffer      time.Duration
	CancellationNotice time.Duration

	RabbitMQURL     string
	CleanupQueue    string
	CleanupWorkers  int
	CompletionSweep time.Duration
}

// Load parses configuration values from the current process environment.
//
// A .env file in the working directory is read first when present; variables
// already set in the environment take precedence over it. Missing required
// entries and malformed values are collected and reported together.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile behaves like Load but reads the dotenv file at path.
func LoadFile(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	cfg := Config{
		HTTPPort:           8080,
		SQLiteDSN:          "tutorbook.db",
		Location:           time.UTC,
		CalendarID:         "primary",
		ExternalTimeout:    60 * time.Second,
		RetryAttempts:      3,
		RetryBaseDelay:     time.Second,
		RefreshBuffer:      5 * time.Minute,
		CancellationNotice: 24 * time.Hour,
		CleanupQueue:       "calendar-cleanup",
		CleanupWorkers:     2,
		CompletionSweep:    5 * time.Minute,
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if value := env("TUTORBOOK_HTTP_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 {
			invalid = append(invalid, "TUTORBOOK_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := env("TUTORBOOK_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := env("TUTORBOOK_IDENTITY_SECRET"); secret == "" {
		missing = append(missing, "TUTORBOOK_IDENTITY_SECRET")
	} else {
		cfg.IdentitySecret = secret
	}

	if value := env("TUTORBOOK_TOKEN_KEY"); value == "" {
		missing = append(missing, "TUTORBOOK_TOKEN_KEY")
	} else if key, err := hex.DecodeString(value); err != nil || len(key) != 32 {
		invalid = append(invalid, "TUTORBOOK_TOKEN_KEY")
	} else {
		cfg.TokenKey = key
	}

	if value := env("TUTORBOOK_TIMEZONE"); value != "" {
		loc, err := time.LoadLocation(value)
		if err != nil {
			invalid = append(invalid, "TUTORBOOK_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	cfg.GoogleClientID = env("TUTORBOOK_GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = env("TUTORBOOK_GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = env("TUTORBOOK_GOOGLE_REDIRECT_URL")
	if value := env("TUTORBOOK_CALENDAR_ID"); value != "" {
		cfg.CalendarID = value
	}

	durations := []struct {
		key      string
		target   *time.Duration
		allowOff bool
	}{
		{"TUTORBOOK_EXTERNAL_TIMEOUT", &cfg.ExternalTimeout, false},
		{"TUTORBOOK_RETRY_BASE_DELAY", &cfg.RetryBaseDelay, false},
		{"TUTORBOOK_REFRESH_BUFFER", &cfg.RefreshBuffer, true},
		{"TUTORBOOK_CANCELLATION_NOTICE", &cfg.CancellationNotice, true},
		{"TUTORBOOK_COMPLETION_SWEEP", &cfg.CompletionSweep, true},
	}
	for _, d := range durations {
		value := env(d.key)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed < 0 || (parsed == 0 && !d.allowOff) {
			invalid = append(invalid, d.key)
			continue
		}
		*d.target = parsed
	}

	counts := []struct {
		key    string
		target *int
	}{
		{"TUTORBOOK_RETRY_ATTEMPTS", &cfg.RetryAttempts},
		{"TUTORBOOK_CLEANUP_WORKERS", &cfg.CleanupWorkers},
	}
	for _, c := range counts {
		value := env(c.key)
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			invalid = append(invalid, c.key)
			continue
		}
		*c.target = parsed
	}

	cfg.RabbitMQURL = env("TUTORBOOK_RABBITMQ_URL")
	if value := env("TUTORBOOK_CLEANUP_QUEUE"); value != "" {
		cfg.CleanupQueue = value
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// GoogleConfigured reports whether an OAuth client has been supplied.
func (c Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
