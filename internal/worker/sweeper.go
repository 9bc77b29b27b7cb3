package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/tutorbook/internal/metrics"
)

// SessionCompleter marks elapsed scheduled sessions as completed.
type SessionCompleter interface {
	CompleteElapsed(ctx context.Context) (int, error)
}

// CompletionSweeper periodically moves sessions whose end has passed to completed.
type CompletionSweeper struct {
	completer SessionCompleter
	interval  time.Duration
	logger    *slog.Logger
}

func NewCompletionSweeper(completer SessionCompleter, interval time.Duration, logger *slog.Logger) *CompletionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompletionSweeper{completer: completer, interval: interval, logger: logger.With("component", "completion_sweeper")}
}

// Run sweeps once immediately and then on every tick until ctx is done. A
// non-positive interval disables the sweeper.
func (s *CompletionSweeper) Run(ctx context.Context) {
	if s == nil || s.completer == nil || s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass.
func (s *CompletionSweeper) Sweep(ctx context.Context) int {
	count, err := s.completer.CompleteElapsed(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "completion sweep failed", "error", err)
		return 0
	}
	if count > 0 {
		metrics.CompletedSessions.Add(float64(count))
		s.logger.InfoContext(ctx, "sessions completed", "count", count)
	}
	return count
}
