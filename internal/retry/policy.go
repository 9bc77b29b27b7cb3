// Package retry implements the named retry policy applied to calls against the
// OAuth and calendar providers.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"syscall"
	"time"
)

// Class separates failures worth retrying from terminal ones.
type Class int

const (
	// Terminal failures are returned to the caller immediately.
	Terminal Class = iota
	// Transient failures are retried until attempts are exhausted.
	Transient
)

// Classifier decides whether err is transient.
type Classifier func(err error) Class

// Policy configures exponential backoff for a remote call.
type Policy struct {
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	// Jitter adds up to Jitter*delay of random extra wait. Zero disables it.
	Jitter   float64
	Classify Classifier

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError is returned after the last transient failure.
type ExhaustedError struct {
	Policy   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Policy, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Default returns the provider policy: three attempts, one second base delay
// doubling per attempt, with 20% jitter and the network classifier.
func Default(name string) Policy {
	return Policy{
		Name:        name,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
		Classify:    NetworkClassifier,
	}
}

// Do runs fn until it succeeds, fails terminally, or attempts run out.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = NetworkClassifier
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(err) != Transient {
			return err
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return err
		}
	}

	return &ExhaustedError{Policy: p.Name, Attempts: attempts, Err: lastErr}
}

// Delay returns the wait after the given (1-based) failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay += delay * p.Jitter * rand.Float64()
	}
	return time.Duration(delay)
}

// Budget is the longest Do can take when each attempt is bounded by
// callTimeout: every attempt timing out plus the largest jittered waits.
func (p Policy) Budget(callTimeout time.Duration) time.Duration {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	total := time.Duration(attempts) * callTimeout
	for attempt := 1; attempt < attempts; attempt++ {
		wait := p
		wait.Jitter = 0
		delay := wait.Delay(attempt)
		total += delay + time.Duration(float64(delay)*p.Jitter)
	}
	return total
}

// NetworkClassifier treats timeouts, connection resets and DNS failures as
// transient. Context cancellation by the caller is terminal.
func NetworkClassifier(err error) Class {
	if err == nil {
		return Terminal
	}
	if errors.Is(err, context.Canceled) {
		return Terminal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return Transient
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}
	return Terminal
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
