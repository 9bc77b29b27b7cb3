// Package queue carries background jobs between the API and the workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrClosed is returned when publishing to a closed client.
	ErrClosed = errors.New("queue: client closed")
	// ErrFull is returned when the in-memory buffer has no room left.
	ErrFull = errors.New("queue: buffer full")
)

// Client publishes and consumes opaque message bodies.
type Client interface {
	Publish(ctx context.Context, body []byte) error
	Consume(ctx context.Context) (<-chan []byte, error)
	Close() error
}

// CleanupJob asks the cleanup worker to delete an orphaned remote calendar event.
type CleanupJob struct {
	SessionID string `json:"sessionId"`
	SpeakerID string `json:"speakerId"`
	EventID   string `json:"eventId"`
}

// Validate reports missing identifiers.
func (j CleanupJob) Validate() error {
	if j.SpeakerID == "" || j.EventID == "" {
		return fmt.Errorf("queue: cleanup job requires speakerId and eventId")
	}
	return nil
}

// PublishCleanup encodes and publishes a cleanup job.
func PublishCleanup(ctx context.Context, client Client, job CleanupJob) error {
	if client == nil {
		return errors.New("queue: client is nil")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encode cleanup job: %w", err)
	}
	return client.Publish(ctx, body)
}

// CleanupPublisher enqueues cleanup jobs on a Client.
type CleanupPublisher struct {
	Client Client
}

// EnqueueCleanup publishes job.
func (p CleanupPublisher) EnqueueCleanup(ctx context.Context, job CleanupJob) error {
	return PublishCleanup(ctx, p.Client, job)
}

// DecodeCleanup parses a message body produced by PublishCleanup.
func DecodeCleanup(body []byte) (CleanupJob, error) {
	var job CleanupJob
	if err := json.Unmarshal(body, &job); err != nil {
		return CleanupJob{}, fmt.Errorf("queue: decode cleanup job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return CleanupJob{}, err
	}
	return job, nil
}

// MemoryClient is an in-process Client used when no broker is configured.
// Every consumer reads from the same buffered channel. Publish never waits: a
// full buffer is reported as ErrFull.
type MemoryClient struct {
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryClient returns a MemoryClient buffering up to size messages.
func NewMemoryClient(size int) *MemoryClient {
	if size <= 0 {
		size = 64
	}
	return &MemoryClient{ch: make(chan []byte, size), done: make(chan struct{})}
}

func (m *MemoryClient) Publish(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	msg := make([]byte, len(body))
	copy(msg, body)
	select {
	case m.ch <- msg:
		return nil
	default:
		return ErrFull
	}
}

// Consume delivers messages until ctx is cancelled or the client is closed.
func (m *MemoryClient) Consume(ctx context.Context) (<-chan []byte, error) {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case msg := <-m.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				case <-m.done:
					return
				}
			}
		}
	}()
	return out, nil
}

// Close stops consumers. Messages still buffered are dropped.
func (m *MemoryClient) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}
