package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tutorbook/internal/oauth"
	"github.com/example/tutorbook/internal/queue"
)

type credentialStub struct {
	cred oauth.Credential
	err  error
}

func (c credentialStub) LoadCredential(ctx context.Context, speakerID string) (oauth.Credential, error) {
	if c.err != nil {
		return oauth.Credential{}, c.err
	}
	cred := c.cred
	cred.SpeakerID = speakerID
	return cred, nil
}

type tokenStub struct {
	err error
}

func (t tokenStub) ObtainValidToken(ctx context.Context, cred oauth.Credential) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return "token-" + cred.SpeakerID, nil
}

type deleterStub struct {
	mu      sync.Mutex
	deleted []string
	tokens  []string
	err     error
	done    chan struct{}
}

func (d *deleterStub) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	d.mu.Lock()
	d.deleted = append(d.deleted, eventID)
	d.tokens = append(d.tokens, accessToken)
	d.mu.Unlock()
	if d.done != nil {
		d.done <- struct{}{}
	}
	return d.err
}

func TestCleanupWorker_ConsumesJobs(t *testing.T) {
	t.Parallel()

	client := queue.NewMemoryClient(4)
	deleter := &deleterStub{done: make(chan struct{}, 4)}
	worker := NewCleanupWorker(client, credentialStub{}, tokenStub{}, deleter, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	// malformed messages are skipped
	require.NoError(t, client.Publish(ctx, []byte("{")))
	require.NoError(t, queue.PublishCleanup(ctx, client, queue.CleanupJob{SessionID: "s1", SpeakerID: "sp1", EventID: "evt-1"}))
	require.NoError(t, queue.PublishCleanup(ctx, client, queue.CleanupJob{SessionID: "s2", SpeakerID: "sp1", EventID: "evt-2"}))

	for i := 0; i < 2; i++ {
		select {
		case <-deleter.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for cleanup %d", i)
		}
	}
	cancel()
	worker.Wait()

	deleter.mu.Lock()
	defer deleter.mu.Unlock()
	assert.ElementsMatch(t, []string{"evt-1", "evt-2"}, deleter.deleted)
	assert.Equal(t, []string{"token-sp1", "token-sp1"}, deleter.tokens)
}

func TestCleanupWorker_Process(t *testing.T) {
	t.Parallel()

	job := queue.CleanupJob{SessionID: "s1", SpeakerID: "sp1", EventID: "evt-1"}

	t.Run("disconnected speaker is skipped", func(t *testing.T) {
		t.Parallel()
		deleter := &deleterStub{}
		worker := NewCleanupWorker(queue.NewMemoryClient(1), credentialStub{}, tokenStub{err: oauth.ErrNotConnected}, deleter, 1, nil)

		err := worker.Process(context.Background(), job)
		require.ErrorIs(t, err, oauth.ErrNotConnected)
		assert.Empty(t, deleter.deleted)
	})

	t.Run("credential lookup failure", func(t *testing.T) {
		t.Parallel()
		worker := NewCleanupWorker(queue.NewMemoryClient(1), credentialStub{err: errors.New("db down")}, tokenStub{}, &deleterStub{}, 1, nil)
		require.Error(t, worker.Process(context.Background(), job))
	})

	t.Run("delete failure is returned", func(t *testing.T) {
		t.Parallel()
		deleter := &deleterStub{err: errors.New("boom")}
		worker := NewCleanupWorker(queue.NewMemoryClient(1), credentialStub{}, tokenStub{}, deleter, 1, nil)
		require.Error(t, worker.Process(context.Background(), job))
		assert.Equal(t, []string{"evt-1"}, deleter.deleted)
	})
}

type completerStub struct {
	mu    sync.Mutex
	calls int
	count int
	err   error
}

func (c *completerStub) CompleteElapsed(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.count, c.err
}

func TestCompletionSweeper(t *testing.T) {
	t.Parallel()

	t.Run("sweep reports completed count", func(t *testing.T) {
		t.Parallel()
		sweeper := NewCompletionSweeper(&completerStub{count: 3}, time.Minute, nil)
		assert.Equal(t, 3, sweeper.Sweep(context.Background()))

		failing := NewCompletionSweeper(&completerStub{err: errors.New("db")}, time.Minute, nil)
		assert.Zero(t, failing.Sweep(context.Background()))
	})

	t.Run("run sweeps until cancelled", func(t *testing.T) {
		t.Parallel()
		completer := &completerStub{}
		sweeper := NewCompletionSweeper(completer, 5*time.Millisecond, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
		defer cancel()
		sweeper.Run(ctx)

		completer.mu.Lock()
		defer completer.mu.Unlock()
		assert.GreaterOrEqual(t, completer.calls, 2)
	})

	t.Run("disabled sweeper returns immediately", func(t *testing.T) {
		t.Parallel()
		completer := &completerStub{}
		NewCompletionSweeper(completer, 0, nil).Run(context.Background())
		assert.Zero(t, completer.calls)
	})
}
