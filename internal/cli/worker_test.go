package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/partmirror/internal/consumer"
	"github.com/roach88/partmirror/internal/event"
	"github.com/roach88/partmirror/internal/queue"
)

// flakyReplicator fails each key once, then succeeds. Tracks attempts.
type flakyReplicator struct {
	mu       sync.Mutex
	attempts map[string]int
}

func (r *flakyReplicator) Replicate(_ context.Context, ev event.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempts == nil {
		r.attempts = map[string]int{}
	}
	r.attempts[ev.Key]++
	if r.attempts[ev.Key] == 1 {
		return errors.New("transient failure")
	}
	return nil
}

func (r *flakyReplicator) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[key]
}

func TestPoll_RetriesReleasedMessages(t *testing.T) {
	q := queue.NewMemory()
	body := fmt.Sprintf(`{"detail-type":%q,"detail":{"bucket":{"name":"src"},"object":{"key":"a.txt","version-id":"v1"}}}`,
		event.TypeObjectCreated)
	_, err := q.Publish(context.Background(), "a.txt", []byte(body))
	require.NoError(t, err)

	rep := &flakyReplicator{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cons := consumer.New(rep, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- poll(ctx, q, cons, 10, log)
	}()

	require.Eventually(t, func() bool {
		return q.Len() == 0 && rep.count("a.txt") == 2
	}, 5*time.Second, time.Millisecond, "failed message is released and redelivered until it succeeds")

	cancel()
	err = <-done
	assert.ErrorIs(t, err, context.Canceled)
}
