package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process ordered queue partitioned by group ID.
//
// Each group holds a FIFO list of pending messages. Receive hands out at
// most one message per group; the group stays blocked until that message is
// settled with Delete or Release. This mirrors the FIFO queue semantics the
// batch consumer depends on: per-group publication order, never two
// in-flight messages for the same group.
//
// Thread-safety is provided for external publishing while a single worker
// loop receives. In practice most usage is single-threaded.
type Memory struct {
	mu       sync.Mutex
	groups   map[string][]Message
	order    []string          // group IDs in first-publish order
	inflight map[string]string // group ID -> in-flight message ID
}

// NewMemory creates an empty in-process queue.
func NewMemory() *Memory {
	return &Memory{
		groups:   make(map[string][]Message),
		inflight: make(map[string]string),
	}
}

// Publish appends a message to the back of its group.
// Thread-safe: may be called from any goroutine.
func (q *Memory) Publish(_ context.Context, groupID string, body []byte) (string, error) {
	if groupID == "" {
		return "", fmt.Errorf("publish: empty group ID")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	id := uuid.NewString()
	if _, seen := q.groups[groupID]; !seen {
		q.order = append(q.order, groupID)
	}
	q.groups[groupID] = append(q.groups[groupID], Message{
		ID:      id,
		GroupID: groupID,
		Body:    append([]byte(nil), body...),
	})

	return id, nil
}

// Receive returns up to max messages, at most one per group, skipping groups
// with an unsettled in-flight message. Returns an empty slice when nothing
// is deliverable.
func (q *Memory) Receive(_ context.Context, max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var batch []Message
	for _, group := range q.order {
		if len(batch) >= max {
			break
		}
		if _, busy := q.inflight[group]; busy {
			continue
		}
		pending := q.groups[group]
		if len(pending) == 0 {
			continue
		}
		head := pending[0]
		q.inflight[group] = head.ID
		batch = append(batch, head)
	}

	return batch, nil
}

// Delete acknowledges an in-flight message and removes it from its group.
func (q *Memory) Delete(_ context.Context, m Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inflight[m.GroupID] != m.ID {
		return fmt.Errorf("delete: message %s not in flight for group %q", m.ID, m.GroupID)
	}

	q.groups[m.GroupID] = q.groups[m.GroupID][1:]
	delete(q.inflight, m.GroupID)
	return nil
}

// Release returns an in-flight message to the head of its group so it is
// redelivered by a later Receive.
func (q *Memory) Release(_ context.Context, m Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inflight[m.GroupID] != m.ID {
		return fmt.Errorf("release: message %s not in flight for group %q", m.ID, m.GroupID)
	}

	delete(q.inflight, m.GroupID)
	return nil
}

// Len returns the total number of pending messages across all groups.
// Useful for draining loops and tests.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, pending := range q.groups {
		n += len(pending)
	}
	return n
}
