// Package consumer drains ordered queue batches into replication units. Each
// message is handled independently so one bad object cannot wedge the
// batch: failures are reported per message and only those messages return to
// the queue.
package consumer

import (
	"context"
	"log/slog"

	"github.com/roach88/partmirror/internal/event"
	"github.com/roach88/partmirror/internal/queue"
)

// Replicator applies one parsed change event to the destination.
type Replicator interface {
	Replicate(ctx context.Context, ev event.ChangeEvent) error
}

// ReplicatorFunc adapts a function to the Replicator interface.
type ReplicatorFunc func(ctx context.Context, ev event.ChangeEvent) error

// Replicate implements Replicator.
func (f ReplicatorFunc) Replicate(ctx context.Context, ev event.ChangeEvent) error {
	return f(ctx, ev)
}

// ItemFailure identifies one message that must be redelivered.
type ItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// Result is the partial-batch outcome. Its JSON shape is the contract the
// queue service uses to return only the failed messages: an empty (non-null)
// list acknowledges the whole batch.
type Result struct {
	BatchItemFailures []ItemFailure `json:"batchItemFailures"`
}

// Failed reports whether id is among the failed items.
func (r Result) Failed(id string) bool {
	for _, f := range r.BatchItemFailures {
		if f.ItemIdentifier == id {
			return true
		}
	}
	return false
}

// Consumer processes queue batches.
type Consumer struct {
	rep Replicator
	log *slog.Logger
}

// New creates a consumer dispatching to rep.
func New(rep Replicator, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{rep: rep, log: log}
}

// ProcessBatch handles each message in order and collects the failures.
//
// A body that does not parse counts as a failed item like any other error;
// dropping it silently would acknowledge a message nothing handled. Panics
// are not recovered: a panic fails the whole batch at the runtime level,
// which is the correct blast radius for a programming error.
func (c *Consumer) ProcessBatch(ctx context.Context, msgs []queue.Message) Result {
	failures := []ItemFailure{}

	for _, msg := range msgs {
		log := c.log.With("messageId", msg.ID)

		ev, err := event.Parse(msg.Body)
		if err != nil {
			log.Error("notification did not parse", "error", err)
			failures = append(failures, ItemFailure{ItemIdentifier: msg.ID})
			continue
		}

		log = log.With("key", ev.Key, "version", ev.Version, "kind", ev.Kind.String())

		if err := c.rep.Replicate(ctx, ev); err != nil {
			log.Error("replication failed", "error", err)
			failures = append(failures, ItemFailure{ItemIdentifier: msg.ID})
			continue
		}
		log.Info("message processed")
	}

	return Result{BatchItemFailures: failures}
}
