package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/partmirror/internal/queue"
)

// Filter decides which raw notifications enter the replication pipeline and
// publishes accepted ones onto the ordered queue, keyed by object key.
//
// The filter holds no state and has no error conditions of its own beyond
// publish failure, which propagates to the caller.
type Filter struct {
	pub queue.Publisher
	log *slog.Logger
}

// NewFilter creates a filter publishing to pub.
func NewFilter(pub queue.Publisher, log *slog.Logger) *Filter {
	return &Filter{pub: pub, log: log}
}

// Handle inspects one raw notification. Accepted notifications are published
// exactly once with the object key as the group ID and the original bytes as
// the body; dropped ones produce no side effect.
//
// Returns the queued message ID, or "" when the notification was dropped.
func (f *Filter) Handle(ctx context.Context, raw []byte) (string, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decode notification: %w", err)
	}

	log := f.log.With(
		"key", n.Detail.Object.Key,
		"version", n.Detail.Object.VersionID,
	)

	if !accepted(n) {
		log.Debug("skipping notification",
			"detail_type", n.DetailType,
			"reason", n.Detail.Reason,
		)
		return "", nil
	}

	id, err := f.pub.Publish(ctx, n.Detail.Object.Key, raw)
	if err != nil {
		return "", fmt.Errorf("publish notification for %q: %w", n.Detail.Object.Key, err)
	}

	log.Info("queued notification",
		"detail_type", n.DetailType,
		"reason", n.Detail.Reason,
		"message_id", id,
	)
	return id, nil
}

// accepted reports whether the notification describes a mutation the
// pipeline replicates.
//
// Deletes are accepted only when explicitly requested; lifecycle-expiration
// deletes (and every other detail-type: restores, storage-class changes,
// tier changes, ACL changes) are dropped.
func accepted(n Notification) bool {
	switch n.DetailType {
	case TypeObjectCreated, TypeObjectTagsAdded, TypeObjectTagsDeleted:
		return true
	case TypeObjectDeleted:
		return n.Detail.Reason == ReasonDeleteObject
	default:
		return false
	}
}
