package queue

import "context"

// Message is one queued notification.
type Message struct {
	// ID uniquely identifies the message within the queue. It is the
	// identifier reported back for failed batch items.
	ID string

	// GroupID is the ordering/partition key (the object key). All messages
	// sharing a GroupID are delivered in publication order.
	GroupID string

	// Body is the JSON-serialized original notification, byte for byte.
	Body []byte

	// Receipt is the transport-specific delivery handle needed to settle
	// the message (SQS receipt handle). Empty for transports that settle
	// by ID.
	Receipt string
}

// Publisher publishes messages onto the ordered queue.
//
// Publish failures propagate to the caller; retry policy belongs to the
// invoking collaborator, not to the publisher.
type Publisher interface {
	// Publish enqueues body under the given group ID and returns the
	// assigned message ID.
	Publish(ctx context.Context, groupID string, body []byte) (string, error)
}

// Receiver drains messages from the ordered queue.
//
// Receive never returns two messages for the same group in one batch, and a
// received message blocks further delivery for its group until it is settled
// with Delete (success) or Release (failure, redeliver).
type Receiver interface {
	Receive(ctx context.Context, max int) ([]Message, error)

	// Delete acknowledges a message; it will not be delivered again.
	Delete(ctx context.Context, m Message) error

	// Release returns a failed message to its group for redelivery. For
	// transports with visibility timeouts this may be a no-op.
	Release(ctx context.Context, m Message) error
}
