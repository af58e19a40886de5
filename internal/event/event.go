package event

import (
	"encoding/json"
	"fmt"
)

// Kind distinguishes the object mutations the pipeline replicates.
type Kind int

const (
	// KindCreated represents an object written to the source bucket.
	KindCreated Kind = iota + 1
	// KindDeleted represents an explicit object delete request.
	KindDeleted
	// KindTagsChanged represents a tag set mutation (added or deleted).
	KindTagsChanged
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindDeleted:
		return "deleted"
	case KindTagsChanged:
		return "tags-changed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Notification detail-type values recognized by the pipeline.
const (
	TypeObjectCreated     = "Object Created"
	TypeObjectDeleted     = "Object Deleted"
	TypeObjectTagsAdded   = "Object Tags Added"
	TypeObjectTagsDeleted = "Object Tags Deleted"
)

// ReasonDeleteObject is the only delete cause that is replicated. Deletes
// caused by lifecycle expiration are dropped.
const ReasonDeleteObject = "DeleteObject"

// Notification is the wire shape of one inbound change notification.
type Notification struct {
	DetailType string `json:"detail-type"`
	Detail     Detail `json:"detail"`
}

// Detail is the notification payload.
type Detail struct {
	Bucket Bucket       `json:"bucket"`
	Object ObjectRecord `json:"object"`
	Reason string       `json:"reason,omitempty"`
}

// Bucket identifies the source bucket.
type Bucket struct {
	Name string `json:"name"`
}

// ObjectRecord identifies the mutated object.
type ObjectRecord struct {
	Key       string `json:"key"`
	VersionID string `json:"version-id,omitempty"`
}

// ChangeEvent is the immutable, parsed description of one object mutation.
// It is produced once per accepted notification and consumed by exactly one
// replication unit.
type ChangeEvent struct {
	Key          string
	Version      string // empty when the source bucket is not versioned
	Kind         Kind
	Reason       string
	SourceBucket string
}

// Parse decodes a queued notification body into a ChangeEvent.
//
// An unrecognized detail-type is a parse error: the queue only ever contains
// notification types the filter accepted, so anything else is malformed
// input, not a dispatchable event.
func Parse(body []byte) (ChangeEvent, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode notification: %w", err)
	}
	return FromNotification(n)
}

// FromNotification converts a decoded notification into a ChangeEvent.
func FromNotification(n Notification) (ChangeEvent, error) {
	var kind Kind
	switch n.DetailType {
	case TypeObjectCreated:
		kind = KindCreated
	case TypeObjectDeleted:
		kind = KindDeleted
	case TypeObjectTagsAdded, TypeObjectTagsDeleted:
		kind = KindTagsChanged
	default:
		return ChangeEvent{}, fmt.Errorf("unknown notification detail-type %q", n.DetailType)
	}

	if n.Detail.Object.Key == "" {
		return ChangeEvent{}, fmt.Errorf("notification %q missing object key", n.DetailType)
	}

	return ChangeEvent{
		Key:          n.Detail.Object.Key,
		Version:      n.Detail.Object.VersionID,
		Kind:         kind,
		Reason:       n.Detail.Reason,
		SourceBucket: n.Detail.Bucket.Name,
	}, nil
}
