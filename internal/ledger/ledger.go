// Package ledger tracks destination-side state per (key, version). A record
// exists if and only if the corresponding destination object exists; its
// presence is what makes delete and tag-sync idempotent and its metadata is
// what addresses destination versions. Records are mutated only by
// replication units.
package ledger

import (
	"context"
	"errors"

	"github.com/roach88/partmirror/internal/blob"
)

// SentinelVersion stands in for the version identifier when the source
// object has no native versioning, so versioned and unversioned objects
// share one schema without collision.
const SentinelVersion = "$null"

// ErrNotFound reports that no record exists for the requested key/version.
var ErrNotFound = errors.New("ledger: record not found")

// Record is the stored destination state for one (key, version) pair.
type Record struct {
	// Object is the destination object's system metadata as read back
	// after the last write, including the destination version identifier.
	Object blob.ObjectMeta

	// Tags is the tag set last applied to the destination object.
	Tags map[string]string
}

// Update is a partial record update. A nil field is left untouched; a
// non-nil field replaces the stored value, even when it points at an empty
// value. This distinguishes "don't change tags" from "clear tags".
type Update struct {
	Object *blob.ObjectMeta
	Tags   *map[string]string
}

// Ledger is the record store contract.
//
// The version argument is the SOURCE object version; implementations map an
// empty version to SentinelVersion. Get returns ErrNotFound (possibly
// wrapped) when no record exists.
type Ledger interface {
	Get(ctx context.Context, key, version string) (Record, error)
	Put(ctx context.Context, key, version string, up Update) error
	Delete(ctx context.Context, key, version string) error
}

// StorageVersion maps a source version to its stored form.
func StorageVersion(version string) string {
	if version == "" {
		return SentinelVersion
	}
	return version
}
