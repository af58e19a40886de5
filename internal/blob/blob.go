// Package blob abstracts the object stores on both sides of the partition
// boundary. The source and destination stores are the same interface bound
// to different credential scopes; operations never choose a scope
// implicitly.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ObjectMeta is the system metadata tracked for a replicated object. The
// content headers mirror the fixed allow-list that is propagated on copy.
type ObjectMeta struct {
	ETag               string
	VersionID          string
	ContentLength      int64
	LastModified       time.Time
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	ContentLanguage    string
	ContentType        string
	Expires            time.Time
	Metadata           map[string]string // user metadata
	SSE                string            // server-side encryption algorithm
	SSEKMSKeyID        string
}

// PutOptions carries the headers, tags and encryption parameters applied to
// an uploaded object.
type PutOptions struct {
	// Meta supplies the allow-listed headers (cache-control, expires,
	// content-disposition/encoding/language/type, user metadata). Other
	// ObjectMeta fields are ignored on upload.
	Meta ObjectMeta

	// Tags, when non-empty, is applied as the object's tag set.
	Tags map[string]string

	// KMSKeyID, when set, enables aws:kms server-side encryption with the
	// given key on the uploaded object.
	KMSKeyID string
}

// Store is the object store contract used by replication units.
//
// A version argument of "" addresses the current object; adapters for
// non-versioned stores ignore it. All calls are synchronous and may block
// for the duration of a transfer; callers bound them with a context.
type Store interface {
	// Head returns the object's system metadata without its body.
	Head(ctx context.Context, bucket, key, version string) (ObjectMeta, error)

	// Open returns the object body for streaming. The caller closes it.
	Open(ctx context.Context, bucket, key, version string) (io.ReadCloser, error)

	// Put writes body under key, applying opts. The store assigns a new
	// version on versioned buckets.
	Put(ctx context.Context, bucket, key string, body io.Reader, opts PutOptions) error

	// Tags returns the object's tag set as a flat map.
	Tags(ctx context.Context, bucket, key, version string) (map[string]string, error)

	// SetTags replaces the object's full tag set.
	SetTags(ctx context.Context, bucket, key, version string, tags map[string]string) error

	// ClearTags removes the object's tag set entirely. This is a distinct
	// operation from SetTags with an empty map.
	ClearTags(ctx context.Context, bucket, key, version string) error

	// Delete removes the object (a specific version when given).
	Delete(ctx context.Context, bucket, key, version string) error
}

// NotFoundError reports that an object (or object version) does not exist.
type NotFoundError struct {
	Bucket  string
	Key     string
	Version string
	Err     error
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("object %s/%s?versionId=%s not found", e.Bucket, e.Key, e.Version)
	}
	return fmt.Sprintf("object %s/%s not found", e.Bucket, e.Key)
}

// Unwrap returns the underlying store error, if any.
func (e *NotFoundError) Unwrap() error { return e.Err }

// IsNotFound reports whether err indicates a missing object.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
