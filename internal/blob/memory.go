package blob

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// Memory is an in-memory versioned object store used by tests and the relay
// command's dry-run mode. It implements Store with the same observable
// semantics the S3 adapter exposes: versioned buckets stack writes, version
// "" addresses the current object, and missing objects yield *NotFoundError.
//
// Calls counts operations by name so tests can assert which API was used
// (e.g. that clearing tags is a distinct call from setting an empty set).
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*memBucket
	seq     int

	Calls map[string]int
}

type memBucket struct {
	versioned bool
	objects   map[string][]*memObject // oldest first
}

type memObject struct {
	version string
	data    []byte
	meta    ObjectMeta
	tags    map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		buckets: make(map[string]*memBucket),
		Calls:   make(map[string]int),
	}
}

// CreateBucket registers a bucket. Writes to a versioned bucket stack new
// versions; writes to an unversioned one replace the object.
func (m *Memory) CreateBucket(name string, versioned bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[name] = &memBucket{
		versioned: versioned,
		objects:   make(map[string][]*memObject),
	}
}

// SeedObject places an object version directly, bypassing Put. Used to
// arrange source-side state in tests.
func (m *Memory) SeedObject(bucket, key, version string, data []byte, meta ObjectMeta, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.buckets[bucket]
	meta.ETag = etagOf(data)
	meta.VersionID = version
	meta.ContentLength = int64(len(data))
	b.objects[key] = append(b.objects[key], &memObject{
		version: version,
		data:    append([]byte(nil), data...),
		meta:    meta,
		tags:    copyTags(tags),
	})
}

// Head returns the metadata of the addressed version.
func (m *Memory) Head(_ context.Context, bucket, key, version string) (ObjectMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["Head"]++

	obj, err := m.resolve(bucket, key, version)
	if err != nil {
		return ObjectMeta{}, err
	}
	return obj.meta, nil
}

// Open returns a reader over the addressed version's body.
func (m *Memory) Open(_ context.Context, bucket, key, version string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["Open"]++

	obj, err := m.resolve(bucket, key, version)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Put writes a new object version (or replaces the object on an unversioned
// bucket), applying the allow-listed headers, tags and encryption from opts.
func (m *Memory) Put(_ context.Context, bucket, key string, body io.Reader, opts PutOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["Put"]++

	b, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %q does not exist", bucket)
	}

	meta := ObjectMeta{
		ETag:               etagOf(data),
		ContentLength:      int64(len(data)),
		LastModified:       time.Now().UTC(),
		CacheControl:       opts.Meta.CacheControl,
		ContentDisposition: opts.Meta.ContentDisposition,
		ContentEncoding:    opts.Meta.ContentEncoding,
		ContentLanguage:    opts.Meta.ContentLanguage,
		ContentType:        opts.Meta.ContentType,
		Expires:            opts.Meta.Expires,
		Metadata:           copyTags(opts.Meta.Metadata),
	}
	if opts.KMSKeyID != "" {
		meta.SSE = "aws:kms"
		meta.SSEKMSKeyID = opts.KMSKeyID
	}

	obj := &memObject{
		data: data,
		meta: meta,
		tags: copyTags(opts.Tags),
	}
	if b.versioned {
		m.seq++
		obj.version = fmt.Sprintf("mem-%06d", m.seq)
		obj.meta.VersionID = obj.version
		b.objects[key] = append(b.objects[key], obj)
	} else {
		b.objects[key] = []*memObject{obj}
	}
	return nil
}

// Tags returns the tag set of the addressed version.
func (m *Memory) Tags(_ context.Context, bucket, key, version string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["Tags"]++

	obj, err := m.resolve(bucket, key, version)
	if err != nil {
		return nil, err
	}
	return copyTags(obj.tags), nil
}

// SetTags replaces the tag set of the addressed version.
func (m *Memory) SetTags(_ context.Context, bucket, key, version string, tags map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["SetTags"]++

	obj, err := m.resolve(bucket, key, version)
	if err != nil {
		return err
	}
	obj.tags = copyTags(tags)
	return nil
}

// ClearTags removes the tag set of the addressed version.
func (m *Memory) ClearTags(_ context.Context, bucket, key, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["ClearTags"]++

	obj, err := m.resolve(bucket, key, version)
	if err != nil {
		return err
	}
	obj.tags = map[string]string{}
	return nil
}

// Delete removes the addressed version, or the whole object when no version
// is given.
func (m *Memory) Delete(_ context.Context, bucket, key, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["Delete"]++

	b, ok := m.buckets[bucket]
	if !ok {
		return &NotFoundError{Bucket: bucket, Key: key, Version: version}
	}
	versions, ok := b.objects[key]
	if !ok || len(versions) == 0 {
		return &NotFoundError{Bucket: bucket, Key: key, Version: version}
	}

	if version == "" {
		delete(b.objects, key)
		return nil
	}
	for i, obj := range versions {
		if obj.version == version {
			b.objects[key] = append(versions[:i:i], versions[i+1:]...)
			if len(b.objects[key]) == 0 {
				delete(b.objects, key)
			}
			return nil
		}
	}
	return &NotFoundError{Bucket: bucket, Key: key, Version: version}
}

// Object returns the body, metadata and tags of the addressed version.
// Test helper; ok is false when the object does not exist.
func (m *Memory) Object(bucket, key, version string) (data []byte, meta ObjectMeta, tags map[string]string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, err := m.resolve(bucket, key, version)
	if err != nil {
		return nil, ObjectMeta{}, nil, false
	}
	return append([]byte(nil), obj.data...), obj.meta, copyTags(obj.tags), true
}

// VersionCount returns how many versions exist for key. Test helper.
func (m *Memory) VersionCount(bucket, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[bucket]
	if !ok {
		return 0
	}
	return len(b.objects[key])
}

// resolve finds the addressed version. Callers hold m.mu.
func (m *Memory) resolve(bucket, key, version string) (*memObject, error) {
	b, ok := m.buckets[bucket]
	if !ok {
		return nil, &NotFoundError{Bucket: bucket, Key: key, Version: version}
	}
	versions := b.objects[key]
	if len(versions) == 0 {
		return nil, &NotFoundError{Bucket: bucket, Key: key, Version: version}
	}
	if version == "" {
		return versions[len(versions)-1], nil
	}
	for _, obj := range versions {
		if obj.version == version {
			return obj, nil
		}
	}
	return nil, &NotFoundError{Bucket: bucket, Key: key, Version: version}
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
