package blob

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutHeadOpen(t *testing.T) {
	m := NewMemory()
	m.CreateBucket("dst", true)
	ctx := context.Background()

	err := m.Put(ctx, "dst", "a.txt", bytes.NewReader([]byte("hello")), PutOptions{
		Meta: ObjectMeta{ContentType: "text/plain", CacheControl: "max-age=60"},
		Tags: map[string]string{"env": "prod"},
	})
	require.NoError(t, err)

	meta, err := m.Head(ctx, "dst", "a.txt", "")
	require.NoError(t, err)
	assert.NotEmpty(t, meta.VersionID)
	assert.NotEmpty(t, meta.ETag)
	assert.Equal(t, int64(5), meta.ContentLength)
	assert.Equal(t, "text/plain", meta.ContentType)
	assert.Equal(t, "max-age=60", meta.CacheControl)

	body, err := m.Open(ctx, "dst", "a.txt", "")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "hello", string(data))

	tags, err := m.Tags(ctx, "dst", "a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"env": "prod"}, tags)
}

func TestMemory_VersionedPutStacks(t *testing.T) {
	m := NewMemory()
	m.CreateBucket("dst", true)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "dst", "a.txt", bytes.NewReader([]byte("v1")), PutOptions{}))
	require.NoError(t, m.Put(ctx, "dst", "a.txt", bytes.NewReader([]byte("v2")), PutOptions{}))

	assert.Equal(t, 2, m.VersionCount("dst", "a.txt"))

	body, err := m.Open(ctx, "dst", "a.txt", "")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	assert.Equal(t, "v2", string(data), "version \"\" addresses the current object")
}

func TestMemory_UnversionedPutReplaces(t *testing.T) {
	m := NewMemory()
	m.CreateBucket("dst", false)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "dst", "a.txt", bytes.NewReader([]byte("v1")), PutOptions{}))
	require.NoError(t, m.Put(ctx, "dst", "a.txt", bytes.NewReader([]byte("v2")), PutOptions{}))

	assert.Equal(t, 1, m.VersionCount("dst", "a.txt"))
}

func TestMemory_NotFound(t *testing.T) {
	m := NewMemory()
	m.CreateBucket("dst", true)
	ctx := context.Background()

	_, err := m.Head(ctx, "dst", "missing.txt", "")
	assert.True(t, IsNotFound(err))

	_, err = m.Open(ctx, "dst", "missing.txt", "")
	assert.True(t, IsNotFound(err))

	err = m.Delete(ctx, "dst", "missing.txt", "v1")
	assert.True(t, IsNotFound(err))

	require.NoError(t, m.Put(ctx, "dst", "a.txt", bytes.NewReader([]byte("x")), PutOptions{}))
	_, err = m.Head(ctx, "dst", "a.txt", "no-such-version")
	assert.True(t, IsNotFound(err))
}

func TestMemory_DeleteVersion(t *testing.T) {
	m := NewMemory()
	m.CreateBucket("dst", true)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "dst", "a.txt", bytes.NewReader([]byte("v1")), PutOptions{}))
	meta, err := m.Head(ctx, "dst", "a.txt", "")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "dst", "a.txt", meta.VersionID))
	_, err = m.Head(ctx, "dst", "a.txt", "")
	assert.True(t, IsNotFound(err))
}

func TestMemory_KMSUpload(t *testing.T) {
	m := NewMemory()
	m.CreateBucket("dst", true)

	err := m.Put(context.Background(), "dst", "a.txt", bytes.NewReader([]byte("x")), PutOptions{
		KMSKeyID: "alias/replica",
	})
	require.NoError(t, err)

	_, meta, _, ok := m.Object("dst", "a.txt", "")
	require.True(t, ok)
	assert.Equal(t, "aws:kms", meta.SSE)
	assert.Equal(t, "alias/replica", meta.SSEKMSKeyID)
}

func TestMemory_ClearTagsIsDistinctCall(t *testing.T) {
	m := NewMemory()
	m.CreateBucket("dst", true)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "dst", "a.txt", bytes.NewReader([]byte("x")), PutOptions{
		Tags: map[string]string{"env": "prod"},
	}))

	require.NoError(t, m.ClearTags(ctx, "dst", "a.txt", ""))
	tags, err := m.Tags(ctx, "dst", "a.txt", "")
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.Equal(t, 1, m.Calls["ClearTags"])
	assert.Zero(t, m.Calls["SetTags"])
}

func TestNotFoundError_Message(t *testing.T) {
	err := &NotFoundError{Bucket: "b", Key: "k", Version: "v"}
	assert.Contains(t, err.Error(), "b/k?versionId=v")

	err = &NotFoundError{Bucket: "b", Key: "k"}
	assert.Equal(t, "object b/k not found", err.Error())
}
