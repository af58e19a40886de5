package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/partmirror/internal/blob"
)

func openTestLedger(t *testing.T) *SQLite {
	t.Helper()
	led, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, led.Close())
	})
	return led
}

func TestSQLite_PutGetDelete(t *testing.T) {
	led := openTestLedger(t)
	ctx := context.Background()

	meta := blob.ObjectMeta{ETag: `"abc"`, VersionID: "dst-v1", ContentType: "text/plain"}
	tags := map[string]string{"env": "prod"}

	require.NoError(t, led.Put(ctx, "a.txt", "v1", Update{Object: &meta, Tags: &tags}))

	rec, err := led.Get(ctx, "a.txt", "v1")
	require.NoError(t, err)
	assert.Equal(t, "dst-v1", rec.Object.VersionID)
	assert.Equal(t, `"abc"`, rec.Object.ETag)
	assert.Equal(t, map[string]string{"env": "prod"}, rec.Tags)

	require.NoError(t, led.Delete(ctx, "a.txt", "v1"))
	_, err = led.Get(ctx, "a.txt", "v1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_GetMissing(t *testing.T) {
	led := openTestLedger(t)

	_, err := led.Get(context.Background(), "missing.txt", "v1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_PartialUpdateTagsOnly(t *testing.T) {
	led := openTestLedger(t)
	ctx := context.Background()

	meta := blob.ObjectMeta{VersionID: "dst-v1"}
	tags := map[string]string{"env": "prod"}
	require.NoError(t, led.Put(ctx, "a.txt", "v1", Update{Object: &meta, Tags: &tags}))

	newTags := map[string]string{"env": "staging", "team": "infra"}
	require.NoError(t, led.Put(ctx, "a.txt", "v1", Update{Tags: &newTags}))

	rec, err := led.Get(ctx, "a.txt", "v1")
	require.NoError(t, err)
	assert.Equal(t, "dst-v1", rec.Object.VersionID, "metadata untouched by tags-only update")
	assert.Equal(t, newTags, rec.Tags)
}

func TestSQLite_PartialUpdateObjectOnly(t *testing.T) {
	led := openTestLedger(t)
	ctx := context.Background()

	meta := blob.ObjectMeta{VersionID: "dst-v1"}
	tags := map[string]string{"env": "prod"}
	require.NoError(t, led.Put(ctx, "a.txt", "v1", Update{Object: &meta, Tags: &tags}))

	newMeta := blob.ObjectMeta{VersionID: "dst-v2"}
	require.NoError(t, led.Put(ctx, "a.txt", "v1", Update{Object: &newMeta}))

	rec, err := led.Get(ctx, "a.txt", "v1")
	require.NoError(t, err)
	assert.Equal(t, "dst-v2", rec.Object.VersionID)
	assert.Equal(t, tags, rec.Tags, "tags untouched by metadata-only update")
}

func TestSQLite_EmptyTagsDistinctFromAbsent(t *testing.T) {
	led := openTestLedger(t)
	ctx := context.Background()

	meta := blob.ObjectMeta{VersionID: "dst-v1"}
	tags := map[string]string{"env": "prod"}
	require.NoError(t, led.Put(ctx, "a.txt", "v1", Update{Object: &meta, Tags: &tags}))

	empty := map[string]string{}
	require.NoError(t, led.Put(ctx, "a.txt", "v1", Update{Tags: &empty}))

	rec, err := led.Get(ctx, "a.txt", "v1")
	require.NoError(t, err)
	assert.Empty(t, rec.Tags, "pointer to empty map clears the stored tag set")
	assert.Equal(t, "dst-v1", rec.Object.VersionID)
}

func TestSQLite_EmptyUpdateIsNoOp(t *testing.T) {
	led := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, led.Put(ctx, "a.txt", "v1", Update{}))

	_, err := led.Get(ctx, "a.txt", "v1")
	assert.ErrorIs(t, err, ErrNotFound, "an update naming no fields writes nothing")
}

func TestSQLite_SentinelKeepsUnversionedDistinct(t *testing.T) {
	led := openTestLedger(t)
	ctx := context.Background()

	versioned := blob.ObjectMeta{VersionID: "dst-v1"}
	unversioned := blob.ObjectMeta{VersionID: "dst-v2"}
	require.NoError(t, led.Put(ctx, "a.txt", "v1", Update{Object: &versioned}))
	require.NoError(t, led.Put(ctx, "a.txt", "", Update{Object: &unversioned}))

	rec, err := led.Get(ctx, "a.txt", "v1")
	require.NoError(t, err)
	assert.Equal(t, "dst-v1", rec.Object.VersionID)

	rec, err = led.Get(ctx, "a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "dst-v2", rec.Object.VersionID)
}

func TestSQLite_DeleteMissingIsNoOp(t *testing.T) {
	led := openTestLedger(t)

	assert.NoError(t, led.Delete(context.Background(), "missing.txt", "v1"))
}

func TestStorageVersion(t *testing.T) {
	assert.Equal(t, SentinelVersion, StorageVersion(""))
	assert.Equal(t, "v1", StorageVersion("v1"))
}
