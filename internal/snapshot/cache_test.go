package snapshot

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndTryLoadRoundTrip(t *testing.T) {
	c := &Cache{Storage: NewMemoryStorage()}
	image := bytes.Repeat([]byte("heap and vfs bytes "), 100)

	require.NoError(t, c.Store(context.Background(), &Record{Fingerprint: "v1-abc", Image: image}))

	rec, ok := c.TryLoad(context.Background(), "v1-abc")
	require.True(t, ok)
	assert.Equal(t, "v1-abc", rec.Fingerprint)
	assert.Equal(t, image, rec.Image)
}

func TestTryLoadMissOnAbsentKey(t *testing.T) {
	c := &Cache{Storage: NewMemoryStorage()}
	_, ok := c.TryLoad(context.Background(), "v1-missing")
	assert.False(t, ok)
}

func TestTryLoadMissOnFingerprintMismatch(t *testing.T) {
	store := NewMemoryStorage()
	c := &Cache{Storage: store}
	require.NoError(t, c.Store(context.Background(), &Record{Fingerprint: "v1-old", Image: []byte("x")}))

	// a record stored under one key but encoding another fingerprint is
	// invalidated, not deleted
	raw, err := store.Get(context.Background(), "v1-old")
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "v1-new", raw))

	_, ok := c.TryLoad(context.Background(), "v1-new")
	assert.False(t, ok)
	_, ok = c.TryLoad(context.Background(), "v1-old")
	assert.True(t, ok, "the original record survives invalidation of the alias")
}

func TestTryLoadMissOnCorruptRecord(t *testing.T) {
	store := NewMemoryStorage()
	c := &Cache{Storage: store}
	require.NoError(t, store.Put(context.Background(), "v1-bad", []byte("not a snapshot")))

	_, ok := c.TryLoad(context.Background(), "v1-bad")
	assert.False(t, ok)
}

func TestStoreOverwritesPriorRecord(t *testing.T) {
	c := &Cache{Storage: NewMemoryStorage()}
	require.NoError(t, c.Store(context.Background(), &Record{Fingerprint: "v1-k", Image: []byte("one")}))
	require.NoError(t, c.Store(context.Background(), &Record{Fingerprint: "v1-k", Image: []byte("two")}))

	rec, ok := c.TryLoad(context.Background(), "v1-k")
	require.True(t, ok)
	assert.Equal(t, []byte("two"), rec.Image)
}

func TestStoreFailureSurfacesError(t *testing.T) {
	store := NewMemoryStorage()
	store.FailPuts = true
	c := &Cache{Storage: store}
	err := c.Store(context.Background(), &Record{Fingerprint: "v1-k", Image: []byte("x")})
	require.Error(t, err)
}

func TestNilCacheIsAlwaysAMiss(t *testing.T) {
	var c *Cache
	_, ok := c.TryLoad(context.Background(), "v1-k")
	assert.False(t, ok)
}

func TestFileStorageRoundTrip(t *testing.T) {
	store := &FileStorage{Dir: t.TempDir()}
	c := &Cache{Storage: store}

	require.NoError(t, c.Store(context.Background(), &Record{Fingerprint: "v1-file/key", Image: []byte("img")}))
	rec, ok := c.TryLoad(context.Background(), "v1-file/key")
	require.True(t, ok)
	assert.Equal(t, []byte("img"), rec.Image)

	_, err := store.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}
