package vfs

import (
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountAndReadFile(t *testing.T) {
	v := New()
	require.NoError(t, v.Mount("/etc/app/appsettings.json", []byte(`{}`)))

	// leading slash is normalized away
	data, err := v.ReadFile("etc/app/appsettings.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), data)
	assert.Equal(t, 1, v.Len())
}

func TestMountDuplicateFails(t *testing.T) {
	v := New()
	require.NoError(t, v.Mount("a.txt", []byte("x")))
	assert.Error(t, v.Mount("a.txt", []byte("y")))
	assert.Error(t, v.Mount("/a.txt", []byte("y")))
	assert.Error(t, v.Mount("", nil))
}

func TestReadFileMissing(t *testing.T) {
	v := New()
	_, err := v.ReadFile("nope")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOpenImplementsFS(t *testing.T) {
	v := New()
	require.NoError(t, v.Mount("dir/file.bin", []byte{1, 2, 3}))

	var _ fs.FS = v
	f, err := v.Open("dir/file.bin")
	require.NoError(t, err)
	defer f.Close()

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, "file.bin", info.Name())
	assert.Equal(t, int64(3), info.Size())

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = v.Open("../escape")
	require.ErrorIs(t, err, fs.ErrInvalid)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	v := New()
	require.NoError(t, v.Mount("a", []byte("one")))
	require.NoError(t, v.Mount("b/c", []byte("two")))

	restored := New()
	restored.Restore(v.Snapshot())

	assert.Equal(t, v.Paths(), restored.Paths())
	data, err := restored.ReadFile("b/c")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)
}
