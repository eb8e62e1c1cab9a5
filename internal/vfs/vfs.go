// Package vfs implements the virtual filesystem populated during boot.
// Mounted files are visible to the managed runtime under their virtual
// paths; the table implements io/fs.FS so host code can reuse standard fs
// tooling.
package vfs

import (
	"bytes"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"
)

// FS is a mount table of virtual paths to file contents. Mutated only by
// the materializer during boot; reads are safe at any point.
type FS struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// New creates an empty virtual filesystem.
func New() *FS {
	return &FS{files: make(map[string][]byte)}
}

// Normalize strips the leading slash so "/etc/app.json" and "etc/app.json"
// address the same entry, matching fs.FS name rules.
func Normalize(path string) string {
	return strings.TrimPrefix(path, "/")
}

// Mount installs data under path. Mounting the same path twice is an
// error; no asset is materialized twice under one name.
func (v *FS) Mount(path string, data []byte) error {
	name := Normalize(path)
	if name == "" {
		return fmt.Errorf("vfs: empty mount path")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.files[name]; exists {
		return fmt.Errorf("vfs: path %q already mounted", name)
	}
	v.files[name] = data
	return nil
}

// ReadFile returns the contents mounted under path.
func (v *FS) ReadFile(path string) ([]byte, error) {
	name := Normalize(path)
	v.mu.RLock()
	defer v.mu.RUnlock()
	data, ok := v.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Len returns the number of mounted files.
func (v *FS) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.files)
}

// Paths returns all mounted paths in sorted order.
func (v *FS) Paths() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	paths := make([]string, 0, len(v.files))
	for p := range v.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Snapshot returns a copy of the whole mount table for snapshot
// serialization.
func (v *FS) Snapshot() map[string][]byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string][]byte, len(v.files))
	for p, data := range v.files {
		cp := make([]byte, len(data))
		copy(cp, data)
		out[p] = cp
	}
	return out
}

// Restore replaces the mount table from a snapshot.
func (v *FS) Restore(files map[string][]byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files = make(map[string][]byte, len(files))
	for p, data := range files {
		cp := make([]byte, len(data))
		copy(cp, data)
		v.files[Normalize(p)] = cp
	}
}

// Open implements fs.FS.
func (v *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	data, err := v.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return &file{name: name, Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

type file struct {
	*bytes.Reader
	name string
	size int64
}

func (f *file) Stat() (fs.FileInfo, error) { return fileInfo{name: f.name, size: f.size}, nil }
func (f *file) Close() error               { return nil }

type fileInfo struct {
	name string
	size int64
}

func (fi fileInfo) Name() string       { return fi.name[strings.LastIndex(fi.name, "/")+1:] }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return 0o444 }
func (fi fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) IsDir() bool        { return false }
func (fi fileInfo) Sys() any           { return nil }
