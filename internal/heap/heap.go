// Package heap implements the runtime's native memory region: a growable
// byte region seeded by the materializer and exposed to the host through
// typed offset accessors in every width, signedness and float variant.
package heap

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// blobAlign keeps blob placements aligned for the native runtime's word
// accesses.
const blobAlign = 16

// Region is one runtime instance's native heap. All access is
// offset-addressed and little-endian, matching the native runtime's memory
// layout.
type Region struct {
	mu   sync.RWMutex
	data []byte
	// next is the append cursor used by AppendBlob.
	next int
	// blobs records where each named blob was placed, so snapshots can be
	// validated and hosts can locate seeded data.
	blobs map[string]Placement
}

// Placement describes where a named blob lives in the region.
type Placement struct {
	Offset int
	Size   int
}

// NewRegion creates a heap region with the given initial size in bytes.
func NewRegion(size int) *Region {
	if size < 0 {
		size = 0
	}
	return &Region{
		data:  make([]byte, size),
		blobs: make(map[string]Placement),
	}
}

// Size returns the current region size in bytes.
func (r *Region) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// AppendBlob copies data into the region at the next aligned offset,
// growing the region as needed, and records the placement under name.
// Placing the same name twice is an error; no asset is materialized twice.
func (r *Region) AppendBlob(name string, data []byte) (Placement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.blobs[name]; exists {
		return Placement{}, fmt.Errorf("heap blob %q already placed", name)
	}
	offset := align(r.next, blobAlign)
	end := offset + len(data)
	if end > len(r.data) {
		grown := make([]byte, end)
		copy(grown, r.data)
		r.data = grown
	}
	copy(r.data[offset:end], data)
	r.next = end

	p := Placement{Offset: offset, Size: len(data)}
	r.blobs[name] = p
	return p, nil
}

// Blob returns the placement of a named blob.
func (r *Region) Blob(name string) (Placement, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.blobs[name]
	return p, ok
}

// Image returns a copy of the full region contents together with the blob
// placements, for snapshot serialization.
func (r *Region) Image() ([]byte, map[string]Placement) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data := make([]byte, len(r.data))
	copy(data, r.data)
	blobs := make(map[string]Placement, len(r.blobs))
	for k, v := range r.blobs {
		blobs[k] = v
	}
	return data, blobs
}

// Restore replaces the region contents from a snapshot image.
func (r *Region) Restore(data []byte, blobs map[string]Placement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = make([]byte, len(data))
	copy(r.data, data)
	r.blobs = make(map[string]Placement, len(blobs))
	next := 0
	for k, v := range blobs {
		r.blobs[k] = v
		if end := v.Offset + v.Size; end > next {
			next = end
		}
	}
	r.next = next
}

func (r *Region) check(offset, width int) error {
	if offset < 0 || offset+width > len(r.data) {
		return fmt.Errorf("heap access out of range: offset %d width %d size %d", offset, width, len(r.data))
	}
	return nil
}

func align(n, to int) int {
	if rem := n % to; rem != 0 {
		return n + to - rem
	}
	return n
}

// ReadI8 reads a signed 8-bit value.
func (r *Region) ReadI8(offset int) (int8, error) {
	v, err := r.ReadU8(offset)
	return int8(v), err
}

// ReadU8 reads an unsigned 8-bit value.
func (r *Region) ReadU8(offset int) (uint8, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.check(offset, 1); err != nil {
		return 0, err
	}
	return r.data[offset], nil
}

// ReadI16 reads a signed 16-bit value.
func (r *Region) ReadI16(offset int) (int16, error) {
	v, err := r.ReadU16(offset)
	return int16(v), err
}

// ReadU16 reads an unsigned 16-bit value.
func (r *Region) ReadU16(offset int) (uint16, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.data[offset:]), nil
}

// ReadI32 reads a signed 32-bit value.
func (r *Region) ReadI32(offset int) (int32, error) {
	v, err := r.ReadU32(offset)
	return int32(v), err
}

// ReadU32 reads an unsigned 32-bit value.
func (r *Region) ReadU32(offset int) (uint32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.data[offset:]), nil
}

// ReadI64 reads a signed 64-bit value.
func (r *Region) ReadI64(offset int) (int64, error) {
	v, err := r.ReadU64(offset)
	return int64(v), err
}

// ReadU64 reads an unsigned 64-bit value.
func (r *Region) ReadU64(offset int) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.data[offset:]), nil
}

// ReadF32 reads a 32-bit float.
func (r *Region) ReadF32(offset int) (float32, error) {
	v, err := r.ReadU32(offset)
	return math.Float32frombits(v), err
}

// ReadF64 reads a 64-bit float.
func (r *Region) ReadF64(offset int) (float64, error) {
	v, err := r.ReadU64(offset)
	return math.Float64frombits(v), err
}

// ReadBytes copies n bytes starting at offset.
func (r *Region) ReadBytes(offset, n int) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.check(offset, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[offset:offset+n])
	return out, nil
}

// WriteI8 writes a signed 8-bit value.
func (r *Region) WriteI8(offset int, v int8) error { return r.WriteU8(offset, uint8(v)) }

// WriteU8 writes an unsigned 8-bit value.
func (r *Region) WriteU8(offset int, v uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(offset, 1); err != nil {
		return err
	}
	r.data[offset] = v
	return nil
}

// WriteI16 writes a signed 16-bit value.
func (r *Region) WriteI16(offset int, v int16) error { return r.WriteU16(offset, uint16(v)) }

// WriteU16 writes an unsigned 16-bit value.
func (r *Region) WriteU16(offset int, v uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(r.data[offset:], v)
	return nil
}

// WriteI32 writes a signed 32-bit value.
func (r *Region) WriteI32(offset int, v int32) error { return r.WriteU32(offset, uint32(v)) }

// WriteU32 writes an unsigned 32-bit value.
func (r *Region) WriteU32(offset int, v uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(r.data[offset:], v)
	return nil
}

// WriteI64 writes a signed 64-bit value.
func (r *Region) WriteI64(offset int, v int64) error { return r.WriteU64(offset, uint64(v)) }

// WriteU64 writes an unsigned 64-bit value.
func (r *Region) WriteU64(offset int, v uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(r.data[offset:], v)
	return nil
}

// WriteF32 writes a 32-bit float.
func (r *Region) WriteF32(offset int, v float32) error {
	return r.WriteU32(offset, math.Float32bits(v))
}

// WriteF64 writes a 64-bit float.
func (r *Region) WriteF64(offset int, v float64) error {
	return r.WriteU64(offset, math.Float64bits(v))
}
