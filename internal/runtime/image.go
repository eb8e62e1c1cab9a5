package runtime

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vk/bootrt/internal/assemblies"
	"github.com/vk/bootrt/internal/heap"
	"github.com/vk/bootrt/internal/materialize"
)

// image is the serialized post-materialization state of a runtime. The
// encoded form is the snapshot cache's payload; hosts treat it as opaque.
type image struct {
	Heap      []byte                    `msgpack:"heap"`
	HeapBlobs map[string]heap.Placement `msgpack:"heapBlobs"`
	Vfs       map[string][]byte         `msgpack:"vfs"`

	Assemblies []*assemblies.Entry `msgpack:"assemblies"`
	Pdbs       []*assemblies.Entry `msgpack:"pdbs"`
	Satellites []*assemblies.Entry `msgpack:"satellites"`
	Lazy       map[string]string   `msgpack:"lazy"`

	Modules []*materialize.Module `msgpack:"modules"`
	Env     map[string]string     `msgpack:"env"`
}

// buildImage serializes the runtime's materialized state.
func (r *Runtime) buildImage() ([]byte, error) {
	heapData, heapBlobs := r.heap.Image()
	asm, pdbs, sats, lazy := r.assemblies.Snapshot()

	r.envMu.RLock()
	env := make(map[string]string, len(r.env))
	for k, v := range r.env {
		env[k] = v
	}
	r.envMu.RUnlock()

	img := &image{
		Heap:       heapData,
		HeapBlobs:  heapBlobs,
		Vfs:        r.vfs.Snapshot(),
		Assemblies: asm,
		Pdbs:       pdbs,
		Satellites: sats,
		Lazy:       lazy,
		Modules:    r.modules.Snapshot(),
		Env:        env,
	}
	data, err := msgpack.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("serializing runtime image: %w", err)
	}
	return data, nil
}

// restoreImage replaces the runtime's state from a serialized image.
func (r *Runtime) restoreImage(data []byte) error {
	img := &image{}
	if err := msgpack.Unmarshal(data, img); err != nil {
		return fmt.Errorf("decoding runtime image: %w", err)
	}
	r.heap.Restore(img.Heap, img.HeapBlobs)
	r.vfs.Restore(img.Vfs)
	r.assemblies.Restore(img.Assemblies, img.Pdbs, img.Satellites, img.Lazy)
	r.modules.Restore(img.Modules)

	r.envMu.Lock()
	r.env = make(map[string]string, len(img.Env))
	for k, v := range img.Env {
		r.env[k] = v
	}
	r.envMu.Unlock()
	return nil
}
