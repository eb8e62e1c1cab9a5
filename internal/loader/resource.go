// Package loader is the concurrency core of the boot sequence: it brings
// every asset request to a terminal state under a bounded-parallelism
// admission throttle, applying source fallback, host overrides, retry
// policy and integrity verification per request.
package loader

import (
	"fmt"
	"sync/atomic"

	"github.com/vk/bootrt/internal/manifest"
)

// LoadingResource is the completed representation of one fetch: the
// request it answers, the source that produced the payload, and the
// payload itself. The payload is consumed exactly once via Take; the
// materializer releases it immediately after installation.
type LoadingResource struct {
	Request *manifest.AssetRequest
	// URL is the source the payload came from. Empty for pre-supplied
	// buffers.
	URL string

	data     []byte
	consumed atomic.Bool
}

// Name returns the asset name of the underlying request.
func (r *LoadingResource) Name() string { return r.Request.Name }

// Len returns the payload size without consuming it.
func (r *LoadingResource) Len() int { return len(r.data) }

// Take returns the payload and marks it consumed. A second Take is a
// programming error: no component may retain a second reference.
func (r *LoadingResource) Take() ([]byte, error) {
	if !r.consumed.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("payload of %q already consumed", r.Request.Name)
	}
	data := r.data
	r.data = nil
	return data, nil
}
