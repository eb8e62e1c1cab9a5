package manifest

import "net/http"

// AssetRequest is one flattened unit of fetch work produced by the Builder.
// Requests are self-contained: the loader needs nothing beyond this struct
// to bring the asset to a terminal state.
type AssetRequest struct {
	// Name is the manifest name of the asset, unique within its behavior.
	Name string
	// Behavior decides how the asset is installed once fetched.
	Behavior AssetBehavior
	// ResolvedURLs are the candidate sources in fallback order. Empty when
	// the payload was pre-supplied.
	ResolvedURLs []string
	// Hash is the expected content digest in SRI form ("sha256-<base64>").
	// Empty disables integrity checking.
	Hash string
	// Culture is the BCP-47 tag of a satellite resource, empty otherwise.
	Culture string
	// Optional marks assets whose total fetch failure is tolerated.
	Optional bool
	// VirtualPath overrides the mount path of a vfs entry.
	VirtualPath string
	// Buffer is a pre-supplied payload. It bypasses fetch, source fallback
	// and integrity checking entirely.
	Buffer []byte
	// PendingResponse is a pre-supplied in-flight response. Its body is
	// consumed instead of issuing a fetch; no source fallback applies.
	PendingResponse *http.Response
}

// PreSupplied reports whether the request carries its payload already and
// must not be fetched.
func (r *AssetRequest) PreSupplied() bool {
	return r.Buffer != nil || r.PendingResponse != nil
}
