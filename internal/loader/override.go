package loader

import (
	"net/http"

	"github.com/vk/bootrt/internal/manifest"
)

// OverrideRequest describes one asset about to be fetched, offered to the
// host before any network activity.
type OverrideRequest struct {
	Behavior manifest.AssetBehavior
	Name     string
	// URL is the default (first candidate) source.
	URL string
	// Hash is the declared integrity digest, empty if unpinned.
	Hash string
}

// OverrideResult is the host's answer: a replacement URL, a ready-made
// response, or neither.
type OverrideResult struct {
	// URL replaces the default source. The remaining fallback sources
	// still apply after it.
	URL string
	// Response is a ready-made response consumed instead of fetching.
	// When set, no source fallback occurs for the asset.
	Response *http.Response
}

// OverrideFunc is the host-supplied loading override. Returning nil
// declines, falling through to the default fetch exactly as if no
// override were supplied.
type OverrideFunc func(OverrideRequest) *OverrideResult
