// Package bootcfg defines the boot configuration model and the resolver
// that merges inline and fetched configuration into one effective
// BootConfig with a deterministic cache fingerprint.
//
// The model is format-agnostic: the resolver decodes remote JSON documents,
// while host-side manifest files are decoded by a separate loader package
// and arrive here as an Overlay.
package bootcfg

import (
	"fmt"

	"github.com/vk/bootrt/internal/manifest"
)

// GlobalizationMode selects how globalization data is loaded.
type GlobalizationMode string

const (
	// GlobalizationSharded loads the culture shard matching the
	// application cultures.
	GlobalizationSharded GlobalizationMode = "sharded"
	// GlobalizationAll loads the full globalization dataset.
	GlobalizationAll GlobalizationMode = "all"
	// GlobalizationInvariant runs without globalization data.
	GlobalizationInvariant GlobalizationMode = "invariant"
	// GlobalizationCustom loads a host-provided dataset.
	GlobalizationCustom GlobalizationMode = "custom"
	// GlobalizationHybrid loads a reduced dataset and defers the rest to
	// host facilities.
	GlobalizationHybrid GlobalizationMode = "hybrid"
)

// Valid reports whether the mode is one of the closed set.
func (m GlobalizationMode) Valid() bool {
	switch m {
	case GlobalizationSharded, GlobalizationAll, GlobalizationInvariant,
		GlobalizationCustom, GlobalizationHybrid:
		return true
	}
	return false
}

// Default tuning applied by Normalize when the merged configuration leaves
// a field unset.
const (
	DefaultMaxParallelDownloads = 16
	DefaultMaxFetchRetries      = 2
	DefaultAssemblyRoot         = "_framework"
)

// BootConfig is the effective merged boot configuration. It is immutable
// once resolved; a boot sequence never mutates it.
type BootConfig struct {
	// MainAssembly names the assembly holding the managed entry point.
	MainAssembly string
	// AssemblyRoot is the path segment under which framework assets live.
	AssemblyRoot string
	// BaseURL is the application's own directory. "./" in Sources expands
	// to it.
	BaseURL string
	// Sources are remote source prefixes in fallback order.
	Sources []string
	// MaxParallelDownloads caps the number of concurrently in-flight
	// fetches.
	MaxParallelDownloads int
	// EnableFetchRetries turns on same-source retry of transient failures.
	EnableFetchRetries bool
	// MaxFetchRetries is the number of extra attempts against the same
	// source before falling through to the next one.
	MaxFetchRetries int
	// DebugLevel: 0 optimized, >0 debug with log verbosity, <0 debug
	// without logging.
	DebugLevel int
	// DiagnosticTracing enables verbose boot tracing. Never part of the
	// fingerprint.
	DiagnosticTracing bool
	// GlobalizationMode selects globalization data handling.
	GlobalizationMode GlobalizationMode
	// IgnorePdbLoadErrors tolerates missing debug symbols.
	IgnorePdbLoadErrors bool
	// CacheBootResources enables the snapshot cache.
	CacheBootResources bool
	// EnvironmentVariables seed the runtime instance's environment map.
	EnvironmentVariables map[string]string
	// ContentFingerprint is the publisher-declared content digest of the
	// deployment, folded into the cache fingerprint.
	ContentFingerprint string
	// Resources is the declarative resource manifest.
	Resources *manifest.ResourceManifest
}

// Normalize applies defaults to unset tuning fields and validates the
// closed enums. It is called once by the resolver after merging.
func (c *BootConfig) Normalize() error {
	if c.MaxParallelDownloads <= 0 {
		c.MaxParallelDownloads = DefaultMaxParallelDownloads
	}
	if c.MaxFetchRetries < 0 {
		c.MaxFetchRetries = 0
	}
	if c.EnableFetchRetries && c.MaxFetchRetries == 0 {
		c.MaxFetchRetries = DefaultMaxFetchRetries
	}
	if c.AssemblyRoot == "" {
		c.AssemblyRoot = DefaultAssemblyRoot
	}
	if c.GlobalizationMode == "" {
		c.GlobalizationMode = GlobalizationSharded
	}
	if !c.GlobalizationMode.Valid() {
		return fmt.Errorf("%w: unknown globalization mode %q", ErrConfigMalformed, c.GlobalizationMode)
	}
	if c.Resources == nil {
		c.Resources = &manifest.ResourceManifest{}
	}
	return nil
}

// BuildOptions projects the configuration slice the manifest builder needs.
func (c *BootConfig) BuildOptions() manifest.BuildOptions {
	return manifest.BuildOptions{
		BaseURL:                c.BaseURL,
		AssemblyRoot:           c.AssemblyRoot,
		Sources:                c.Sources,
		IgnorePdbLoadErrors:    c.IgnorePdbLoadErrors,
		InvariantGlobalization: c.GlobalizationMode == GlobalizationInvariant,
	}
}
