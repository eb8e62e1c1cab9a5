package bootcfg

import "github.com/vk/bootrt/internal/manifest"

// Overlay is a partial boot configuration. Nil fields are unset and leave
// the underlying value untouched when applied. Both fetched documents and
// host-supplied inline configuration decode into this shape; the resolver
// applies the document first and the inline overlay last, so inline values
// always win field-wise regardless of call order.
type Overlay struct {
	MainAssembly         *string                    `json:"mainAssemblyName,omitempty"`
	AssemblyRoot         *string                    `json:"assemblyRootFolder,omitempty"`
	BaseURL              *string                    `json:"-"`
	Sources              []string                   `json:"remoteSources,omitempty"`
	MaxParallelDownloads *int                       `json:"maxParallelDownloads,omitempty"`
	EnableFetchRetries   *bool                      `json:"enableDownloadRetry,omitempty"`
	MaxFetchRetries      *int                       `json:"maxDownloadRetries,omitempty"`
	DebugLevel           *int                       `json:"debugLevel,omitempty"`
	DiagnosticTracing    *bool                      `json:"diagnosticTracing,omitempty"`
	GlobalizationMode    *GlobalizationMode         `json:"globalizationMode,omitempty"`
	IgnorePdbLoadErrors  *bool                      `json:"ignorePdbLoadErrors,omitempty"`
	CacheBootResources   *bool                      `json:"cacheBootResources,omitempty"`
	EnvironmentVariables map[string]string          `json:"environmentVariables,omitempty"`
	ContentFingerprint   *string                    `json:"contentFingerprint,omitempty"`
	Resources            *manifest.ResourceManifest `json:"resources,omitempty"`
}

// Apply writes the overlay's set fields onto cfg. The environment map is
// merged key-wise with overlay keys winning; the resource manifest is
// replaced wholesale, since partial manifests have no meaningful merge.
func (o *Overlay) Apply(cfg *BootConfig) {
	if o == nil {
		return
	}
	if o.MainAssembly != nil {
		cfg.MainAssembly = *o.MainAssembly
	}
	if o.AssemblyRoot != nil {
		cfg.AssemblyRoot = *o.AssemblyRoot
	}
	if o.BaseURL != nil {
		cfg.BaseURL = *o.BaseURL
	}
	if o.Sources != nil {
		cfg.Sources = o.Sources
	}
	if o.MaxParallelDownloads != nil {
		cfg.MaxParallelDownloads = *o.MaxParallelDownloads
	}
	if o.EnableFetchRetries != nil {
		cfg.EnableFetchRetries = *o.EnableFetchRetries
	}
	if o.MaxFetchRetries != nil {
		cfg.MaxFetchRetries = *o.MaxFetchRetries
	}
	if o.DebugLevel != nil {
		cfg.DebugLevel = *o.DebugLevel
	}
	if o.DiagnosticTracing != nil {
		cfg.DiagnosticTracing = *o.DiagnosticTracing
	}
	if o.GlobalizationMode != nil {
		cfg.GlobalizationMode = *o.GlobalizationMode
	}
	if o.IgnorePdbLoadErrors != nil {
		cfg.IgnorePdbLoadErrors = *o.IgnorePdbLoadErrors
	}
	if o.CacheBootResources != nil {
		cfg.CacheBootResources = *o.CacheBootResources
	}
	if o.EnvironmentVariables != nil {
		if cfg.EnvironmentVariables == nil {
			cfg.EnvironmentVariables = make(map[string]string, len(o.EnvironmentVariables))
		}
		for k, v := range o.EnvironmentVariables {
			cfg.EnvironmentVariables[k] = v
		}
	}
	if o.ContentFingerprint != nil {
		cfg.ContentFingerprint = *o.ContentFingerprint
	}
	if o.Resources != nil {
		cfg.Resources = o.Resources
	}
}
