// Package manifest defines the declarative resource manifest of a boot
// configuration and the builder that expands it into a flat, typed list of
// fetch requests.
//
// The manifest is built once per boot and is immutable afterwards. All
// interpretation of resource groups (URL candidates, culture expansion,
// optionality) happens in the Builder so the loader only ever sees
// self-contained AssetRequest values.
package manifest

// ResourceList maps a resource name to its expected content hash. An empty
// hash means the content is not pinned and integrity checking is skipped.
type ResourceList map[string]string

// InitializerList declares library startup hook assets split by the phase
// they run in.
type InitializerList struct {
	OnRuntimeConfigLoaded ResourceList `json:"onRuntimeConfigLoaded"`
	OnRuntimeReady        ResourceList `json:"onRuntimeReady"`
}

// VfsEntry declares one file to be mounted into the virtual filesystem.
type VfsEntry struct {
	Name        string `json:"name"`
	Hash        string `json:"hash,omitempty"`
	VirtualPath string `json:"virtualPath,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}

// ResourceManifest holds the named resource groups of a boot configuration.
// Group membership decides the behavior tag each asset is fetched and
// installed under.
type ResourceManifest struct {
	// Assembly lists the managed assemblies loaded eagerly at boot.
	Assembly ResourceList `json:"assembly"`
	// LazyAssembly lists assemblies registered for deferred, host-driven
	// load. They are never fetched during boot.
	LazyAssembly ResourceList `json:"lazyAssembly,omitempty"`
	// Pdb lists debug symbol files for the eager assemblies.
	Pdb ResourceList `json:"pdb,omitempty"`
	// Runtime lists the native runtime binaries and host modules. The
	// behavior of each entry is derived from its file name.
	Runtime ResourceList `json:"runtime"`
	// SatelliteResources maps a culture tag to the satellite resource
	// assemblies for that culture.
	SatelliteResources map[string]ResourceList `json:"satelliteResources,omitempty"`
	// LibraryInitializers declares startup hook modules.
	LibraryInitializers *InitializerList `json:"libraryInitializers,omitempty"`
	// VfsEntries declares files mounted into the virtual filesystem.
	VfsEntries []VfsEntry `json:"vfs,omitempty"`
	// Extensions holds open-ended named groups contributed by the host.
	// Extension assets are fetched and mounted under their group name.
	Extensions map[string]ResourceList `json:"extensions,omitempty"`
}

// IsEmpty reports whether the manifest declares no resources at all.
func (m *ResourceManifest) IsEmpty() bool {
	if m == nil {
		return true
	}
	if len(m.Assembly) > 0 || len(m.LazyAssembly) > 0 || len(m.Pdb) > 0 || len(m.Runtime) > 0 {
		return false
	}
	if len(m.SatelliteResources) > 0 || len(m.VfsEntries) > 0 || len(m.Extensions) > 0 {
		return false
	}
	if m.LibraryInitializers != nil {
		if len(m.LibraryInitializers.OnRuntimeConfigLoaded) > 0 || len(m.LibraryInitializers.OnRuntimeReady) > 0 {
			return false
		}
	}
	return true
}
