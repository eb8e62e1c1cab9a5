package manifest

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

// BuildOptions carries the configuration slice the Builder needs. The
// builder is a pure function of the manifest plus these options.
type BuildOptions struct {
	// BaseURL is the application's own directory, used as the first URL
	// candidate and as the expansion of the "./" source prefix.
	BaseURL string
	// AssemblyRoot is the path segment under which framework assets live,
	// e.g. "_framework".
	AssemblyRoot string
	// Sources are the remote source prefixes in declared fallback order.
	Sources []string
	// IgnorePdbLoadErrors marks all debug symbols optional.
	IgnorePdbLoadErrors bool
	// InvariantGlobalization drops globalization data from the request
	// list entirely; invariant mode never installs it.
	InvariantGlobalization bool
	// Buffers pre-supplies payloads by asset name, short-circuiting URL
	// resolution for those assets.
	Buffers map[string][]byte
	// Responses pre-supplies in-flight responses by asset name.
	Responses map[string]*http.Response
}

// Build expands the manifest into the ordered flat request list for the
// main fetch phase. Library initializer modules are excluded; they are
// fetched ahead of everything else via BuildInitializers.
func Build(m *ResourceManifest, opts BuildOptions) ([]*AssetRequest, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: manifest is nil", ErrManifestInvalid)
	}
	b := &builder{opts: opts}

	// Host modules first so the materializer's instantiation barrier also
	// sees them first.
	for _, name := range sortedNames(m.Runtime) {
		behavior := classifyRuntimeAsset(name)
		if behavior == BehaviorIcu && opts.InvariantGlobalization {
			continue
		}
		optional := behavior == BehaviorSymbolMap
		b.add(name, behavior, m.Runtime[name], "", optional, "", true)
	}
	for _, name := range sortedNames(m.Assembly) {
		b.add(name, BehaviorAssembly, m.Assembly[name], "", false, "", true)
	}
	for _, name := range sortedNames(m.Pdb) {
		b.add(name, BehaviorPdb, m.Pdb[name], "", opts.IgnorePdbLoadErrors, "", true)
	}
	for _, culture := range sortedKeys(m.SatelliteResources) {
		tag := canonicalCulture(culture)
		for _, name := range sortedNames(m.SatelliteResources[culture]) {
			b.addSatellite(name, m.SatelliteResources[culture][name], tag)
		}
	}
	for _, entry := range m.VfsEntries {
		if entry.Name == "" {
			b.fail("virtual filesystem entry with empty name")
			continue
		}
		b.add(entry.Name, BehaviorVfs, entry.Hash, "", entry.Optional, entry.VirtualPath, false)
	}
	for _, group := range sortedKeys(m.Extensions) {
		for _, name := range sortedNames(m.Extensions[group]) {
			b.add(name, BehaviorVfs, m.Extensions[group][name], "", false, group+"/"+name, false)
		}
	}

	if b.err != nil {
		return nil, b.err
	}
	return b.requests, nil
}

// BuildInitializers expands the library initializer groups. Initializer
// assets are fetched before the main phase so that hooks registered for
// "on configuration loaded" can run before any other fetch begins.
func BuildInitializers(m *ResourceManifest, opts BuildOptions) ([]*AssetRequest, error) {
	if m == nil || m.LibraryInitializers == nil {
		return nil, nil
	}
	b := &builder{opts: opts}
	for _, name := range sortedNames(m.LibraryInitializers.OnRuntimeConfigLoaded) {
		b.add(name, BehaviorLibraryInitializer, m.LibraryInitializers.OnRuntimeConfigLoaded[name], "", false, "", true)
	}
	for _, name := range sortedNames(m.LibraryInitializers.OnRuntimeReady) {
		b.add(name, BehaviorLibraryInitializer, m.LibraryInitializers.OnRuntimeReady[name], "", false, "", true)
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.requests, nil
}

type builder struct {
	opts     BuildOptions
	requests []*AssetRequest
	seen     map[string]struct{}
	err      error
}

func (b *builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s", ErrManifestInvalid, fmt.Sprintf(format, args...))
	}
}

func (b *builder) add(name string, behavior AssetBehavior, hash, culture string, optional bool, virtualPath string, framework bool) {
	if name == "" {
		b.fail("%s asset with empty name", behavior)
		return
	}
	if behavior == "" {
		b.fail("asset %q with empty behavior", name)
		return
	}
	key := string(behavior) + "\x00" + culture + "\x00" + name
	if b.seen == nil {
		b.seen = make(map[string]struct{})
	}
	if _, dup := b.seen[key]; dup {
		b.fail("duplicate %s asset %q", behavior, name)
		return
	}
	b.seen[key] = struct{}{}

	req := &AssetRequest{
		Name:        name,
		Behavior:    behavior,
		Hash:        hash,
		Culture:     culture,
		Optional:    optional,
		VirtualPath: virtualPath,
	}
	if buf, ok := b.opts.Buffers[name]; ok {
		req.Buffer = buf
	} else if resp, ok := b.opts.Responses[name]; ok {
		req.PendingResponse = resp
	} else {
		req.ResolvedURLs = b.candidates(name, culture, framework)
	}
	b.requests = append(b.requests, req)
}

func (b *builder) addSatellite(name, hash, culture string) {
	b.add(name, BehaviorResource, hash, culture, false, "", true)
}

// candidates resolves the ordered URL list for one asset: the application's
// own directory first, then each configured source in declared order.
func (b *builder) candidates(name, culture string, framework bool) []string {
	rel := name
	if culture != "" {
		rel = culture + "/" + name
	}
	if framework && b.opts.AssemblyRoot != "" {
		rel = strings.TrimSuffix(b.opts.AssemblyRoot, "/") + "/" + rel
	}

	urls := make([]string, 0, len(b.opts.Sources)+1)
	appendUnique := func(u string) {
		if u != "" && !slices.Contains(urls, u) {
			urls = append(urls, u)
		}
	}
	appendUnique(joinURL(b.opts.BaseURL, rel))
	for _, src := range b.opts.Sources {
		if src == "./" {
			appendUnique(joinURL(b.opts.BaseURL, rel))
			continue
		}
		appendUnique(joinURL(src, rel))
	}
	return urls
}

// joinURL joins a prefix and a relative path without collapsing the
// prefix's scheme separator.
func joinURL(prefix, rel string) string {
	if prefix == "" || prefix == "./" {
		return rel
	}
	return strings.TrimSuffix(prefix, "/") + "/" + rel
}

// canonicalCulture normalizes a culture tag to its canonical BCP-47 form.
// Tags the parser rejects are passed through verbatim; the manifest author
// may be targeting a host-specific culture name.
func canonicalCulture(culture string) string {
	tag, err := language.Parse(culture)
	if err != nil {
		return culture
	}
	return tag.String()
}

func sortedNames(list ResourceList) []string {
	names := make([]string, 0, len(list))
	for name := range list {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
