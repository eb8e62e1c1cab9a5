// Package hclcfg loads host-side boot profiles written in HCL and turns
// them into configuration overlays. Profiles are the operator-facing
// counterpart of the remote JSON document: they tune fetch behavior and
// can pin or extend the resource manifest without touching the deployed
// application.
package hclcfg

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/bootrt/internal/bootcfg"
	"github.com/vk/bootrt/internal/ctxlog"
	"github.com/vk/bootrt/internal/manifest"
)

// profileFile is the top-level structure of one profile for decoding.
type profileFile struct {
	Boot      *bootBlock      `hcl:"boot,block"`
	Resources *resourcesBlock `hcl:"resources,block"`
}

type bootBlock struct {
	MainAssembly         *string        `hcl:"main_assembly,optional"`
	AssemblyRoot         *string        `hcl:"assembly_root,optional"`
	BaseURL              *string        `hcl:"base_url,optional"`
	Sources              []string       `hcl:"sources,optional"`
	Globalization        *string        `hcl:"globalization,optional"`
	MaxParallelDownloads *int           `hcl:"max_parallel_downloads,optional"`
	EnableDownloadRetry  *bool          `hcl:"enable_download_retry,optional"`
	MaxDownloadRetries   *int           `hcl:"max_download_retries,optional"`
	IgnorePdbLoadErrors  *bool          `hcl:"ignore_pdb_load_errors,optional"`
	CacheResources       *bool          `hcl:"cache_resources,optional"`
	DebugLevel           *int           `hcl:"debug_level,optional"`
	Environment          hcl.Expression `hcl:"environment,optional"`
}

// resourcesBlock carries the manifest groups. Asset names contain dots and
// are not valid HCL argument names, so each group is a map-valued
// expression evaluated through cty rather than a nested block.
type resourcesBlock struct {
	Assembly     hcl.Expression `hcl:"assembly,optional"`
	LazyAssembly hcl.Expression `hcl:"lazy_assembly,optional"`
	Pdb          hcl.Expression `hcl:"pdb,optional"`
	Runtime      hcl.Expression `hcl:"runtime,optional"`
}

// LoadFile parses one profile into an overlay.
func LoadFile(ctx context.Context, path string) (*bootcfg.Overlay, error) {
	parser := hclparse.NewParser()
	return loadFile(ctx, path, parser)
}

// LoadDir finds every .hcl profile under root, lexically ordered, and
// merges them into one overlay. Later files win field-wise, matching the
// inline-over-document rule one level up.
func LoadDir(ctx context.Context, root string) (*bootcfg.Overlay, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findProfiles(root)
	if err != nil {
		return nil, fmt.Errorf("discovering profiles in %s: %w", root, err)
	}
	if len(files) == 0 {
		logger.Warn("No .hcl profiles found in path, returning empty overlay.", "path", root)
		return &bootcfg.Overlay{}, nil
	}

	parser := hclparse.NewParser()
	merged := &bootcfg.Overlay{}
	for _, file := range files {
		overlay, err := loadFile(ctx, file, parser)
		if err != nil {
			return nil, err
		}
		mergeOverlay(merged, overlay)
	}
	logger.Debug("Boot profiles loaded.", "path", root, "files", len(files))
	return merged, nil
}

func loadFile(ctx context.Context, path string, parser *hclparse.Parser) (*bootcfg.Overlay, error) {
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing profile %s: %w", path, diags)
	}

	var parsed profileFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("decoding profile %s: %w", path, diags)
	}

	overlay, err := translate(&parsed)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	ctxlog.FromContext(ctx).Debug("Boot profile decoded.", "path", path)
	return overlay, nil
}

// translate converts the HCL-specific schema into the format-agnostic
// overlay.
func translate(parsed *profileFile) (*bootcfg.Overlay, error) {
	overlay := &bootcfg.Overlay{}

	if b := parsed.Boot; b != nil {
		overlay.MainAssembly = b.MainAssembly
		overlay.AssemblyRoot = b.AssemblyRoot
		overlay.BaseURL = b.BaseURL
		overlay.Sources = b.Sources
		overlay.MaxParallelDownloads = b.MaxParallelDownloads
		overlay.EnableFetchRetries = b.EnableDownloadRetry
		overlay.MaxFetchRetries = b.MaxDownloadRetries
		overlay.IgnorePdbLoadErrors = b.IgnorePdbLoadErrors
		overlay.CacheBootResources = b.CacheResources
		overlay.DebugLevel = b.DebugLevel

		if b.Globalization != nil {
			mode := bootcfg.GlobalizationMode(*b.Globalization)
			if !mode.Valid() {
				return nil, fmt.Errorf("unknown globalization mode %q", *b.Globalization)
			}
			overlay.GlobalizationMode = &mode
		}

		env, err := decodeStringMap(b.Environment)
		if err != nil {
			return nil, fmt.Errorf("environment: %w", err)
		}
		overlay.EnvironmentVariables = env
	}

	if r := parsed.Resources; r != nil {
		res := &manifest.ResourceManifest{}
		var err error
		if res.Assembly, err = decodeGroup(r.Assembly); err != nil {
			return nil, fmt.Errorf("assembly group: %w", err)
		}
		if res.LazyAssembly, err = decodeGroup(r.LazyAssembly); err != nil {
			return nil, fmt.Errorf("lazy_assembly group: %w", err)
		}
		if res.Pdb, err = decodeGroup(r.Pdb); err != nil {
			return nil, fmt.Errorf("pdb group: %w", err)
		}
		if res.Runtime, err = decodeGroup(r.Runtime); err != nil {
			return nil, fmt.Errorf("runtime group: %w", err)
		}
		overlay.Resources = res
	}

	return overlay, nil
}

// decodeGroup evaluates one group's name-to-hash map. Hash values must
// evaluate to strings; an empty string leaves the asset unpinned.
func decodeGroup(expr hcl.Expression) (manifest.ResourceList, error) {
	m, err := decodeStringMap(expr)
	if err != nil || m == nil {
		return nil, err
	}
	return manifest.ResourceList(m), nil
}

// decodeStringMap evaluates a map-valued attribute expression. A missing
// attribute decodes as a nil expression whose value is null.
func decodeStringMap(expr hcl.Expression) (map[string]string, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	converted, err := convert.Convert(val, cty.Map(cty.String))
	if err != nil {
		return nil, fmt.Errorf("cannot convert %s to map of string: %w", val.Type().FriendlyName(), err)
	}
	out := make(map[string]string)
	if err := gocty.FromCtyValue(converted, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// findProfiles recursively collects .hcl files under root in lexical
// order.
func findProfiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".hcl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// mergeOverlay folds src into dst, field-wise, src winning.
func mergeOverlay(dst, src *bootcfg.Overlay) {
	if src.MainAssembly != nil {
		dst.MainAssembly = src.MainAssembly
	}
	if src.AssemblyRoot != nil {
		dst.AssemblyRoot = src.AssemblyRoot
	}
	if src.BaseURL != nil {
		dst.BaseURL = src.BaseURL
	}
	if src.Sources != nil {
		dst.Sources = src.Sources
	}
	if src.MaxParallelDownloads != nil {
		dst.MaxParallelDownloads = src.MaxParallelDownloads
	}
	if src.EnableFetchRetries != nil {
		dst.EnableFetchRetries = src.EnableFetchRetries
	}
	if src.MaxFetchRetries != nil {
		dst.MaxFetchRetries = src.MaxFetchRetries
	}
	if src.DebugLevel != nil {
		dst.DebugLevel = src.DebugLevel
	}
	if src.GlobalizationMode != nil {
		dst.GlobalizationMode = src.GlobalizationMode
	}
	if src.IgnorePdbLoadErrors != nil {
		dst.IgnorePdbLoadErrors = src.IgnorePdbLoadErrors
	}
	if src.CacheBootResources != nil {
		dst.CacheBootResources = src.CacheBootResources
	}
	if src.EnvironmentVariables != nil {
		if dst.EnvironmentVariables == nil {
			dst.EnvironmentVariables = make(map[string]string, len(src.EnvironmentVariables))
		}
		for k, v := range src.EnvironmentVariables {
			dst.EnvironmentVariables[k] = v
		}
	}
	if src.Resources != nil {
		dst.Resources = src.Resources
	}
}
