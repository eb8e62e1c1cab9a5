package materialize

import (
	"context"
	"fmt"

	"github.com/vk/bootrt/internal/assemblies"
	"github.com/vk/bootrt/internal/bootcfg"
	"github.com/vk/bootrt/internal/ctxlog"
	"github.com/vk/bootrt/internal/heap"
	"github.com/vk/bootrt/internal/loader"
	"github.com/vk/bootrt/internal/manifest"
	"github.com/vk/bootrt/internal/vfs"
)

// installFunc installs one consumed payload.
type installFunc func(ctx context.Context, res *loader.LoadingResource, data []byte) error

// Installer dispatches completed fetches to behavior-specific handlers.
// The handler set is closed; an unknown behavior is a programming error
// surfaced as a normal error because manifests are data.
type Installer struct {
	Heap          *heap.Region
	VFS           *vfs.FS
	Assemblies    *assemblies.Table
	Modules       *Modules
	Globalization bootcfg.GlobalizationMode

	handlers map[manifest.AssetBehavior]installFunc
}

// NewInstaller wires the behavior handler registry against the given
// targets.
func NewInstaller(h *heap.Region, v *vfs.FS, a *assemblies.Table, m *Modules, mode bootcfg.GlobalizationMode) *Installer {
	ins := &Installer{Heap: h, VFS: v, Assemblies: a, Modules: m, Globalization: mode}
	ins.handlers = map[manifest.AssetBehavior]installFunc{
		manifest.BehaviorHeapBlob:  ins.installHeapBlob,
		manifest.BehaviorVfs:       ins.installVfs,
		manifest.BehaviorIcu:       ins.installIcu,
		manifest.BehaviorAssembly:  ins.installAssembly,
		manifest.BehaviorResource:  ins.installSatellite,
		manifest.BehaviorPdb:       ins.installPdb,
		manifest.BehaviorSymbolMap: ins.installVfs,

		manifest.BehaviorDotnetWasm:         ins.installModule,
		manifest.BehaviorJsModuleThreads:    ins.installModule,
		manifest.BehaviorJsModuleRuntime:    ins.installModule,
		manifest.BehaviorJsModuleDotnet:     ins.installModule,
		manifest.BehaviorJsModuleNative:     ins.installModule,
		manifest.BehaviorLibraryInitializer: ins.installModule,
	}
	return ins
}

// InstallAll materializes every completed resource. Host module
// instantiation runs to completion before anything else; managed assembly
// registration may invoke native code and must find the modules present.
func (ins *Installer) InstallAll(ctx context.Context, resources []*loader.LoadingResource) error {
	logger := ctxlog.FromContext(ctx)
	for _, res := range resources {
		if res.Request.Behavior.IsHostModule() {
			if err := ins.Install(ctx, res); err != nil {
				return err
			}
		}
	}
	for _, res := range resources {
		if !res.Request.Behavior.IsHostModule() {
			if err := ins.Install(ctx, res); err != nil {
				return err
			}
		}
	}
	logger.Debug("Materialization complete.", "assets", len(resources))
	return nil
}

// Install materializes one resource, consuming its payload exactly once.
func (ins *Installer) Install(ctx context.Context, res *loader.LoadingResource) error {
	handler, ok := ins.handlers[res.Request.Behavior]
	if !ok {
		return fmt.Errorf("no installer for behavior %q (asset %q)", res.Request.Behavior, res.Request.Name)
	}
	data, err := res.Take()
	if err != nil {
		return err
	}
	if err := handler(ctx, res, data); err != nil {
		return fmt.Errorf("materializing %q: %w", res.Request.Name, err)
	}
	return nil
}

func (ins *Installer) installHeapBlob(ctx context.Context, res *loader.LoadingResource, data []byte) error {
	p, err := ins.Heap.AppendBlob(res.Request.Name, data)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Heap blob placed.", "asset", res.Request.Name, "offset", p.Offset, "bytes", p.Size)
	return nil
}

func (ins *Installer) installVfs(_ context.Context, res *loader.LoadingResource, data []byte) error {
	path := res.Request.VirtualPath
	if path == "" {
		path = res.Request.Name
	}
	return ins.VFS.Mount(path, data)
}

// installIcu installs globalization data per the configured mode.
// Invariant mode never requests ICU assets; the guard here covers
// pre-supplied payloads that bypass the manifest builder.
func (ins *Installer) installIcu(ctx context.Context, res *loader.LoadingResource, data []byte) error {
	if ins.Globalization == bootcfg.GlobalizationInvariant {
		ctxlog.FromContext(ctx).Debug("Invariant globalization, dropping ICU data.", "asset", res.Request.Name)
		return nil
	}
	// Hybrid manifests declare a reduced dataset; the installation step is
	// the same heap placement either way.
	_, err := ins.Heap.AppendBlob(res.Request.Name, data)
	return err
}

func (ins *Installer) installAssembly(_ context.Context, res *loader.LoadingResource, data []byte) error {
	return ins.Assemblies.Register(res.Request.Name, data)
}

func (ins *Installer) installSatellite(_ context.Context, res *loader.LoadingResource, data []byte) error {
	return ins.Assemblies.RegisterSatellite(res.Request.Culture, res.Request.Name, data)
}

func (ins *Installer) installPdb(_ context.Context, res *loader.LoadingResource, data []byte) error {
	return ins.Assemblies.RegisterPdb(res.Request.Name, data)
}

func (ins *Installer) installModule(ctx context.Context, res *loader.LoadingResource, data []byte) error {
	return ins.Modules.Instantiate(ctx, res.Request.Name, res.Request.Behavior, data)
}
