package runtime

import (
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/vk/bootrt/internal/assemblies"
	"github.com/vk/bootrt/internal/bootcfg"
	"github.com/vk/bootrt/internal/ctxlog"
	"github.com/vk/bootrt/internal/heap"
	"github.com/vk/bootrt/internal/hooks"
	"github.com/vk/bootrt/internal/loader"
	"github.com/vk/bootrt/internal/manifest"
	"github.com/vk/bootrt/internal/materialize"
	"github.com/vk/bootrt/internal/snapshot"
	"github.com/vk/bootrt/internal/vfs"
)

// Boot resolves configuration, checks the snapshot cache, and on a miss
// drives the full fetch-and-materialize pipeline. It returns only once
// every required asset is materialized and every runtime-ready hook has
// completed.
func Boot(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bootID := uuid.NewString()
	logger = logger.With("bootID", bootID)
	ctx = ctxlog.WithLogger(ctx, logger)

	resolver := &bootcfg.Resolver{Client: opts.HTTPClient, OnConfigLoaded: opts.OnConfigLoaded}
	cfg, err := resolver.Resolve(ctx, opts.ConfigURL, opts.Config)
	if err != nil {
		return nil, err
	}
	fingerprint, err := cfg.Fingerprint()
	if err != nil {
		return nil, err
	}
	logger.Debug("Boot starting.", "fingerprint", fingerprint)

	rt := &Runtime{
		id:          bootID,
		cfg:         cfg,
		fingerprint: fingerprint,
		logger:      logger,
		heap:        heap.NewRegion(opts.InitialHeapSize),
		vfs:         vfs.New(),
		assemblies:  assemblies.New(),
		modules:     materialize.NewModules(),
		entry:       opts.InvokeEntryPoint,
		env:         make(map[string]string, len(cfg.EnvironmentVariables)),
	}
	for k, v := range cfg.EnvironmentVariables {
		rt.env[k] = v
	}

	reg := opts.Hooks
	if reg == nil {
		reg = hooks.NewRegistry()
	}
	rt.hooks = reg

	var cache *snapshot.Cache
	if cfg.CacheBootResources && opts.Storage != nil {
		cache = &snapshot.Cache{Storage: opts.Storage}
	}

	if rec, ok := cache.TryLoad(ctx, fingerprint); ok {
		if restoreErr := rt.restoreImage(rec.Image); restoreErr == nil {
			logger.Info("Snapshot hit, boot pipeline skipped.", "fingerprint", fingerprint)
			if err := rt.finishWarm(ctx); err != nil {
				return nil, err
			}
			return rt, nil
		} else {
			// An unrestorable image degrades to the cold path, exactly
			// like any other invalid snapshot.
			logger.Debug("Snapshot restore failed, falling back to cold boot.", "error", restoreErr)
		}
	}

	if err := rt.bootCold(ctx, cfg, opts); err != nil {
		return nil, err
	}

	if cache != nil {
		if img, err := rt.buildImage(); err != nil {
			logger.Warn("Snapshot serialization failed, continuing without cache.", "error", err)
		} else if err := cache.Store(ctx, &snapshot.Record{Fingerprint: fingerprint, Image: img}); err != nil {
			logger.Warn("Snapshot store failed, continuing without cache.", "error", err)
		} else {
			logger.Debug("Snapshot stored.", "fingerprint", fingerprint, "bytes", len(img))
		}
	}

	logger.Info("Boot complete.", "assemblies", len(rt.assemblies.Names()), "modules", len(rt.modules.Names()))
	return rt, nil
}

// bootCold drives the full pipeline: initializer prefetch, config-loaded
// barrier, main fetch phase, materialization, ready barrier.
func (rt *Runtime) bootCold(ctx context.Context, cfg *bootcfg.BootConfig, opts Options) error {
	buildOpts := cfg.BuildOptions()
	buildOpts.Buffers = opts.Buffers
	buildOpts.Responses = opts.Responses

	initReqs, err := manifest.BuildInitializers(cfg.Resources, buildOpts)
	if err != nil {
		return err
	}
	mainReqs, err := manifest.Build(cfg.Resources, buildOpts)
	if err != nil {
		return err
	}
	total := len(initReqs) + len(mainReqs)

	ld := &loader.Loader{
		Client:       opts.HTTPClient,
		Parallelism:  cfg.MaxParallelDownloads,
		RetryEnabled: cfg.EnableFetchRetries,
		MaxRetries:   cfg.MaxFetchRetries,
		Override:     opts.LoadResource,
	}
	installer := materialize.NewInstaller(rt.heap, rt.vfs, rt.assemblies, rt.modules, cfg.GlobalizationMode)

	// Library initializers are fetched ahead of everything else so that
	// config-loaded hooks exist before the main fetch phase begins.
	if len(initReqs) > 0 {
		ld.OnProgress = offsetProgress(opts.OnProgress, 0, total)
		initRes, err := ld.LoadAll(ctx, initReqs)
		if err != nil {
			return err
		}
		if err := installer.InstallAll(ctx, initRes.Resources); err != nil {
			return err
		}
	}
	rt.registerInitializerHooks(cfg.Resources.LibraryInitializers)

	if err := rt.hooks.Fire(ctx, hooks.ConfigLoaded); err != nil {
		return err
	}

	ld.OnProgress = offsetProgress(opts.OnProgress, len(initReqs), total)
	result, err := ld.LoadAll(ctx, mainReqs)
	if err != nil {
		return err
	}
	if len(result.Skipped) > 0 {
		ctxlog.FromContext(ctx).Debug("Optional assets skipped.", "assets", result.Skipped)
	}
	if err := installer.InstallAll(ctx, result.Resources); err != nil {
		return err
	}

	for _, name := range sortedKeys(cfg.Resources.LazyAssembly) {
		rt.assemblies.DeclareLazy(name, cfg.Resources.LazyAssembly[name])
	}

	return rt.hooks.Fire(ctx, hooks.RuntimeReady)
}

// finishWarm replays the two hook barriers on the snapshot fast path. The
// materialized state came from the image; only the observers run.
func (rt *Runtime) finishWarm(ctx context.Context) error {
	rt.registerInitializerHooks(rt.cfg.Resources.LibraryInitializers)
	if err := rt.hooks.Fire(ctx, hooks.ConfigLoaded); err != nil {
		return err
	}
	return rt.hooks.Fire(ctx, hooks.RuntimeReady)
}

// registerInitializerHooks appends manifest-declared initializer modules
// to the hook registry, after any host-registered hooks.
func (rt *Runtime) registerInitializerHooks(inits *manifest.InitializerList) {
	if inits == nil {
		return
	}
	register := func(phase hooks.Phase, names []string) {
		for _, name := range names {
			// Registration can only fail after a phase fired; initializer
			// hooks are registered before both barriers.
			_ = rt.hooks.Register(phase, name, func(ctx context.Context) error {
				return rt.modules.Invoke(ctx, name, nil)
			})
		}
	}
	register(hooks.ConfigLoaded, sortedKeys(inits.OnRuntimeConfigLoaded))
	register(hooks.RuntimeReady, sortedKeys(inits.OnRuntimeReady))
}

// offsetProgress shifts per-phase completion counts into one monotonic
// sequence across the whole boot.
func offsetProgress(fn func(completed, total int), offset, total int) func(int, int) {
	if fn == nil {
		return nil
	}
	return func(completed, _ int) {
		fn(offset+completed, total)
	}
}

func sortedKeys(list manifest.ResourceList) []string {
	keys := make([]string, 0, len(list))
	for k := range list {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
