package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vk/bootrt/internal/assemblies"
	"github.com/vk/bootrt/internal/bootcfg"
	"github.com/vk/bootrt/internal/ctxlog"
	"github.com/vk/bootrt/internal/heap"
	"github.com/vk/bootrt/internal/hooks"
	"github.com/vk/bootrt/internal/materialize"
	"github.com/vk/bootrt/internal/vfs"
)

// Runtime is one booted managed-runtime instance. It is created only by a
// successful Boot and torn down by Close.
type Runtime struct {
	id          string
	cfg         *bootcfg.BootConfig
	fingerprint string
	logger      *slog.Logger

	heap       *heap.Region
	vfs        *vfs.FS
	assemblies *assemblies.Table
	modules    *materialize.Modules
	hooks      *hooks.Registry

	envMu sync.RWMutex
	env   map[string]string

	entry  EntryPointFunc
	closed atomic.Bool
}

// ID returns the boot session identifier.
func (r *Runtime) ID() string { return r.id }

// Config returns the effective merged boot configuration.
func (r *Runtime) Config() *bootcfg.BootConfig { return r.cfg }

// Fingerprint returns the configuration fingerprint this runtime was
// materialized under.
func (r *Runtime) Fingerprint() string { return r.fingerprint }

// Heap exposes the native heap region with its typed offset accessors.
func (r *Runtime) Heap() *heap.Region { return r.heap }

// VFS exposes the virtual filesystem populated during boot.
func (r *Runtime) VFS() *vfs.FS { return r.vfs }

// Assemblies exposes the managed assembly table.
func (r *Runtime) Assemblies() *assemblies.Table { return r.assemblies }

// Export resolves a managed export handle by assembly and symbol name.
func (r *Runtime) Export(assembly, name string) (assemblies.Export, error) {
	if r.closed.Load() {
		return assemblies.Export{}, errClosed
	}
	return r.assemblies.Export(assembly, name)
}

// Env returns the value of a runtime environment variable.
func (r *Runtime) Env(name string) (string, bool) {
	r.envMu.RLock()
	defer r.envMu.RUnlock()
	v, ok := r.env[name]
	return v, ok
}

// SetEnv sets a runtime environment variable. The map is instance state,
// never the process environment.
func (r *Runtime) SetEnv(name, value string) {
	r.envMu.Lock()
	defer r.envMu.Unlock()
	r.env[name] = value
}

// RunMain invokes the managed entry point of the configured main assembly
// with arguments and returns its exit code.
func (r *Runtime) RunMain(ctx context.Context, args []string) (int, error) {
	if r.closed.Load() {
		return -1, errClosed
	}
	main := r.cfg.MainAssembly
	if main == "" {
		return -1, fmt.Errorf("no main assembly configured")
	}
	if !r.assemblies.Has(main) {
		return -1, fmt.Errorf("main assembly %q not registered", main)
	}
	ctx = ctxlog.WithLogger(ctx, r.logger)
	if r.entry != nil {
		return r.entry(ctx, main, args)
	}
	r.logger.Info("Managed entry point invoked.", "assembly", main, "args", len(args))
	return 0, nil
}

// InvokeLibraryInit runs a named library initializer module's entry point
// with arguments.
func (r *Runtime) InvokeLibraryInit(ctx context.Context, name string, args []string) error {
	if r.closed.Load() {
		return errClosed
	}
	return r.modules.Invoke(ctxlog.WithLogger(ctx, r.logger), name, args)
}

// Close tears the instance down. Further API calls fail; Close is
// idempotent.
func (r *Runtime) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.logger.Debug("Runtime closed.")
	return nil
}

var errClosed = fmt.Errorf("runtime is closed")
