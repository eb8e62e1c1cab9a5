// Package runtime owns the boot orchestration and the runtime instance
// object handed to the host once boot succeeds. All process-wide state of
// a runtime (configuration, heap, virtual filesystem, assembly and module
// tables) is owned by one Runtime value with a defined creation point
// (successful Boot) and teardown point (Close); nothing is ambient, so
// hosts may run several runtimes side by side.
package runtime

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/vk/bootrt/internal/bootcfg"
	"github.com/vk/bootrt/internal/hooks"
	"github.com/vk/bootrt/internal/loader"
	"github.com/vk/bootrt/internal/snapshot"
)

// EntryPointFunc invokes the managed entry point of an assembly and
// returns its exit code. Hosts embedding an execution engine supply one;
// without it RunMain validates the boot state and reports success.
type EntryPointFunc func(ctx context.Context, assembly string, args []string) (int, error)

// Options configures one Boot call.
type Options struct {
	// Config is the host-supplied inline configuration. Its fields always
	// win over fields of the fetched document.
	Config *bootcfg.Overlay
	// ConfigURL locates the boot configuration document (HTTP(S) URL or
	// file path). Optional when Config carries everything.
	ConfigURL string

	// HTTPClient issues all fetches. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// LoadResource is the host override hook offered every asset before
	// it is fetched.
	LoadResource loader.OverrideFunc
	// OnProgress receives monotonic completion counts across the whole
	// boot, library initializers included.
	OnProgress func(completed, total int)
	// OnConfigLoaded is notified once the merged configuration is
	// available, before any asset fetch.
	OnConfigLoaded func(*bootcfg.BootConfig)

	// Buffers pre-supplies asset payloads by name, bypassing fetch.
	Buffers map[string][]byte
	// Responses pre-supplies in-flight responses by name.
	Responses map[string]*http.Response

	// Hooks carries host-registered startup hooks. Optional; library
	// initializer hooks from the manifest are appended to it.
	Hooks *hooks.Registry

	// Storage is the durable store backing the snapshot cache. Snapshots
	// are used only when both Storage is set and the configuration
	// enables caching.
	Storage snapshot.Storage

	// InvokeEntryPoint runs the managed entry point for RunMain.
	InvokeEntryPoint EntryPointFunc

	// Logger receives boot and runtime logging. Defaults to
	// slog.Default(). Every record carries the boot session id.
	Logger *slog.Logger

	// InitialHeapSize seeds the native heap region size in bytes.
	InitialHeapSize int
}
