package runtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bootrt/internal/bootcfg"
	"github.com/vk/bootrt/internal/hooks"
	"github.com/vk/bootrt/internal/loader"
	"github.com/vk/bootrt/internal/manifest"
	"github.com/vk/bootrt/internal/snapshot"
	"github.com/vk/bootrt/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

var (
	wasmBody = []byte("\x00asm fake host module")
	appBody  = []byte("MZ fake managed assembly")
)

// serveStandardAssets scripts the minimal asset set every boot needs and
// returns an inline overlay pointing at the server.
func serveStandardAssets(srv *testutil.AssetServer) *bootcfg.Overlay {
	srv.Serve("dotnet.wasm", &testutil.Script{Body: wasmBody})
	srv.Serve("App.dll", &testutil.Script{Body: appBody})
	return &bootcfg.Overlay{
		MainAssembly: ptr("App.dll"),
		BaseURL:      ptr(srv.URL()),
		Resources: &manifest.ResourceManifest{
			Runtime:  manifest.ResourceList{"dotnet.wasm": loader.SRIHash(wasmBody)},
			Assembly: manifest.ResourceList{"App.dll": loader.SRIHash(appBody)},
		},
	}
}

func TestBootColdEndToEnd(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	inline := serveStandardAssets(srv)
	inline.EnvironmentVariables = map[string]string{"LANG": "en_US"}

	rt, err := Boot(context.Background(), Options{Config: inline})
	require.NoError(t, err)
	defer rt.Close()

	assert.True(t, rt.Assemblies().Has("App.dll"))
	assert.NoError(t, rt.InvokeLibraryInit(context.Background(), "dotnet.wasm", nil))
	val, ok := rt.Env("LANG")
	assert.True(t, ok)
	assert.Equal(t, "en_US", val)
	assert.NotEmpty(t, rt.ID())
	assert.Regexp(t, `^v1-[0-9a-f]{32}$`, rt.Fingerprint())
}

func TestBootConfigDocumentFetch(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	srv.Serve("dotnet.wasm", &testutil.Script{Body: wasmBody})
	srv.Serve("App.dll", &testutil.Script{Body: appBody})

	doc, err := json.Marshal(map[string]any{
		"mainAssemblyName": "App.dll",
		"resources": map[string]any{
			"runtime":  map[string]string{"dotnet.wasm": loader.SRIHash(wasmBody)},
			"assembly": map[string]string{"App.dll": loader.SRIHash(appBody)},
		},
	})
	require.NoError(t, err)
	srv.Serve("bootrt.json", &testutil.Script{Body: doc})

	// No inline overlay: the base URL must come from the document location.
	rt, err := Boot(context.Background(), Options{ConfigURL: srv.URL() + "/bootrt.json"})
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, "App.dll", rt.Config().MainAssembly)
	assert.True(t, rt.Assemblies().Has("App.dll"))
	assert.Equal(t, 1, srv.Hits("App.dll"))
}

func TestBootRequiredAssetFailureFailsBoot(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	inline := serveStandardAssets(srv)
	inline.Resources.Assembly["Missing.dll"] = ""

	_, err := Boot(context.Background(), Options{Config: inline})
	require.Error(t, err)
	var required *loader.RequiredAssetError
	require.ErrorAs(t, err, &required)
	assert.Equal(t, "Missing.dll", required.Name)
}

func TestBootOptionalPdbSkipped(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	inline := serveStandardAssets(srv)
	inline.IgnorePdbLoadErrors = ptr(true)
	inline.Resources.Pdb = manifest.ResourceList{"App.pdb": ""}

	rt, err := Boot(context.Background(), Options{Config: inline})
	require.NoError(t, err)
	defer rt.Close()

	assert.True(t, rt.Assemblies().Has("App.dll"))
	assert.False(t, rt.Assemblies().HasPdb("App.pdb"))
}

func TestBootLazyAssemblyDeclaredNotFetched(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	inline := serveStandardAssets(srv)
	inline.Resources.LazyAssembly = manifest.ResourceList{"Plugin.dll": "sha256-lazy"}

	rt, err := Boot(context.Background(), Options{Config: inline})
	require.NoError(t, err)
	defer rt.Close()

	assert.Zero(t, srv.Hits("Plugin.dll"))
	hash, ok := rt.Assemblies().LazyHash("Plugin.dll")
	assert.True(t, ok)
	assert.Equal(t, "sha256-lazy", hash)
	assert.False(t, rt.Assemblies().Has("Plugin.dll"))
}

func TestBootHooksFireInPhaseOrder(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	inline := serveStandardAssets(srv)

	var order []string
	reg := hooks.NewRegistry()
	require.NoError(t, reg.Register(hooks.ConfigLoaded, "record-config", func(context.Context) error {
		order = append(order, "config")
		// No asset request may have completed before this phase.
		assert.Zero(t, srv.TotalRequests())
		return nil
	}))
	require.NoError(t, reg.Register(hooks.RuntimeReady, "record-ready", func(context.Context) error {
		order = append(order, "ready")
		return nil
	}))

	rt, err := Boot(context.Background(), Options{Config: inline, Hooks: reg})
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, []string{"config", "ready"}, order)
}

func TestBootInitializersFetchedBeforeConfigLoadedPhase(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	inline := serveStandardAssets(srv)
	initBody := []byte("export function beforeStart() {}")
	srv.Serve("init.js", &testutil.Script{Body: initBody})
	inline.Resources.LibraryInitializers = &manifest.InitializerList{
		OnRuntimeConfigLoaded: manifest.ResourceList{"init.js": loader.SRIHash(initBody)},
	}

	reg := hooks.NewRegistry()
	require.NoError(t, reg.Register(hooks.ConfigLoaded, "count-fetches", func(context.Context) error {
		// Only the initializer itself may have been fetched by now.
		assert.Equal(t, 1, srv.TotalRequests())
		return nil
	}))

	rt, err := Boot(context.Background(), Options{Config: inline, Hooks: reg})
	require.NoError(t, err)
	defer rt.Close()

	assert.NoError(t, rt.InvokeLibraryInit(context.Background(), "init.js", nil))
}

func TestBootProgressSpansBothPhases(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	inline := serveStandardAssets(srv)
	initBody := []byte("export function onRuntimeReady() {}")
	srv.Serve("ready.js", &testutil.Script{Body: initBody})
	inline.Resources.LibraryInitializers = &manifest.InitializerList{
		OnRuntimeReady: manifest.ResourceList{"ready.js": loader.SRIHash(initBody)},
	}

	var completed []int
	var totals []int
	rt, err := Boot(context.Background(), Options{
		Config: inline,
		OnProgress: func(done, total int) {
			completed = append(completed, done)
			totals = append(totals, total)
		},
	})
	require.NoError(t, err)
	defer rt.Close()

	require.Len(t, completed, 3)
	for i := 1; i < len(completed); i++ {
		assert.Greater(t, completed[i], completed[i-1])
	}
	assert.Equal(t, 3, completed[len(completed)-1])
	for _, total := range totals {
		assert.Equal(t, 3, total)
	}
}

func TestBootSnapshotRoundTrip(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	inline := serveStandardAssets(srv)
	inline.CacheBootResources = ptr(true)
	inline.EnvironmentVariables = map[string]string{"TZ": "UTC"}

	storage := snapshot.NewMemoryStorage()

	cold, err := Boot(context.Background(), Options{Config: inline, Storage: storage})
	require.NoError(t, err)
	defer cold.Close()
	require.Equal(t, 1, storage.Len())
	fetchedCold := srv.TotalRequests()
	require.Positive(t, fetchedCold)

	warm, err := Boot(context.Background(), Options{Config: inline, Storage: storage})
	require.NoError(t, err)
	defer warm.Close()

	assert.Equal(t, fetchedCold, srv.TotalRequests(), "warm boot must not fetch")
	assert.Equal(t, cold.Fingerprint(), warm.Fingerprint())
	assert.True(t, warm.Assemblies().Has("App.dll"))
	assert.NoError(t, warm.InvokeLibraryInit(context.Background(), "dotnet.wasm", nil))
	val, ok := warm.Env("TZ")
	assert.True(t, ok)
	assert.Equal(t, "UTC", val)
}

func TestBootSnapshotHooksStillFireOnWarmPath(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	inline := serveStandardAssets(srv)
	inline.CacheBootResources = ptr(true)

	storage := snapshot.NewMemoryStorage()
	first, err := Boot(context.Background(), Options{Config: inline, Storage: storage})
	require.NoError(t, err)
	first.Close()

	var order []string
	reg := hooks.NewRegistry()
	require.NoError(t, reg.Register(hooks.ConfigLoaded, "warm-config", func(context.Context) error {
		order = append(order, "config")
		return nil
	}))
	require.NoError(t, reg.Register(hooks.RuntimeReady, "warm-ready", func(context.Context) error {
		order = append(order, "ready")
		return nil
	}))

	warm, err := Boot(context.Background(), Options{Config: inline, Storage: storage, Hooks: reg})
	require.NoError(t, err)
	defer warm.Close()

	assert.Equal(t, []string{"config", "ready"}, order)
}

func TestBootSnapshotStoreFailureIsNonFatal(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	inline := serveStandardAssets(srv)
	inline.CacheBootResources = ptr(true)

	storage := snapshot.NewMemoryStorage()
	storage.FailPuts = true

	rt, err := Boot(context.Background(), Options{Config: inline, Storage: storage})
	require.NoError(t, err)
	defer rt.Close()

	assert.True(t, rt.Assemblies().Has("App.dll"))
	assert.Zero(t, storage.Len())
}

func TestBootFingerprintChangesWithManifest(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()

	a, err := Boot(context.Background(), Options{Config: serveStandardAssets(srv)})
	require.NoError(t, err)
	defer a.Close()

	other := serveStandardAssets(srv)
	extra := []byte("MZ second assembly")
	srv.Serve("Lib.dll", &testutil.Script{Body: extra})
	other.Resources.Assembly["Lib.dll"] = loader.SRIHash(extra)

	b, err := Boot(context.Background(), Options{Config: other})
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestRunMainUsesEntryPoint(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()

	rt, err := Boot(context.Background(), Options{
		Config: serveStandardAssets(srv),
		InvokeEntryPoint: func(_ context.Context, assembly string, args []string) (int, error) {
			assert.Equal(t, "App.dll", assembly)
			assert.Equal(t, []string{"--verbose"}, args)
			return 7, nil
		},
	})
	require.NoError(t, err)
	defer rt.Close()

	code, err := rt.RunMain(context.Background(), []string{"--verbose"})
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestRuntimeClosedRejectsCalls(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()

	rt, err := Boot(context.Background(), Options{Config: serveStandardAssets(srv)})
	require.NoError(t, err)
	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())

	_, err = rt.RunMain(context.Background(), nil)
	assert.Error(t, err)
	assert.Error(t, rt.InvokeLibraryInit(context.Background(), "dotnet.wasm", nil))
}
