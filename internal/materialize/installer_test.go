package materialize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bootrt/internal/assemblies"
	"github.com/vk/bootrt/internal/bootcfg"
	"github.com/vk/bootrt/internal/heap"
	"github.com/vk/bootrt/internal/loader"
	"github.com/vk/bootrt/internal/manifest"
	"github.com/vk/bootrt/internal/vfs"
)

type fixture struct {
	heap      *heap.Region
	vfs       *vfs.FS
	table     *assemblies.Table
	modules   *Modules
	installer *Installer
}

func newFixture(mode bootcfg.GlobalizationMode) *fixture {
	f := &fixture{
		heap:    heap.NewRegion(0),
		vfs:     vfs.New(),
		table:   assemblies.New(),
		modules: NewModules(),
	}
	f.installer = NewInstaller(f.heap, f.vfs, f.table, f.modules, mode)
	return f
}

func completed(t *testing.T, req *manifest.AssetRequest, data []byte) *loader.LoadingResource {
	t.Helper()
	l := &loader.Loader{Parallelism: 1}
	req.Buffer = data
	res, err := l.LoadAll(context.Background(), []*manifest.AssetRequest{req})
	require.NoError(t, err)
	require.Len(t, res.Resources, 1)
	return res.Resources[0]
}

func TestInstallDispatchesByBehavior(t *testing.T) {
	f := newFixture(bootcfg.GlobalizationSharded)
	ctx := context.Background()

	require.NoError(t, f.installer.Install(ctx, completed(t,
		&manifest.AssetRequest{Name: "dotnet.wasm", Behavior: manifest.BehaviorDotnetWasm}, []byte("wasm"))))
	require.NoError(t, f.installer.Install(ctx, completed(t,
		&manifest.AssetRequest{Name: "App.dll", Behavior: manifest.BehaviorAssembly}, []byte("il"))))
	require.NoError(t, f.installer.Install(ctx, completed(t,
		&manifest.AssetRequest{Name: "App.pdb", Behavior: manifest.BehaviorPdb}, []byte("sym"))))
	require.NoError(t, f.installer.Install(ctx, completed(t,
		&manifest.AssetRequest{Name: "App.resources.dll", Behavior: manifest.BehaviorResource, Culture: "fr"}, []byte("fr"))))
	require.NoError(t, f.installer.Install(ctx, completed(t,
		&manifest.AssetRequest{Name: "seed.blat", Behavior: manifest.BehaviorHeapBlob}, []byte{1, 2, 3})))
	require.NoError(t, f.installer.Install(ctx, completed(t,
		&manifest.AssetRequest{Name: "appsettings.json", Behavior: manifest.BehaviorVfs, VirtualPath: "/etc/appsettings.json"}, []byte("{}"))))

	assert.True(t, f.modules.Has("dotnet.wasm"))
	assert.True(t, f.table.Has("App.dll"))
	assert.True(t, f.table.HasPdb("App.pdb"))
	_, ok := f.table.Satellite("fr", "App.resources.dll")
	assert.True(t, ok)
	_, ok = f.heap.Blob("seed.blat")
	assert.True(t, ok)
	data, err := f.vfs.ReadFile("etc/appsettings.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), data)
}

func TestInstallAllInstantiatesModulesFirst(t *testing.T) {
	f := newFixture(bootcfg.GlobalizationSharded)

	// assemblies listed before the module; the barrier must reorder
	resources := []*loader.LoadingResource{
		completed(t, &manifest.AssetRequest{Name: "App.dll", Behavior: manifest.BehaviorAssembly}, []byte("il")),
		completed(t, &manifest.AssetRequest{Name: "dotnet.wasm", Behavior: manifest.BehaviorDotnetWasm}, []byte("wasm")),
	}

	require.NoError(t, f.installer.InstallAll(context.Background(), resources))
	assert.Equal(t, []string{"dotnet.wasm"}, f.modules.Names())
	assert.True(t, f.table.Has("App.dll"))
}

func TestInstallIcuPerGlobalizationMode(t *testing.T) {
	t.Run("sharded installs into heap", func(t *testing.T) {
		f := newFixture(bootcfg.GlobalizationSharded)
		require.NoError(t, f.installer.Install(context.Background(), completed(t,
			&manifest.AssetRequest{Name: "icudt_EFIGS.dat", Behavior: manifest.BehaviorIcu}, []byte("icu"))))
		_, ok := f.heap.Blob("icudt_EFIGS.dat")
		assert.True(t, ok)
	})

	t.Run("invariant drops the payload", func(t *testing.T) {
		f := newFixture(bootcfg.GlobalizationInvariant)
		require.NoError(t, f.installer.Install(context.Background(), completed(t,
			&manifest.AssetRequest{Name: "icudt.dat", Behavior: manifest.BehaviorIcu}, []byte("icu"))))
		_, ok := f.heap.Blob("icudt.dat")
		assert.False(t, ok)
	})

	t.Run("hybrid installs the reduced dataset", func(t *testing.T) {
		f := newFixture(bootcfg.GlobalizationHybrid)
		require.NoError(t, f.installer.Install(context.Background(), completed(t,
			&manifest.AssetRequest{Name: "icudt_hybrid.dat", Behavior: manifest.BehaviorIcu}, []byte("icu"))))
		_, ok := f.heap.Blob("icudt_hybrid.dat")
		assert.True(t, ok)
	})
}

func TestInstallConsumesPayloadExactlyOnce(t *testing.T) {
	f := newFixture(bootcfg.GlobalizationSharded)
	res := completed(t, &manifest.AssetRequest{Name: "App.dll", Behavior: manifest.BehaviorAssembly}, []byte("il"))

	require.NoError(t, f.installer.Install(context.Background(), res))
	err := f.installer.Install(context.Background(), res)
	require.Error(t, err, "second install must fail on the consumed payload")
}

func TestInstallUnknownBehaviorFails(t *testing.T) {
	f := newFixture(bootcfg.GlobalizationSharded)
	res := completed(t, &manifest.AssetRequest{Name: "x", Behavior: manifest.AssetBehavior("mystery")}, []byte("x"))
	require.Error(t, f.installer.Install(context.Background(), res))
}

func TestModulesInvoke(t *testing.T) {
	m := NewModules()
	ctx := context.Background()
	require.Error(t, m.Invoke(ctx, "telemetry.js", nil), "uninstantiated module")

	require.NoError(t, m.Instantiate(ctx, "telemetry.js", manifest.BehaviorLibraryInitializer, []byte("js")))
	require.NoError(t, m.Invoke(ctx, "telemetry.js", []string{"--flag"}))

	require.Error(t, m.Instantiate(ctx, "telemetry.js", manifest.BehaviorLibraryInitializer, []byte("js")))
	require.Error(t, m.Instantiate(ctx, "empty.js", manifest.BehaviorLibraryInitializer, nil))
}
