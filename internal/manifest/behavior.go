package manifest

import "strings"

// AssetBehavior classifies how a fetched asset is installed into the
// runtime. The set is closed; the materializer dispatches on it.
type AssetBehavior string

const (
	// BehaviorResource is a satellite resource assembly for one culture.
	BehaviorResource AssetBehavior = "resource"
	// BehaviorAssembly is a managed assembly registered into the loader
	// table.
	BehaviorAssembly AssetBehavior = "assembly"
	// BehaviorPdb is a debug symbol file for a managed assembly.
	BehaviorPdb AssetBehavior = "pdb"
	// BehaviorHeapBlob is raw data copied into the native heap region.
	BehaviorHeapBlob AssetBehavior = "heap"
	// BehaviorIcu is globalization data, installed per the configured
	// globalization mode.
	BehaviorIcu AssetBehavior = "icu"
	// BehaviorVfs is a file mounted into the virtual filesystem.
	BehaviorVfs AssetBehavior = "vfs"
	// BehaviorDotnetWasm is the native runtime binary.
	BehaviorDotnetWasm AssetBehavior = "dotnetwasm"
	// BehaviorJsModuleThreads is the worker-thread host module.
	BehaviorJsModuleThreads AssetBehavior = "js-module-threads"
	// BehaviorJsModuleRuntime is the runtime host module.
	BehaviorJsModuleRuntime AssetBehavior = "js-module-runtime"
	// BehaviorJsModuleDotnet is the loader host module.
	BehaviorJsModuleDotnet AssetBehavior = "js-module-dotnet"
	// BehaviorJsModuleNative is the native glue host module.
	BehaviorJsModuleNative AssetBehavior = "js-module-native"
	// BehaviorLibraryInitializer is a library startup hook module.
	BehaviorLibraryInitializer AssetBehavior = "js-module-library-initializer"
	// BehaviorSymbolMap is the native symbol map used to symbolicate
	// runtime stack traces.
	BehaviorSymbolMap AssetBehavior = "symbols"
)

// IsHostModule reports whether the behavior is instantiated as a native or
// host module. Module instantiation is ordered before any managed assembly
// registration.
func (b AssetBehavior) IsHostModule() bool {
	switch b {
	case BehaviorDotnetWasm, BehaviorJsModuleThreads, BehaviorJsModuleRuntime,
		BehaviorJsModuleDotnet, BehaviorJsModuleNative, BehaviorLibraryInitializer:
		return true
	}
	return false
}

// classifyRuntimeAsset derives the behavior of an entry in the runtime
// resource group from its file name.
func classifyRuntimeAsset(name string) AssetBehavior {
	switch {
	case name == "dotnet.wasm" || strings.HasSuffix(name, ".native.wasm"):
		return BehaviorDotnetWasm
	case strings.HasSuffix(name, ".native.worker.js"), strings.HasSuffix(name, ".native.worker.mjs"):
		return BehaviorJsModuleThreads
	case strings.HasSuffix(name, ".runtime.js"), strings.HasSuffix(name, ".runtime.mjs"):
		return BehaviorJsModuleRuntime
	case strings.HasSuffix(name, ".native.js"), strings.HasSuffix(name, ".native.mjs"):
		return BehaviorJsModuleNative
	case name == "dotnet.js" || name == "dotnet.mjs":
		return BehaviorJsModuleDotnet
	case strings.HasSuffix(name, ".symbols"), strings.HasSuffix(name, ".js.symbols"):
		return BehaviorSymbolMap
	case strings.HasPrefix(name, "icudt") && strings.HasSuffix(name, ".dat"):
		return BehaviorIcu
	case strings.HasSuffix(name, ".blat"):
		return BehaviorHeapBlob
	default:
		// Unrecognized runtime payloads are treated as heap blobs so the
		// native runtime can still address them.
		return BehaviorHeapBlob
	}
}
