package bootcfg

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/vk/bootrt/internal/manifest"
)

// fingerprintFields is the canonical projection of the fields that affect
// produced runtime state. Tuning and diagnostics (debug level, tracing,
// concurrency, retries, cache enablement) are deliberately absent:
// fingerprint equality must imply materialization equivalence, and those
// fields cannot change the produced bytes. BaseURL is absent too —
// relocating an unchanged deployment must still hit its snapshot.
type fingerprintFields struct {
	MainAssembly         string                     `json:"main"`
	AssemblyRoot         string                     `json:"root"`
	Sources              []string                   `json:"sources,omitempty"`
	GlobalizationMode    GlobalizationMode          `json:"globalization"`
	EnvironmentVariables map[string]string          `json:"env,omitempty"`
	ContentFingerprint   string                     `json:"content,omitempty"`
	Resources            *manifest.ResourceManifest `json:"resources"`
}

// fingerprintVersion is bumped whenever the canonical projection changes,
// so stale snapshots read as misses instead of false hits.
const fingerprintVersion = "v1"

// Fingerprint returns the deterministic digest keying the snapshot cache.
// encoding/json sorts map keys, which makes the serialized projection
// canonical for the map-valued fields.
func (c *BootConfig) Fingerprint() (string, error) {
	canonical, err := json.Marshal(fingerprintFields{
		MainAssembly:         c.MainAssembly,
		AssemblyRoot:         c.AssemblyRoot,
		Sources:              c.Sources,
		GlobalizationMode:    c.GlobalizationMode,
		EnvironmentVariables: c.EnvironmentVariables,
		ContentFingerprint:   c.ContentFingerprint,
		Resources:            c.Resources,
	})
	if err != nil {
		return "", fmt.Errorf("serializing fingerprint fields: %w", err)
	}
	sum := blake2b.Sum256(canonical)
	return fingerprintVersion + "-" + hex.EncodeToString(sum[:16]), nil
}
