package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bootrt/internal/loader"
	"github.com/vk/bootrt/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bootrt "+version)
}

func TestInvalidLogLevelRejected(t *testing.T) {
	_, err := execute(t, "version", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log-level")
}

func TestFingerprintDeterministic(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "boot.hcl")
	require.NoError(t, os.WriteFile(profile, []byte(`
boot {
  main_assembly = "App.dll"
}

resources {
  runtime = {
    "dotnet.wasm" = "sha256-aaaa"
  }
  assembly = {
    "App.dll" = "sha256-bbbb"
  }
}
`), 0o644))

	first, err := execute(t, "fingerprint", "--profile", profile)
	require.NoError(t, err)
	assert.Regexp(t, `^v1-[0-9a-f]{32}`, strings.TrimSpace(first))

	second, err := execute(t, "fingerprint", "--profile", profile)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFingerprintMainOverrideChangesKey(t *testing.T) {
	base, err := execute(t, "fingerprint", "--main", "A.dll")
	require.NoError(t, err)
	other, err := execute(t, "fingerprint", "--main", "B.dll")
	require.NoError(t, err)
	assert.NotEqual(t, base, other)
}

func TestRunBootsFromProfile(t *testing.T) {
	srv := testutil.NewAssetServer()
	defer srv.Close()
	wasm := []byte("\x00asm host module")
	app := []byte("MZ managed assembly")
	srv.Serve("dotnet.wasm", &testutil.Script{Body: wasm})
	srv.Serve("App.dll", &testutil.Script{Body: app})

	dir := t.TempDir()
	profile := filepath.Join(dir, "boot.hcl")
	require.NoError(t, os.WriteFile(profile, []byte(`
boot {
  main_assembly = "App.dll"
}

resources {
  runtime = {
    "dotnet.wasm" = "`+loader.SRIHash(wasm)+`"
  }
  assembly = {
    "App.dll" = "`+loader.SRIHash(app)+`"
  }
}
`), 0o644))

	_, err := execute(t, "run", "--profile", profile, "--base-url", srv.URL())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits("App.dll"))
}

func TestRunMissingProfilePathFails(t *testing.T) {
	_, err := execute(t, "run", "--profile", filepath.Join(t.TempDir(), "absent.hcl"))
	require.Error(t, err)
}
