package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/deployctl/internal/deploy"
	"github.com/danmuck/deployctl/internal/topology"
	"github.com/danmuck/deployctl/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deployctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, topology.DefaultNames(), cfg.TopologyNames())
	assert.Equal(t, deploy.DefaultBootstrapCommand, cfg.Bootstrap.Command)
	assert.Equal(t, []string{"docker-compose"}, cfg.Runtime.Compose)
}

func TestTemplateRoundTripsToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployctl.toml")
	require.NoError(t, WriteTemplate(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	err = WriteTemplate(path, false)
	require.Error(t, err)
	require.NoError(t, WriteTemplate(path, true))
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[workspace]
dir = "`+dir+`"
state_root = "states"

[names]
prefix = "arb-test"

[runtime]
compose = ["docker", "compose"]

[bootstrap]
command = ["./seed", " ", "{state_root}"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "states", cfg.Workspace.StateRoot)
	assert.Equal(t, "docker-compose.yml", cfg.Workspace.ComposeFile)
	assert.Equal(t, "arb-test", cfg.Names.Prefix)
	assert.Equal(t, "arb-validator", cfg.Names.Image)
	assert.Equal(t, []string{"docker", "compose"}, cfg.Runtime.Compose)
	assert.Equal(t, []string{"./seed", "{state_root}"}, cfg.Bootstrap.Command)
	assert.Equal(t, deploy.DefaultCacheImages, cfg.Cache.Images)

	ws, err := cfg.ResolveWorkspace("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "states"), ws.StateRoot)
	assert.Equal(t, filepath.Join(dir, "states", "validator3"), ws.StatePath(3))

	docker := cfg.DockerConfig(nil, true)
	assert.True(t, docker.Sudo)
	assert.Equal(t, "docker", docker.Docker)
}

func TestLoadEmptyCacheListDisablesCaches(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[cache]\nimages = []\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Cache.Images)
	assert.NotNil(t, cfg.Cache.Images)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"syntax":      "[workspace\n",
		"unknown key": "[workspace]\nstates = \"x\"\n",
		"pattern":     "[workspace]\nstate_pattern = \"node\"\n",
		"bootstrap":   "[bootstrap]\ncommand = []\n",
		"placeholder": "[bootstrap]\ncommand = [\"{contract}\"]\n",
		"compose":     "[runtime]\ncompose = [\" \"]\n",
		"state root":  "[workspace]\nstate_root = \".\"\n",
		"state fs":    "[workspace]\nstate_root = \"/\"\n",
		"cache root":  "[workspace]\ncache_context_dir = \"packages\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsStateRootAtWorkspaceDir(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(writeConfig(t, "[workspace]\ndir = \""+dir+"\"\nstate_root = \".\"\n"))
	require.ErrorIs(t, err, workspace.ErrInvalidLayout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
