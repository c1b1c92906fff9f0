package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/synexpand/configs"
	"github.com/Aman-CERP/synexpand/internal/config"
)

func TestConfigCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	configCmd, _, err := cmd.Find([]string{"config"})
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, sc := range configCmd.Commands() {
		names[sc.Name()] = true
	}
	assert.True(t, names["init"], "should have init command")
	assert.True(t, names["show"], "should have show command")
	assert.True(t, names["path"], "should have path command")
}

func TestConfigPathCmd_OutputsPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))

	out, _, err := execute(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, ".config", "synexpand", "config.yaml")+"\n", out)
}

func TestConfigInitCmd_NewFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))

	out, _, err := execute(t, "", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")

	data, err := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, configs.UserConfigTemplate, string(data))
}

func TestConfigInitCmd_AlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))
	path := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	out, _, err := execute(t, "", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data), "file must be untouched without --force")

	out, _, err = execute(t, "", "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup:")

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, configs.UserConfigTemplate, string(data))
}

func TestConfigShowCmd_YAML(t *testing.T) {
	dir, cfgPath := writeProject(t)

	out, _, err := execute(t, "", "--config", cfgPath, "config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "# config: "+cfgPath)
	assert.Contains(t, out, "source: yaml")
	assert.Contains(t, out, "path: "+filepath.Join(dir, "synonyms.yaml"))
	assert.Contains(t, out, "refresh_interval: 1m")
}

func TestConfigShowCmd_JSON(t *testing.T) {
	_, cfgPath := writeProject(t)
	t.Setenv("SYNEXPAND_MAX_RESULTS", "7")

	out, _, err := execute(t, "", "--config", cfgPath, "config", "show", "--json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "yaml", cfg.Synonyms.Source)
	assert.Equal(t, 7, cfg.Backend.MaxResults)
	assert.True(t, cfg.Rewrite.SynonymsSupported)
}
