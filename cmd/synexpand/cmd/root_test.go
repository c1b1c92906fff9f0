package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSynonyms = `synonyms:
  dagis: [förskola, lekis]
  tech now: technology
groups:
  - [car, auto]
`

const testDocs = `{"id":"preschool","title":"Förskola i Stockholm"}
{"id":"daycare","title":"Dagis nära dig"}
{"id":"car","title":"Red sports car"}
`

// writeProject creates a project using the yaml source and returns its
// directory and config path.
func writeProject(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))

	cfg := `version: 1
synonyms:
  source: yaml
  path: synonyms.yaml
  refresh_interval: 1m
`
	cfgPath := filepath.Join(dir, ".synexpand.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "synonyms.yaml"), []byte(testSynonyms), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs.jsonl"), []byte(testDocs), 0o644))
	return dir, cfgPath
}

// execute runs the root command with args and stdin, returning stdout and
// stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make(map[string]bool)
	for _, sc := range cmd.Commands() {
		names[sc.Name()] = true
	}
	for _, want := range []string{"rewrite", "explain", "search", "synonyms", "serve", "validate", "stats", "init", "config", "logs", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	debug := cmd.PersistentFlags().Lookup("debug")
	require.NotNil(t, debug)
	assert.Equal(t, "false", debug.DefValue)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, _, err := execute(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "synexpand version")
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("synonyms:\n  source: redis\n"), 0o644))

	_, _, err := execute(t, "", "--config", cfgPath, "explain", "dagis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synonyms.source")
}

func TestRootCmd_ProfilingFlags(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.prof")
	heap := filepath.Join(dir, "heap.prof")

	_, _, err := execute(t, "", "--cpuprofile", cpu, "--memprofile", heap, "version", "--short")
	require.NoError(t, err)

	for _, path := range []string{cpu, heap} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Greater(t, info.Size(), int64(0))
	}
}
