package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/source"
)

func TestSynonymsListCmd_Text(t *testing.T) {
	_, cfgPath := writeProject(t)

	out, _, err := execute(t, "", "--config", cfgPath, "synonyms", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "4 phrases from yaml")
	assert.Contains(t, out, "dagis: förskola, lekis")
	assert.Contains(t, out, "auto: car")
}

func TestSynonymsListCmd_YAMLRoundTrips(t *testing.T) {
	_, cfgPath := writeProject(t)

	out, _, err := execute(t, "", "--config", cfgPath, "synonyms", "list", "--format", "yaml")
	require.NoError(t, err)

	dict, err := source.ParseYAML([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, []string{"auto", "car", "dagis", "tech now"}, dict.Keys())
	assert.True(t, dict["car"].Has("auto"))
}

func TestSynonymsListCmd_Builtin(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	cfgPath := filepath.Join(dir, "builtin.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("synonyms:\n  source: builtin\n"), 0o644))

	out, _, err := execute(t, "", "--config", cfgPath, "synonyms", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "from builtin")
	assert.Contains(t, out, "nyc:")
}

func TestSynonymsImportCmd(t *testing.T) {
	dir, cfgPath := writeProject(t)
	db := filepath.Join(dir, "synonyms.db")

	out, _, err := execute(t, "", "--config", cfgPath, "synonyms", "import", filepath.Join(dir, "synonyms.yaml"), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported")
	assert.Contains(t, out, "phrases: 4")

	sqliteCfg := filepath.Join(dir, "sqlite.yaml")
	require.NoError(t, os.WriteFile(sqliteCfg, []byte("synonyms:\n  source: sqlite\n  path: synonyms.db\n"), 0o644))

	out, _, err = execute(t, "", "--config", sqliteCfg, "synonyms", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "4 phrases from sqlite")
	assert.Contains(t, out, "tech now: technology")
}

func TestSynonymsImportCmd_RequiresStore(t *testing.T) {
	dir, cfgPath := writeProject(t)

	_, _, err := execute(t, "", "--config", cfgPath, "synonyms", "import", filepath.Join(dir, "synonyms.yaml"))
	require.Error(t, err)
	se, ok := synerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, synerrors.CategoryValidation, se.Category)
}
