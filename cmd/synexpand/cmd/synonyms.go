package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/output"
	"github.com/Aman-CERP/synexpand/internal/source"
)

func newSynonymsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synonyms",
		Short: "Inspect and manage the synonym dictionary",
		Long: `Inspect the dictionary served by the configured synonyms source, or
import a YAML synonyms file into a SQLite store.

Sources (synonyms.source):
  builtin  - a small compiled-in dictionary
  yaml     - a YAML file, re-read on every refresh
  sqlite   - a SQLite database filled with 'synexpand synonyms import'`,
	}

	cmd.AddCommand(newSynonymsListCmd())
	cmd.AddCommand(newSynonymsImportCmd())

	return cmd
}

func newSynonymsListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the configured dictionary",
		Example: `  synexpand synonyms list
  synexpand synonyms list --format yaml > synonyms.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSynonymsList(cmd, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, yaml")

	return cmd
}

func runSynonymsList(cmd *cobra.Command, format string) error {
	if format != "text" && format != "yaml" {
		return fmt.Errorf("invalid format %q: must be text or yaml", format)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	loader, closer, err := source.Open(cfg.Synonyms.Source, cfg.Synonyms.Path)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	dict, err := loader.Load(cmd.Context())
	if err != nil {
		return err
	}

	if format == "yaml" {
		return source.WriteYAML(cmd.OutOrStdout(), dict)
	}

	out := output.New(cmd.OutOrStdout())
	desc := cfg.Synonyms.Source
	if cfg.Synonyms.Path != "" {
		desc += " (" + cfg.Synonyms.Path + ")"
	}
	out.Heading(fmt.Sprintf("%d phrases from %s", len(dict), desc))
	for _, phrase := range dict.Keys() {
		out.KeyValue(phrase, strings.Join(dict[phrase].Sorted(), ", "))
	}
	return nil
}

func newSynonymsImportCmd() *cobra.Command {
	var (
		dbPath  string
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import a YAML synonyms file into a SQLite store",
		Long: `Import a YAML synonyms file into a SQLite store. Entries are merged
with the existing ones unless --replace is given.

The store defaults to synonyms.path when synonyms.source is sqlite. Imports
take a file lock, so a running server keeps reading a consistent store.`,
		Example: `  synexpand synonyms import synonyms.yaml --db .synexpand/synonyms.db
  synexpand synonyms import synonyms.yaml --replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynonymsImport(cmd, args[0], dbPath, replace)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite store path (default: synonyms.path)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the stored dictionary instead of merging")

	return cmd
}

func runSynonymsImport(cmd *cobra.Command, file, dbPath string, replace bool) error {
	if dbPath == "" {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Synonyms.Source != source.KindSQLite {
			return synerrors.ValidationError("no SQLite store to import into", nil).
				WithSuggestion("Pass --db path or set synonyms.source: sqlite with synonyms.path")
		}
		dbPath = cfg.Synonyms.Path
	}

	dict, err := source.NewYAMLFile(file).Load(cmd.Context())
	if err != nil {
		return err
	}

	store, err := source.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := store.Import(cmd.Context(), dict, replace)
	if err != nil {
		return err
	}
	total, err := store.Count(cmd.Context())
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Successf("Imported %d new synonym pairs from %s", n, file)
	out.KeyValue("store", dbPath)
	out.KeyValue("phrases", fmt.Sprint(total))
	if replace {
		out.KeyValue("mode", "replace")
	}
	return nil
}

