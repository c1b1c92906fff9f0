package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/synexpand/configs"
	"github.com/Aman-CERP/synexpand/internal/config"
	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/output"
)

// synonymsFile is the starter dictionary written by init.
const synonymsFile = "synonyms.yaml"

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize synexpand for a project",
		Long: `Initialize synexpand for a project directory (default: current).

This command:
1. Generates .synexpand.yaml using the yaml synonyms source
2. Writes a starter synonyms.yaml unless one already exists

An existing .synexpand.yaml is only replaced with --force; the previous
file is kept as a timestamped .bak copy.`,
		Example: `  # Initialize in current project
  synexpand init

  # Overwrite an existing config (a backup is kept)
  synexpand init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := filepath.Abs(dir)
	if err != nil {
		return synerrors.IOError("cannot resolve project directory", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return synerrors.New(synerrors.ErrCodeFileNotFound, "project directory not found: "+root, err)
	}

	configPath := filepath.Join(root, config.ProjectFile)
	if _, err := os.Stat(configPath); err == nil {
		if !force {
			return synerrors.ValidationError(config.ProjectFile+" already exists", nil).
				WithDetail("path", configPath).
				WithSuggestion("Use --force to overwrite it (a backup is kept)")
		}
		backup, err := config.Backup(configPath)
		if err != nil {
			return err
		}
		out.Status("💾", "Backup: "+backup)
	}

	if err := os.WriteFile(configPath, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return synerrors.IOError("failed to write "+config.ProjectFile, err)
	}
	out.Successf("Created %s", configPath)

	synPath := filepath.Join(root, synonymsFile)
	if _, err := os.Stat(synPath); err == nil {
		out.Status("📖", "Keeping existing "+synPath)
	} else {
		if err := os.WriteFile(synPath, []byte(configs.SynonymsTemplate), 0o644); err != nil {
			return synerrors.IOError("failed to write "+synonymsFile, err)
		}
		out.Successf("Created %s", synPath)
	}

	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", fmt.Sprintf("  1. Add your synonyms to %s", synonymsFile))
	out.Status("", "  2. Run 'synexpand explain <query>' to check an expansion")
	out.Status("", "  3. Run 'synexpand serve' from an MCP client")
	return nil
}
