package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/synexpand/configs"
	"github.com/Aman-CERP/synexpand/internal/config"
	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user/global configuration file.

User configuration holds machine-wide defaults such as the synonym refresh
interval and the server log level.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/synexpand/config.yaml)
  3. Project config (.synexpand.yaml)
  4. Environment variables (SYNEXPAND_*)`,
		Example: `  # Create user config from template
  synexpand config init

  # Show effective configuration (merged from all sources)
  synexpand config show

  # Print user config file path
  synexpand config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user/global configuration file from a template.

The configuration file is created at ~/.config/synexpand/config.yaml
(or $XDG_CONFIG_HOME/synexpand/config.yaml if XDG_CONFIG_HOME is set).`,
		Example: `  # Create user config
  synexpand config init

  # Overwrite existing config (a backup is kept)
  synexpand config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging defaults, the user
config, the project config (or --config) and environment variables.`,
		Example: `  # Show merged configuration
  synexpand config show

  # Show as JSON
  synexpand config show --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Long:  `Print the path to the user configuration file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	configPath := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			out.Warningf("User configuration already exists")
			out.Status("📁", "Location: "+configPath)
			out.Newline()
			out.Status("💡", "Use --force to overwrite it (a backup is kept)")
			return nil
		}
		backup, err := config.Backup(configPath)
		if err != nil {
			return err
		}
		out.Status("💾", "Backup: "+backup)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return synerrors.IOError("failed to create config directory", err).
			WithDetail("path", filepath.Dir(configPath))
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return synerrors.IOError("failed to write config file", err).
			WithDetail("path", configPath)
	}

	out.Successf("Created user configuration")
	out.Status("📁", "Location: "+configPath)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Edit the file to customize settings")
	out.Status("", "  2. Run 'synexpand config show' to verify")
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	cfg, root, err := loadConfig()
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	w := cmd.OutOrStdout()
	switch {
	case configFile != "":
		_, _ = fmt.Fprintf(w, "# config: %s\n", configFile)
	case root != "":
		_, _ = fmt.Fprintf(w, "# project: %s\n", root)
	}
	return cfg.Encode(w)
}
