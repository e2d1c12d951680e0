package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/signalridge/codecompass/internal/config"
	"github.com/signalridge/codecompass/internal/output"
)

const dataDirName = ".codecompass"

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Initialize a project for indexing",
		Long: `Initialize codecompass for a project directory.

This creates the .codecompass data directory (where the relational
store, full-text index, and vector store live) and writes a
.codecompass.yaml configuration template if one doesn't already exist.
It does not index the project — run 'codecompass index' next.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .codecompass.yaml")
	return cmd
}

func runInit(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root)
	}

	dataDir := filepath.Join(root, dataDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	out.Statusf("📁", "Created data directory: %s", dataDir)

	configPath := filepath.Join(root, ".codecompass.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		out.Status("ℹ️ ", "Existing .codecompass.yaml preserved")
		return nil
	}

	data, err := yaml.Marshal(config.NewConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write .codecompass.yaml: %w", err)
	}
	out.Statusf("📝", "Created %s", configPath)

	out.Newline()
	out.Success("Initialization complete")
	out.Status("💡", "Next: codecompass index --path "+root)
	return nil
}
