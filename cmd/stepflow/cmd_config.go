package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aristath/stepflow/internal/config"
)

var (
	initGlobal bool
	initYAML   bool
	initForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Long: `Writes the built-in defaults to .stepflow/config.json, or to
~/.stepflow/ with --global. Existing files are kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: initConfig,
}

func init() {
	configInitCmd.Flags().BoolVar(&initGlobal, "global", false, "Write the global config in the home directory")
	configInitCmd.Flags().BoolVar(&initYAML, "yaml", false, "Write YAML instead of JSON")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := filepath.Join(".stepflow", "config.json")
	if initGlobal {
		path = globalConfigPath()
		if path == "" {
			return fmt.Errorf("cannot determine home directory")
		}
	}
	if configPath != "" {
		path = configPath
	} else if initYAML {
		path = path[:len(path)-len(filepath.Ext(path))] + ".yaml"
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.Save(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
