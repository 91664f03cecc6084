package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/SEARO1/Hand-Track/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage HandTrack configuration",
	Long: `Manage HandTrack configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (HANDTRACK_*, e.g. HANDTRACK_SERVER_ADDR)
3. Config file (~/.handtrack/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if f := viper.ConfigFileUsed(); f != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", f)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long:  `Create a configuration file with every option at its default. The default location is ~/.handtrack/config.yaml.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(config.Dir(), "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}

		if err := writeDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created default configuration: %s\n", path)
		return nil
	},
}

func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	header := "# HandTrack configuration\n" +
		"# Environment variables override this file: HANDTRACK_<SECTION>_<KEY>,\n" +
		"# e.g. HANDTRACK_WINDOW_SIZE=5 or HANDTRACK_SERVER_ADDR=:9000.\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0644)
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
