// Package cli implements the handtrack command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SEARO1/Hand-Track/internal/config"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

var (
	cfgFile   string
	verbose   bool
	configErr error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "handtrack",
	Short: "HandTrack - real-time hand gesture recognition",
	Long: `HandTrack reads frames from a camera or a video file, locates hands
with MediaPipe, and classifies each hand as one of a small set of static
gestures (rock, paper, scissors, pointing, thumbs up, OK, three, middle finger).

Labels are smoothed over a sliding window so a gesture is only reported
once it has held for most of the window.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "handtrack %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.handtrack/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	configErr = config.Prepare(viper.GetViper(), cfgFile)
	if configErr == nil && viper.ConfigFileUsed() != "" {
		slog.Debug("using config file", "path", viper.ConfigFileUsed())
	}
}

// loadConfig returns the merged configuration for a command.
func loadConfig() (config.Config, error) {
	if configErr != nil {
		return config.Config{}, configErr
	}
	return config.Load(viper.GetViper())
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
