package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mixedpast/metareport/internal/config"
	"github.com/mixedpast/metareport/loader"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var cfg = &config.Config{}

var rootCmd = &cobra.Command{
	Use:   "metareport",
	Short: "metareport - extract and report image generation metadata",
	Long: `Metareport reads the workflow metadata embedded in generated PNG files
(or stored in sidecar JSON files) and reformats it into human-readable
reports describing the model, prompts, sampler settings and auxiliary
components that produced each image.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		// flags override config due to highest precedence
		if debug {
			cfg.Debug = true
		}

		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

// newLoader builds a loader from the active configuration.
func newLoader() *loader.Loader {
	return loader.New(loader.Config{
		InputDir:        cfg.Directories.Input,
		OutputDir:       cfg.Directories.Output,
		ExcludedFormats: cfg.Loader.ExcludedFormats,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: config.yml in current directory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose logging")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
