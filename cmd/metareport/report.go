package main

import (
	"fmt"
	"log/slog"

	"github.com/mixedpast/metareport/loader"
	"github.com/mixedpast/metareport/report"
	"github.com/spf13/cobra"
)

var latest bool

var reportCmd = &cobra.Command{
	Use:   "report [file]",
	Short: "Report the generation metadata of one image",
	Long: `Report loads one image and prints its workflow metadata report.

Examples:
  # Report on a file in the configured input directory
  metareport report myimage.png

  # Report on the most recently generated image in the output tree
  metareport report --latest`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := loader.ImageSource{Kind: loader.SourceMostRecent}
		if !latest {
			if len(args) == 0 {
				return fmt.Errorf("either a file argument or --latest is required")
			}
			source = loader.ImageSource{Kind: loader.SourceFile, File: args[0]}
		}

		l := newLoader()
		img, metadata := l.Load(source)
		slog.Debug("image loaded",
			"frames", img.Frames, "width", img.Width, "height", img.Height,
			"changed_signal", l.IsChanged(source))

		fmt.Println(report.New().Report(metadata))
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&latest, "latest", false,
		"report on the most recently modified PNG in the output directory")
}
