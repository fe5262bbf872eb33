package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mixedpast/metareport/loader"
	"github.com/mixedpast/metareport/report"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var scanToStdout bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Report on every PNG in the output directory tree",
	Long: `Scan walks the configured output directory, generates a metadata report
for every PNG found, and writes each report to <image>.report.txt beside the
image (or to stdout with --stdout).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := loader.ListPNGFiles(cfg.Directories.Output)
		if err != nil {
			return fmt.Errorf("error scanning output directory: %w", err)
		}
		if len(files) == 0 {
			return fmt.Errorf("no PNG files found in %s", cfg.Directories.Output)
		}

		r := report.New()

		// explicit file mode resolves against the input directory; walked
		// paths are already complete, so this loader is rooted at ""
		l := loader.New(loader.Config{
			OutputDir:       cfg.Directories.Output,
			ExcludedFormats: cfg.Loader.ExcludedFormats,
		})

		var bar *progressbar.ProgressBar
		if !scanToStdout {
			bar = progressbar.Default(int64(len(files)), "reporting")
		}

		for _, f := range files {
			_, metadata := l.Load(loader.ImageSource{Kind: loader.SourceFile, File: f.Path})

			text := r.Report(metadata)
			if scanToStdout {
				fmt.Printf("== %s ==\n%s\n\n", f.Path, text)
				continue
			}

			outPath := strings.TrimSuffix(f.Path, filepath.Ext(f.Path)) + ".report.txt"
			if err := os.WriteFile(outPath, []byte(text+"\n"), 0o644); err != nil {
				return fmt.Errorf("error writing %s: %w", outPath, err)
			}
			bar.Add(1)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanToStdout, "stdout", false,
		"print reports to stdout instead of writing .report.txt files")
}
