package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mixedpast/metareport/loader"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidate PNG files in the output directory tree",
	Long: `List shows every PNG under the configured output directory, newest
first. The first row is the file that "report --latest" would pick.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := loader.ListPNGFiles(cfg.Directories.Output)
		if err != nil {
			return fmt.Errorf("error scanning output directory: %w", err)
		}

		sort.Slice(files, func(i, j int) bool {
			return files[i].ModTime.After(files[j].ModTime)
		})

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.SetTitle("OUTPUT IMAGES")
		t.AppendHeader(table.Row{"FILE", "SIZE", "MODIFIED"})
		for _, f := range files {
			t.AppendRow(table.Row{f.Path, f.Size, f.ModTime.Format("2006-01-02 15:04:05")})
		}
		t.Render()
		return nil
	},
}
