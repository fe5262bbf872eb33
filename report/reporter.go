package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mixedpast/metareport/graphapi"
)

const noMetadataMessage = "Metadata report: No valid metadata was provided.\n\n" +
	"If this is unexpected, check that:\n" +
	"1. The image has embedded metadata\n" +
	"2. The metadata loader is connected correctly\n" +
	"3. The workflow has completed at least one execution"

// Reporter formats loaded image metadata into a human readable, line
// oriented text report. Report never fails: degenerate input yields a fixed
// explanatory message, metadata without a workflow graph is dumped as a flat
// key/value listing, and any failure while walking the graph is folded into
// the output as a trailing error line.
type Reporter struct{}

// New creates a Reporter.
func New() *Reporter {
	return &Reporter{}
}

// Report produces the text report for a metadata mapping.
func (r *Reporter) Report(metadata map[string]any) string {
	if len(metadata) == 0 {
		slog.Debug("no valid metadata provided, returning fallback report")
		return noMetadataMessage
	}

	graph, err := graphapi.NodesFromMetadata(metadata)
	if err != nil {
		slog.Debug("could not find node structure in metadata", "error", err)
		return formatDirectMetadata(metadata)
	}

	return formatGraph(graph)
}

// formatGraph renders the fixed sequence of report sections. A panic in any
// section is recovered and appended as an error line; everything produced
// before the failure point is preserved.
func formatGraph(graph *graphapi.WorkflowGraph) (out string) {
	lines := []string{"--- Workflow Metadata Report ---"}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("error during metadata parsing", "panic", rec)
			lines = append(lines, fmt.Sprintf("\nError during metadata parsing: %v", rec))
			out = strings.Join(lines, "\n")
		}
	}()

	for _, rule := range sectionRules {
		lines = append(lines, rule.extract(graph)...)
	}
	return strings.Join(lines, "\n")
}

// formatDirectMetadata renders metadata that carries no workflow graph as a
// flat key/value listing. Keys are sorted for stable output.
func formatDirectMetadata(metadata map[string]any) string {
	lines := []string{"--- Image Metadata ---"}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		displayKey := titleCase(key)
		switch value := metadata[key].(type) {
		case map[string]any:
			formatted, err := json.MarshalIndent(value, "", "  ")
			if err != nil {
				lines = append(lines, fmt.Sprintf("%s: %v", displayKey, value))
				continue
			}
			lines = append(lines, fmt.Sprintf("%s:\n%s", displayKey, formatted))
		case []any:
			lines = append(lines, fmt.Sprintf("%s: %s", displayKey, formatSequence(value)))
		default:
			lines = append(lines, fmt.Sprintf("%s: %v", displayKey, value))
		}
	}
	return strings.Join(lines, "\n")
}

// formatSequence prints a sequence value, eliding anything past the first
// five elements.
func formatSequence(value []any) string {
	const limit = 5
	parts := make([]string, 0, limit)
	for i, v := range value {
		if i == limit {
			break
		}
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	if len(value) > limit {
		return "[" + strings.Join(parts, ", ") + ", ... ]"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// titleCase converts a snake_case key to a Title Case display name.
func titleCase(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
