package graphapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
)

// ErrNoWorkflow is returned when none of the recognized metadata keys hold a
// usable node structure.
var ErrNoWorkflow = errors.New("no workflow node structure in metadata")

// NodesFromMetadata locates the workflow graph substructure inside a loaded
// metadata mapping. ComfyUI and compatible tools store the graph under
// several conventions, tried in order:
//
//  1. "prompt": the API format graph, as a mapping or a JSON encoded string.
//  2. "workflow": the UI format, as a mapping or JSON encoded string; its
//     "nodes" sub-key is preferred when present, else the whole object.
//  3. "nodes": a direct node collection, mapping or sequence.
//
// A parse failure at any step is logged and that step is skipped, falling
// through to the next convention.
func NodesFromMetadata(metadata map[string]any) (*WorkflowGraph, error) {
	if v, ok := metadata["prompt"]; ok {
		if g := graphFromValue("prompt", v, false); g != nil {
			return g, nil
		}
	}
	if v, ok := metadata["workflow"]; ok {
		if g := graphFromValue("workflow", v, true); g != nil {
			return g, nil
		}
	}
	if v, ok := metadata["nodes"]; ok {
		if g := graphFromValue("nodes", v, false); g != nil {
			return g, nil
		}
	}
	return nil, ErrNoWorkflow
}

// graphFromValue decodes a candidate graph value. The value may be a JSON
// encoded string or an already decoded structure; decoded structures are
// re-marshaled first (which yields sorted node order, keeping "first node
// wins" deterministic). When workflowConvention is set, a "nodes" sub-key
// takes precedence over the enclosing object.
func graphFromValue(key string, v any, workflowConvention bool) *WorkflowGraph {
	var raw []byte
	switch tv := v.(type) {
	case string:
		raw = []byte(tv)
	case json.RawMessage:
		raw = tv
	default:
		b, err := json.Marshal(tv)
		if err != nil {
			slog.Warn("cannot re-encode metadata value", "key", key, "error", err)
			return nil
		}
		raw = b
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	if workflowConvention && raw[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			slog.Warn("failed to parse workflow JSON", "key", key, "error", err)
			return nil
		}
		if nodes, ok := wrapper["nodes"]; ok {
			raw = bytes.TrimSpace(nodes)
		}
	}

	var g *WorkflowGraph
	var err error
	switch {
	case len(raw) > 0 && raw[0] == '{':
		g = &WorkflowGraph{}
		err = json.Unmarshal(raw, g)
	case len(raw) > 0 && raw[0] == '[':
		g, err = graphFromNodeList(raw)
	default:
		err = errors.New("value is neither a JSON object nor an array")
	}
	if err != nil {
		slog.Warn("failed to parse node structure", "key", key, "error", err)
		return nil
	}
	if g.Len() == 0 {
		return nil
	}
	return g
}
