package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mixedpast/metareport/graphapi"
)

// sectionRule is one entry of the report's fixed section order. Each
// extractor is independently resilient: it returns no lines when its nodes
// are absent rather than failing the report.
type sectionRule struct {
	name    string
	extract func(*graphapi.WorkflowGraph) []string
}

var sectionRules = []sectionRule{
	{"model", modelSection},
	{"loras", loraSection},
	{"resolution", resolutionSection},
	{"prompts", promptSection},
	{"negative", negativeSection},
	{"sampler", samplerSection},
	{"components", componentSection},
}

// inputDisplay renders a node input for the report, with "N/A" for missing
// inputs.
func inputDisplay(node *graphapi.WorkflowNode, name string) string {
	v, ok := node.Input(name)
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%v", v.Raw())
}

// modelSection reports the checkpoint of the first CheckpointLoaderSimple
// node, "N/A" when the graph has none.
func modelSection(graph *graphapi.WorkflowGraph) []string {
	model := "N/A"
	if node := graph.FirstWithClassType("CheckpointLoaderSimple"); node != nil {
		model = inputDisplay(node, "ckpt_name")
	}
	return []string{fmt.Sprintf("Model: %s", model)}
}

// loraSection reports the enabled entries of the first Power Lora Loader
// node. The loader stores one strength per entry; it is shown for both the
// Model and CLIP positions.
func loraSection(graph *graphapi.WorkflowGraph) []string {
	node := graph.FirstWithClassType("Power Lora Loader (rgthree)")
	if node == nil {
		return nil
	}

	var lines []string
	for _, name := range node.InputNames() {
		if !strings.HasPrefix(name, "lora_") {
			continue
		}
		v, _ := node.Input(name)
		entry, ok := v.Map()
		if !ok {
			continue
		}
		if on, _ := entry["on"].(bool); !on {
			continue
		}
		loraName := mapDisplay(entry, "lora")
		strength := mapDisplay(entry, "strength")
		lines = append(lines, fmt.Sprintf("  - %s (Model: %s, CLIP: %s)", loraName, strength, strength))
	}
	if len(lines) == 0 {
		return nil
	}
	return append([]string{"LoRAs:"}, lines...)
}

func mapDisplay(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%v", v)
}

// resolutionSection tries CascadeResolutions first, then ImageScale.
func resolutionSection(graph *graphapi.WorkflowGraph) []string {
	if node := graph.FirstWithClassType("CascadeResolutions"); node != nil {
		if v, ok := node.Input("size_selected"); ok {
			return []string{fmt.Sprintf("Resolution: %v", v.Raw())}
		}
	}
	if node := graph.FirstWithClassType("ImageScale"); node != nil {
		width, wok := node.Input("width")
		height, hok := node.Input("height")
		if wok && hok && truthy(width.Raw()) && truthy(height.Raw()) {
			return []string{fmt.Sprintf("Resolution: %vx%v", width.Raw(), height.Raw())}
		}
	}
	return nil
}

func truthy(v any) bool {
	switch tv := v.(type) {
	case nil:
		return false
	case string:
		return tv != ""
	case float64:
		return tv != 0
	case json.Number:
		f, err := tv.Float64()
		return err == nil && f != 0
	case bool:
		return tv
	}
	return true
}

// promptSection takes the first CLIPTextEncodeFlux node with a non-empty
// clip_l input (empty ones are negative prompt slots) and reports its clip_l
// and, when present, t5xxl prompts.
func promptSection(graph *graphapi.WorkflowGraph) []string {
	posPrompt := "N/A"
	var t5xxl string
	var hasT5 bool

	for _, node := range graph.NodesWithClassType("CLIPTextEncodeFlux") {
		v, ok := node.Input("clip_l")
		if !ok {
			continue
		}
		if s, isStr := v.Raw().(string); isStr && s == "" {
			continue
		}
		posPrompt = fmt.Sprintf("%v", v.Raw())
		if t5, ok := node.Input("t5xxl"); ok {
			t5xxl = fmt.Sprintf("%v", t5.Raw())
			hasT5 = true
		}
		break
	}

	lines := []string{fmt.Sprintf("\nPositive Prompt:\n  %s", posPrompt)}
	if hasT5 {
		lines = append(lines, fmt.Sprintf("\nT5XXL Prompt:\n  %s", t5xxl))
	}
	return lines
}

// negativeSection is a fixed placeholder: the graph convention does not
// separately expose a negative prompt value.
func negativeSection(*graphapi.WorkflowGraph) []string {
	return []string{"\nNegative Prompt:\n  (Empty)"}
}

// samplerField is one labeled sampler parameter; order matters for display.
type samplerField struct {
	key   string
	value string
}

// samplerSection reports KSampler parameters, falling back to XlabsSampler
// with its distinct field mapping. The whole section is omitted when the
// graph has neither sampler type.
func samplerSection(graph *graphapi.WorkflowGraph) []string {
	fields := extractSamplerInfo(graph)
	if fields == nil {
		return nil
	}
	lines := []string{"\n--- Sampler Details ---"}
	for _, f := range fields {
		lines = append(lines, fmt.Sprintf("%s: %s", titleCase(f.key), f.value))
	}
	return lines
}

func extractSamplerInfo(graph *graphapi.WorkflowGraph) []samplerField {
	if node := graph.FirstWithClassType("KSampler"); node != nil {
		return []samplerField{
			{"seed", resolveSeed(graph, node)},
			{"steps", inputDisplay(node, "steps")},
			{"cfg", inputDisplay(node, "cfg")},
			{"sampler_name", inputDisplay(node, "sampler_name")},
			{"scheduler", inputDisplay(node, "scheduler")},
			{"denoise", inputDisplay(node, "denoise")},
		}
	}

	if node := graph.FirstWithClassType("XlabsSampler"); node != nil {
		return []samplerField{
			{"seed", inputDisplay(node, "noise_seed")},
			{"steps", inputDisplay(node, "steps")},
			{"true_gs", inputDisplay(node, "true_gs")},
			{"timestep_to_start_cfg", inputDisplay(node, "timestep_to_start_cfg")},
			{"image_to_image_strength", inputDisplay(node, "image_to_image_strength")},
			{"denoise", inputDisplay(node, "denoise_strength")},
		}
	}
	return nil
}

// resolveSeed reads a KSampler's seed input. An indirect reference is
// followed exactly one hop: when the target is a "Seed Everywhere" node its
// own seed input is reported, any other target yields "N/A". Direct scalar
// seeds are reported as-is.
func resolveSeed(graph *graphapi.WorkflowGraph, sampler *graphapi.WorkflowNode) string {
	v, ok := sampler.Input("seed")
	if !ok {
		return "N/A"
	}
	ref := v.Ref()
	if ref == nil {
		return fmt.Sprintf("%v", v.Raw())
	}
	target, ok := graph.ResolveRef(ref)
	if !ok || target.ClassType != "Seed Everywhere" {
		return "N/A"
	}
	return inputDisplay(target, "seed")
}

// componentFields accumulates fields for one auxiliary component family.
// Fields keep the order they were first set in; later nodes may overwrite a
// value without reordering it.
type componentFields struct {
	keys   []string
	values map[string]string
}

func (c *componentFields) set(node *graphapi.WorkflowNode, field, input string) {
	if c.values == nil {
		c.values = make(map[string]string)
	}
	if _, exists := c.values[field]; !exists {
		c.keys = append(c.keys, field)
	}
	c.values[field] = inputDisplay(node, input)
}

func (c *componentFields) lines(title string) []string {
	if len(c.keys) == 0 {
		return nil
	}
	lines := []string{fmt.Sprintf("\n--- %s ---", title)}
	for _, k := range c.keys {
		lines = append(lines, fmt.Sprintf("%s: %s", titleCase(k), c.values[k]))
	}
	return lines
}

// componentSection reports auxiliary adapters: ControlNet related nodes and
// IPAdapter related nodes, each merged into one flat record per family.
func componentSection(graph *graphapi.WorkflowGraph) []string {
	var controlnet componentFields
	var ipadapter componentFields

	for _, id := range graph.NodeIDs() {
		node, _ := graph.Node(id)
		switch node.ClassType {
		case "LoadFluxControlNet":
			controlnet.set(node, "model_name", "model_name")
			controlnet.set(node, "controlnet_path", "controlnet_path")
		case "ApplyFluxControlNet":
			controlnet.set(node, "strength", "strength")
		case "CannyEdgePreprocessor":
			controlnet.set(node, "low_threshold", "low_threshold")
			controlnet.set(node, "high_threshold", "high_threshold")
			controlnet.set(node, "resolution", "resolution")
		}
	}

	for _, id := range graph.NodeIDs() {
		node, _ := graph.Node(id)
		switch node.ClassType {
		case "LoadFluxIPAdapter":
			// the upstream node spells its input "ipadatper"
			ipadapter.set(node, "adapter", "ipadatper")
			ipadapter.set(node, "clip_vision", "clip_vision")
			ipadapter.set(node, "provider", "provider")
		case "ApplyFluxIPAdapter":
			ipadapter.set(node, "ip_scale", "ip_scale")
		}
	}

	var lines []string
	lines = append(lines, controlnet.lines("ControlNet Details")...)
	lines = append(lines, ipadapter.lines("IPAdapter Details")...)
	return lines
}
