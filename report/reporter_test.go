package report

import (
	"strings"
	"testing"
)

func reportFor(t *testing.T, prompt string) string {
	t.Helper()
	return New().Report(map[string]any{"prompt": prompt})
}

func TestReportEmptyMetadata(t *testing.T) {
	out := New().Report(map[string]any{})
	if !strings.HasPrefix(out, "Metadata report: No valid metadata was provided.") {
		t.Errorf("Expected the fixed no-metadata message, got:\n%s", out)
	}

	out = New().Report(nil)
	if !strings.HasPrefix(out, "Metadata report: No valid metadata was provided.") {
		t.Errorf("Expected the fixed no-metadata message for nil metadata, got:\n%s", out)
	}
}

func TestReportFlatMetadata(t *testing.T) {
	metadata := map[string]any{
		"parameters":     "steps: 20, cfg: 7",
		"image_filename": "img.png",
		"tags":           []any{"a", "b", "c", "d", "e", "f", "g"},
		"extra":          map[string]any{"k": "v"},
	}
	out := New().Report(metadata)

	if !strings.HasPrefix(out, "--- Image Metadata ---") {
		t.Fatalf("Expected flat metadata header, got:\n%s", out)
	}
	if !strings.Contains(out, "Image Filename: img.png") {
		t.Errorf("Expected title-cased key line, got:\n%s", out)
	}
	if !strings.Contains(out, "Tags: [a, b, c, d, e, ... ]") {
		t.Errorf("Expected long sequence to be elided after 5 elements, got:\n%s", out)
	}
	if !strings.Contains(out, "Extra:\n{\n  \"k\": \"v\"\n}") {
		t.Errorf("Expected mapping value pretty-printed as JSON, got:\n%s", out)
	}
}

func TestReportModelLine(t *testing.T) {
	out := reportFor(t, `{
		"1": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "foo.safetensors"}}
	}`)

	if !strings.HasPrefix(out, "--- Workflow Metadata Report ---") {
		t.Fatalf("Expected report header, got:\n%s", out)
	}
	if !strings.Contains(out, "Model: foo.safetensors") {
		t.Errorf("Expected model line, got:\n%s", out)
	}
}

func TestReportModelMissing(t *testing.T) {
	out := reportFor(t, `{
		"1": {"class_type": "SaveImage", "inputs": {}}
	}`)
	if !strings.Contains(out, "Model: N/A") {
		t.Errorf("Expected Model: N/A without a checkpoint loader, got:\n%s", out)
	}
	if strings.Contains(out, "--- Sampler Details ---") {
		t.Errorf("Sampler section should be omitted without a sampler, got:\n%s", out)
	}
	if !strings.Contains(out, "\nNegative Prompt:\n  (Empty)") {
		t.Errorf("Negative prompt placeholder should always be present, got:\n%s", out)
	}
}

func TestReportLorasFirstNodeWins(t *testing.T) {
	out := reportFor(t, `{
		"1": {"class_type": "Power Lora Loader (rgthree)", "inputs": {
			"lora_1": {"on": true, "lora": "first.safetensors", "strength": 0.8},
			"lora_2": {"on": false, "lora": "disabled.safetensors", "strength": 1.0}
		}},
		"2": {"class_type": "Power Lora Loader (rgthree)", "inputs": {
			"lora_1": {"on": true, "lora": "second.safetensors", "strength": 0.5}
		}}
	}`)

	if !strings.Contains(out, "LoRAs:") {
		t.Fatalf("Expected LoRAs section, got:\n%s", out)
	}
	if !strings.Contains(out, "  - first.safetensors (Model: 0.8, CLIP: 0.8)") {
		t.Errorf("Expected first node's enabled LoRA with shared strength, got:\n%s", out)
	}
	if strings.Contains(out, "disabled.safetensors") {
		t.Errorf("Disabled LoRA entries should be skipped, got:\n%s", out)
	}
	if strings.Contains(out, "second.safetensors") {
		t.Errorf("Only the first LoRA loader node should contribute, got:\n%s", out)
	}
}

func TestReportResolution(t *testing.T) {
	out := reportFor(t, `{
		"1": {"class_type": "CascadeResolutions", "inputs": {"size_selected": "1024x1024 (1.0)"}}
	}`)
	if !strings.Contains(out, "Resolution: 1024x1024 (1.0)") {
		t.Errorf("Expected CascadeResolutions size, got:\n%s", out)
	}

	out = reportFor(t, `{
		"1": {"class_type": "ImageScale", "inputs": {"width": 1024, "height": 768}}
	}`)
	if !strings.Contains(out, "Resolution: 1024x768") {
		t.Errorf("Expected ImageScale resolution, got:\n%s", out)
	}

	out = reportFor(t, `{
		"1": {"class_type": "ImageScale", "inputs": {"width": 0, "height": 768}}
	}`)
	if strings.Contains(out, "Resolution:") {
		t.Errorf("Zero width should omit the resolution section, got:\n%s", out)
	}
}

func TestReportPrompts(t *testing.T) {
	out := reportFor(t, `{
		"1": {"class_type": "CLIPTextEncodeFlux", "inputs": {"clip_l": "", "t5xxl": "unused negative"}},
		"2": {"class_type": "CLIPTextEncodeFlux", "inputs": {"clip_l": "a red fox", "t5xxl": "a red fox in the snow"}}
	}`)

	if !strings.Contains(out, "\nPositive Prompt:\n  a red fox") {
		t.Errorf("Expected the first non-empty clip_l as positive prompt, got:\n%s", out)
	}
	if !strings.Contains(out, "\nT5XXL Prompt:\n  a red fox in the snow") {
		t.Errorf("Expected the matching t5xxl prompt, got:\n%s", out)
	}
}

func TestReportPromptsDefault(t *testing.T) {
	out := reportFor(t, `{
		"1": {"class_type": "SaveImage", "inputs": {}}
	}`)
	if !strings.Contains(out, "\nPositive Prompt:\n  N/A") {
		t.Errorf("Expected N/A positive prompt, got:\n%s", out)
	}
	if strings.Contains(out, "T5XXL Prompt:") {
		t.Errorf("T5XXL line should be omitted without a prompt node, got:\n%s", out)
	}
}

func TestReportKSamplerSeedResolution(t *testing.T) {
	out := reportFor(t, `{
		"3": {"class_type": "KSampler", "inputs": {
			"seed": ["5", 0],
			"steps": 20,
			"cfg": 7.5,
			"sampler_name": "euler",
			"scheduler": "normal",
			"denoise": 1.0
		}},
		"5": {"class_type": "Seed Everywhere", "inputs": {"seed": 42}}
	}`)

	if !strings.Contains(out, "--- Sampler Details ---") {
		t.Fatalf("Expected sampler section, got:\n%s", out)
	}
	if !strings.Contains(out, "Seed: 42") {
		t.Errorf("Expected seed resolved through Seed Everywhere, got:\n%s", out)
	}
	if !strings.Contains(out, "Steps: 20") || !strings.Contains(out, "Cfg: 7.5") {
		t.Errorf("Expected direct sampler fields, got:\n%s", out)
	}
	if !strings.Contains(out, "Sampler Name: euler") || !strings.Contains(out, "Scheduler: normal") {
		t.Errorf("Expected sampler name and scheduler, got:\n%s", out)
	}
}

func TestReportKSamplerSeedUnresolved(t *testing.T) {
	out := reportFor(t, `{
		"3": {"class_type": "KSampler", "inputs": {"seed": ["9", 0], "steps": 10}},
		"9": {"class_type": "RandomNoise", "inputs": {"noise_seed": 7}}
	}`)
	if !strings.Contains(out, "Seed: N/A") {
		t.Errorf("Reference to a non Seed Everywhere node should report N/A, got:\n%s", out)
	}
}

func TestReportKSamplerDirectSeed(t *testing.T) {
	out := reportFor(t, `{
		"3": {"class_type": "KSampler", "inputs": {"seed": 123456789012345678, "steps": 10}}
	}`)
	if !strings.Contains(out, "Seed: 123456789012345678") {
		t.Errorf("Expected large direct seed preserved exactly, got:\n%s", out)
	}
}

func TestReportXlabsSamplerFallback(t *testing.T) {
	out := reportFor(t, `{
		"4": {"class_type": "XlabsSampler", "inputs": {
			"noise_seed": 99,
			"steps": 25,
			"true_gs": 3.5,
			"timestep_to_start_cfg": 1,
			"image_to_image_strength": 0.75,
			"denoise_strength": 1.0
		}}
	}`)

	if !strings.Contains(out, "--- Sampler Details ---") {
		t.Fatalf("Expected sampler section, got:\n%s", out)
	}
	if !strings.Contains(out, "Seed: 99") {
		t.Errorf("Expected noise_seed mapped to Seed, got:\n%s", out)
	}
	if !strings.Contains(out, "True Gs: 3.5") {
		t.Errorf("Expected true_gs field, got:\n%s", out)
	}
	if !strings.Contains(out, "Denoise: 1.0") {
		t.Errorf("Expected denoise_strength mapped to Denoise, got:\n%s", out)
	}
}

func TestReportAuxiliaryComponents(t *testing.T) {
	out := reportFor(t, `{
		"1": {"class_type": "LoadFluxControlNet", "inputs": {"model_name": "flux-dev", "controlnet_path": "canny.safetensors"}},
		"2": {"class_type": "ApplyFluxControlNet", "inputs": {"strength": 0.7}},
		"3": {"class_type": "CannyEdgePreprocessor", "inputs": {"low_threshold": 100, "high_threshold": 200, "resolution": 512}},
		"4": {"class_type": "LoadFluxIPAdapter", "inputs": {"ipadatper": "ip.safetensors", "clip_vision": "clip.safetensors", "provider": "CPU"}},
		"5": {"class_type": "ApplyFluxIPAdapter", "inputs": {"ip_scale": 0.9}}
	}`)

	if !strings.Contains(out, "--- ControlNet Details ---") {
		t.Fatalf("Expected ControlNet section, got:\n%s", out)
	}
	if !strings.Contains(out, "Model Name: flux-dev") || !strings.Contains(out, "Strength: 0.7") {
		t.Errorf("Expected merged ControlNet fields, got:\n%s", out)
	}
	if !strings.Contains(out, "High Threshold: 200") {
		t.Errorf("Expected preprocessor fields merged into the same record, got:\n%s", out)
	}
	if !strings.Contains(out, "--- IPAdapter Details ---") {
		t.Fatalf("Expected IPAdapter section, got:\n%s", out)
	}
	if !strings.Contains(out, "Adapter: ip.safetensors") || !strings.Contains(out, "Ip Scale: 0.9") {
		t.Errorf("Expected merged IPAdapter fields, got:\n%s", out)
	}
}

func TestReportComponentsOmittedWhenAbsent(t *testing.T) {
	out := reportFor(t, `{
		"1": {"class_type": "SaveImage", "inputs": {}}
	}`)
	if strings.Contains(out, "ControlNet Details") || strings.Contains(out, "IPAdapter Details") {
		t.Errorf("Component sections should be omitted when no nodes match, got:\n%s", out)
	}
}

func TestReportSectionOrder(t *testing.T) {
	out := reportFor(t, `{
		"1": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "m.safetensors"}},
		"2": {"class_type": "CascadeResolutions", "inputs": {"size_selected": "768x768"}},
		"3": {"class_type": "KSampler", "inputs": {"seed": 1, "steps": 5}}
	}`)

	model := strings.Index(out, "Model:")
	resolution := strings.Index(out, "Resolution:")
	positive := strings.Index(out, "Positive Prompt:")
	negative := strings.Index(out, "Negative Prompt:")
	sampler := strings.Index(out, "--- Sampler Details ---")

	if model == -1 || resolution == -1 || positive == -1 || negative == -1 || sampler == -1 {
		t.Fatalf("Missing expected sections in:\n%s", out)
	}
	if !(model < resolution && resolution < positive && positive < negative && negative < sampler) {
		t.Errorf("Sections out of order in:\n%s", out)
	}
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"sampler_name":            "Sampler Name",
		"seed":                    "Seed",
		"timestep_to_start_cfg":   "Timestep To Start Cfg",
		"image_to_image_strength": "Image To Image Strength",
	}
	for in, want := range cases {
		if got := titleCase(in); got != want {
			t.Errorf("titleCase(%q): expected %q, got %q", in, want, got)
		}
	}
}
