// Metareport extracts the generation metadata that ComfyUI and compatible
// tools embed in their output PNG files and reformats it into human-readable
// reports. The loader package resolves and decodes an image while pulling the
// embedded workflow graph out of its text chunks (or a sidecar JSON file),
// and the report package walks that graph by node class type to describe the
// model, prompts, sampler settings and auxiliary components that produced
// the image.
package metareport
