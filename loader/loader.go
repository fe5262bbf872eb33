package loader

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata is the mapping attached to a loaded image. It is never nil; a
// failed load carries an "error" key and an image with no recognizable
// metadata carries an "info" key, so consumers can always attempt lookups.
type Metadata = map[string]any

// NoWorkflowInfo is the sentinel stored under "info" when an image carries
// no recognizable workflow metadata. Its presence triggers the sidecar
// fallback.
const NoWorkflowInfo = "No workflow metadata found"

// SourceKind selects how the loader resolves a concrete image file.
type SourceKind string

const (
	// SourceMostRecent picks the most recently modified PNG under the
	// configured output directory tree.
	SourceMostRecent SourceKind = "most_recent"
	// SourceFile resolves an explicitly named file against the configured
	// input directory.
	SourceFile SourceKind = "file"
)

// ImageSource describes which image to load.
type ImageSource struct {
	Kind SourceKind
	// File is the logical file name for SourceFile mode.
	File string
}

// Config carries the host supplied directory conventions and decode options.
type Config struct {
	// InputDir is the root for operator supplied input files.
	InputDir string
	// OutputDir is the root for previously generated output files, scanned
	// recursively in most-recent mode.
	OutputDir string
	// ExcludedFormats lists container formats that cannot carry a
	// multi-frame batch. Defaults to ["mpo"].
	ExcludedFormats []string
}

// DefaultExcludedFormats is the default multi-frame incompatible set.
var DefaultExcludedFormats = []string{"mpo"}

// Loader resolves, decodes and extracts metadata from generated images.
// Load never fails outward: every failure degrades to a placeholder image
// plus error metadata.
type Loader struct {
	cfg Config
}

// New creates a Loader for the given directory configuration.
func New(cfg Config) *Loader {
	if cfg.ExcludedFormats == nil {
		cfg.ExcludedFormats = DefaultExcludedFormats
	}
	return &Loader{cfg: cfg}
}

// Load resolves the source to a concrete file, decodes it and extracts its
// embedded metadata.
func (l *Loader) Load(source ImageSource) (*ImageTensor, Metadata) {
	switch source.Kind {
	case SourceMostRecent:
		path, err := l.MostRecentPNG()
		if err != nil {
			slog.Info("no image to load", "dir", l.cfg.OutputDir, "error", err)
			return errorOutput(err.Error())
		}
		slog.Debug("loading most recent image", "path", path)
		return l.processImageFile(path)

	case SourceFile:
		if source.File == "" {
			return errorOutput("No image file specified")
		}
		path := filepath.Join(l.cfg.InputDir, source.File)
		slog.Debug("loading specified image", "path", path)
		return l.processImageFile(path)
	}
	return errorOutput(fmt.Sprintf("unknown source kind: %s", source.Kind))
}

// PNGFile is one entry of a PNG inventory.
type PNGFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ListPNGFiles recursively collects the PNG files (case-insensitive suffix
// match) under root.
func ListPNGFiles(root string) ([]PNGFile, error) {
	var files []PNGFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".png") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, PNGFile{Path: path, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// MostRecentPNG returns the PNG with the greatest modification time under
// the configured output directory.
func (l *Loader) MostRecentPNG() (string, error) {
	files, err := ListPNGFiles(l.cfg.OutputDir)
	if err != nil {
		return "", fmt.Errorf("error scanning output directory: %w", err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no PNG files found in output directory")
	}
	best := files[0]
	for _, f := range files[1:] {
		if f.ModTime.After(best.ModTime) {
			best = f
		}
	}
	return best.Path, nil
}

func (l *Loader) processImageFile(path string) (*ImageTensor, Metadata) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("error reading image", "path", path, "error", err)
		return errorOutput(fmt.Sprintf("Error processing image: %v", err))
	}

	metadata := l.extractMetadata(path, data)

	img, err := decodeImage(data, l.cfg.ExcludedFormats)
	if err != nil {
		slog.Error("no valid image frames loaded", "path", path, "error", err)
		return errorOutput("Failed to load image frames")
	}

	// the metadata always records where it came from
	metadata["image_path"] = path
	metadata["image_filename"] = filepath.Base(path)

	return img, metadata
}

// extractMetadata pulls workflow metadata out of the image's text chunks,
// falling back to a same-named sidecar JSON file when nothing is embedded.
func (l *Loader) extractMetadata(path string, data []byte) Metadata {
	raw, err := ScanPNGText(bytes.NewReader(data))
	if err != nil {
		slog.Debug("no PNG text chunks", "path", path, "error", err)
		raw = nil
	}
	metadata := parseTextChunks(raw)

	if metadata["info"] == NoWorkflowInfo {
		sidecar := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
		if replacement, ok := loadSidecar(sidecar); ok {
			metadata = replacement
		}
	}
	return metadata
}

// parseTextChunks recognizes the embedded metadata keys: "prompt" and
// "workflow" hold JSON encoded graphs (kept as raw strings when they fail to
// parse), "parameters" is free-text copied verbatim. When none are present a
// sentinel mapping is returned instead of an empty one.
func parseTextChunks(raw map[string]string) Metadata {
	metadata := Metadata{}
	for key, value := range raw {
		switch key {
		case "prompt", "workflow":
			parsed, err := decodeJSON([]byte(value))
			if err != nil {
				slog.Warn("metadata value is not valid JSON, keeping raw string", "key", key, "error", err)
				metadata[key] = value
			} else {
				metadata[key] = parsed
			}
		case "parameters":
			metadata[key] = value
		}
	}
	if len(metadata) == 0 {
		return Metadata{"info": NoWorkflowInfo}
	}
	return metadata
}

// loadSidecar reads a sidecar metadata file. A parse failure is logged and
// swallowed; the caller keeps whatever metadata it already had.
func loadSidecar(path string) (Metadata, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	parsed, err := decodeJSON(data)
	if err != nil {
		slog.Warn("error loading sidecar JSON", "path", path, "error", err)
		return nil, false
	}
	metadata, ok := parsed.(map[string]any)
	if !ok {
		slog.Warn("sidecar JSON is not an object", "path", path)
		return nil, false
	}
	slog.Debug("loaded metadata from sidecar file", "path", path)
	return metadata, true
}

// decodeJSON parses JSON keeping numeric literals as json.Number, so large
// seed values survive the round trip through the metadata mapping.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func errorOutput(message string) (*ImageTensor, Metadata) {
	return NewPlaceholderImage(), Metadata{"error": message}
}

// IsChanged computes the change-detection signal the host uses to decide
// whether a cached result may be reused. Most-recent mode depends on
// external filesystem state, so every call returns a fresh value (the
// never-equal analog of a NaN sentinel). File mode hashes the file bytes;
// an unopenable file degrades to the always-changed signal.
func (l *Loader) IsChanged(source ImageSource) string {
	if source.Kind == SourceFile && source.File != "" {
		path := filepath.Join(l.cfg.InputDir, source.File)
		f, err := os.Open(path)
		if err != nil {
			return alwaysChanged()
		}
		defer f.Close()

		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return alwaysChanged()
		}
		return hex.EncodeToString(h.Sum(nil))
	}
	return alwaysChanged()
}

func alwaysChanged() string {
	return uuid.New().String()
}
