package assetvault

import (
	"path"
	"strings"
)

// ClassifierConfig maps file extensions (with leading dot, lower case) to
// media kinds. Zero-value slices fall back to the defaults.
type ClassifierConfig struct {
	ImageExts []string
	VideoExts []string
	PDFExts   []string
	ModelExts []string
}

// DefaultClassifierConfig returns the stock extension tables.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		ImageExts: []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp", ".tiff", ".tif"},
		VideoExts: []string{".mp4", ".mov", ".m4v", ".avi", ".mkv", ".webm"},
		PDFExts:   []string{".pdf"},
		ModelExts: []string{".glb", ".gltf"},
	}
}

// Classifier assigns a Kind to a file from its name and, when the
// extension is unknown, its MIME type.
type Classifier struct {
	byExt map[string]Kind
}

// NewClassifier builds a Classifier from cfg. Empty tables in cfg are
// filled from DefaultClassifierConfig.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	def := DefaultClassifierConfig()
	if len(cfg.ImageExts) == 0 {
		cfg.ImageExts = def.ImageExts
	}
	if len(cfg.VideoExts) == 0 {
		cfg.VideoExts = def.VideoExts
	}
	if len(cfg.PDFExts) == 0 {
		cfg.PDFExts = def.PDFExts
	}
	if len(cfg.ModelExts) == 0 {
		cfg.ModelExts = def.ModelExts
	}
	byExt := make(map[string]Kind)
	for _, e := range cfg.ImageExts {
		byExt[strings.ToLower(e)] = KindImage
	}
	for _, e := range cfg.VideoExts {
		byExt[strings.ToLower(e)] = KindVideo
	}
	for _, e := range cfg.PDFExts {
		byExt[strings.ToLower(e)] = KindPDF
	}
	for _, e := range cfg.ModelExts {
		byExt[strings.ToLower(e)] = KindModel
	}
	return &Classifier{byExt: byExt}
}

// Classify returns the Kind for a file name, consulting the MIME type only
// when the extension is not in the tables. Unknown files are KindOther.
func (c *Classifier) Classify(filename, mimeType string) Kind {
	ext := strings.ToLower(path.Ext(filename))
	if k, ok := c.byExt[ext]; ok {
		return k
	}
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	case mt == "application/pdf":
		return KindPDF
	case mt == "model/gltf-binary" || mt == "model/gltf+json":
		return KindModel
	}
	return KindOther
}

// Uploadable reports whether a file may be uploaded at all. Only images,
// videos and binary glTF models are accepted; everything else is refused
// with ErrUnsupportedType by the service.
func (c *Classifier) Uploadable(filename, mimeType string) bool {
	switch c.Classify(filename, mimeType) {
	case KindImage, KindVideo:
		return true
	case KindModel:
		return strings.HasSuffix(strings.ToLower(filename), ".glb")
	}
	return false
}
