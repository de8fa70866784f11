// Package extract derives technical metadata from media content: image
// resolution, video duration and glTF model statistics. All probes are
// best effort; failures report zero values so uploads never block on a
// probe.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/qmuntal/gltf"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Extractor probes media content. The zero value is not usable; call New.
type Extractor struct {
	log *slog.Logger

	// ffprobePath overrides the binary resolved from PATH.
	ffprobePath string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.log = logger }
}

// WithFFprobe sets an explicit ffprobe binary path.
func WithFFprobe(path string) Option {
	return func(e *Extractor) { e.ffprobePath = path }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{log: slog.Default(), ffprobePath: "ffprobe"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ImageResolution decodes just the image header and returns "WxH", or ""
// when the content is not a decodable image.
func (e *Extractor) ImageResolution(ctx context.Context, r io.Reader) string {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		e.log.DebugContext(ctx, "image probe failed", "error", err)
		return ""
	}
	e.log.DebugContext(ctx, "image probed", "format", format, "width", cfg.Width, "height", cfg.Height)
	return fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
}

// VideoDuration runs ffprobe over the content and returns the container
// duration. ok is false when ffprobe is unavailable or the content cannot
// be parsed.
func (e *Extractor) VideoDuration(ctx context.Context, r io.Reader) (time.Duration, bool) {
	bin, err := exec.LookPath(e.ffprobePath)
	if err != nil {
		e.log.DebugContext(ctx, "ffprobe not on PATH, skipping duration probe")
		return 0, false
	}

	// ffprobe needs a seekable input; spool to a temp file.
	tmp, err := os.CreateTemp("", "probe-*")
	if err != nil {
		return 0, false
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := io.Copy(tmp, r); err != nil {
		return 0, false
	}

	out, err := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		tmp.Name(),
	).Output()
	if err != nil {
		e.log.DebugContext(ctx, "ffprobe failed", "error", err)
		return 0, false
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// ModelStats decodes a binary glTF document and reports its triangle count
// and the extents of the union of primitive bounding boxes as
// "X.XxY.XxZ.X". ok is false when the content is not a readable glTF.
func (e *Extractor) ModelStats(ctx context.Context, r io.Reader) (int64, string, bool) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, "", false
	}
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		e.log.DebugContext(ctx, "gltf probe failed", "error", err)
		return 0, "", false
	}

	var (
		triangles int64
		min       = [3]float64{}
		max       = [3]float64{}
		hasBounds bool
	)
	for _, mesh := range doc.Meshes {
		for _, prim := range mesh.Primitives {
			if prim.Indices != nil && int(*prim.Indices) < len(doc.Accessors) {
				triangles += int64(doc.Accessors[*prim.Indices].Count) / 3
			} else if posIdx, ok := prim.Attributes[gltf.POSITION]; ok && int(posIdx) < len(doc.Accessors) {
				triangles += int64(doc.Accessors[posIdx].Count) / 3
			}
			posIdx, ok := prim.Attributes[gltf.POSITION]
			if !ok || int(posIdx) >= len(doc.Accessors) {
				continue
			}
			acc := doc.Accessors[posIdx]
			if len(acc.Min) < 3 || len(acc.Max) < 3 {
				continue
			}
			for i := 0; i < 3; i++ {
				lo, hi := float64(acc.Min[i]), float64(acc.Max[i])
				if !hasBounds {
					min[i], max[i] = lo, hi
					continue
				}
				if lo < min[i] {
					min[i] = lo
				}
				if hi > max[i] {
					max[i] = hi
				}
			}
			hasBounds = true
		}
	}

	bbox := ""
	if hasBounds {
		bbox = fmt.Sprintf("%.1fx%.1fx%.1f", max[0]-min[0], max[1]-min[1], max[2]-min[2])
	}
	return triangles, bbox, true
}
