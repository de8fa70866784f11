// Package preview builds derived preview artifacts for assets: scaled
// JPEG thumbnails and previews for images, a first-page render for PDFs
// and a grabbed frame for videos. Artifacts are written back into the
// asset store keyed by record id, so a second request for the same asset
// serves the cached artifact.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/assetvault/asset-vault/pkg/assetvault"
)

const (
	thumbnailEdge = 384
	previewEdge   = 1280
	jpegQuality   = 85
)

// Builder implements assetvault.PreviewBuilder.
type Builder struct {
	log *slog.Logger

	ffmpegPath   string
	pdftoppmPath string
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.log = logger }
}

// WithFFmpeg sets an explicit ffmpeg binary path.
func WithFFmpeg(path string) Option {
	return func(b *Builder) { b.ffmpegPath = path }
}

// WithPdftoppm sets an explicit pdftoppm binary path.
func WithPdftoppm(path string) Option {
	return func(b *Builder) { b.pdftoppmPath = path }
}

// New creates a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{log: slog.Default(), ffmpegPath: "ffmpeg", pdftoppmPath: "pdftoppm"}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces preview artifacts for the asset, reusing cached ones.
// When an artifact cannot be produced the original object key is answered
// instead; Build only fails when the store itself does.
func (b *Builder) Build(ctx context.Context, a *assetvault.Asset, kind assetvault.Kind, store assetvault.Store) (*assetvault.Preview, error) {
	switch kind {
	case assetvault.KindImage:
		return b.buildImage(ctx, a, store)
	case assetvault.KindPDF:
		return b.buildPDF(ctx, a, store)
	case assetvault.KindVideo:
		return b.buildVideo(ctx, a, store)
	default:
		return &assetvault.Preview{Kind: kind, PreviewKey: a.FileLocation}, nil
	}
}

func (b *Builder) buildImage(ctx context.Context, a *assetvault.Asset, store assetvault.Store) (*assetvault.Preview, error) {
	thumbKey := assetvault.ThumbnailKey(a.ID)
	previewKey := assetvault.PreviewKey(a.ID)

	haveThumb, err := store.Exists(ctx, thumbKey)
	if err != nil {
		return nil, err
	}
	havePreview, err := store.Exists(ctx, previewKey)
	if err != nil {
		return nil, err
	}
	if haveThumb && havePreview {
		return &assetvault.Preview{Kind: assetvault.KindImage, ThumbnailKey: thumbKey, PreviewKey: previewKey}, nil
	}

	src, err := b.decodeOriginal(ctx, a, store)
	if err != nil {
		b.log.WarnContext(ctx, "image preview decode failed", "id", a.ID, "error", err)
		return &assetvault.Preview{Kind: assetvault.KindImage, ThumbnailKey: a.FileLocation, PreviewKey: a.FileLocation}, nil
	}

	if !haveThumb {
		if thumbKey, err = b.saveScaled(ctx, store, thumbKey, src, thumbnailEdge); err != nil {
			return nil, err
		}
	}
	if !havePreview {
		if previewKey, err = b.saveScaled(ctx, store, previewKey, src, previewEdge); err != nil {
			return nil, err
		}
	}
	return &assetvault.Preview{Kind: assetvault.KindImage, ThumbnailKey: thumbKey, PreviewKey: previewKey}, nil
}

func (b *Builder) decodeOriginal(ctx context.Context, a *assetvault.Asset, store assetvault.Store) (image.Image, error) {
	rc, err := store.Open(ctx, a.FileLocation)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, _, err := image.Decode(rc)
	return img, err
}

func (b *Builder) saveScaled(ctx context.Context, store assetvault.Store, key string, src image.Image, maxEdge int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaleToFit(src, maxEdge), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", err
	}
	return store.Save(ctx, key, &buf)
}

// scaleToFit scales src so its longest edge is at most maxEdge, never
// upscaling.
func scaleToFit(src image.Image, maxEdge int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxEdge && h <= maxEdge {
		return src
	}
	var nw, nh int
	if w >= h {
		nw = maxEdge
		nh = h * maxEdge / w
	} else {
		nh = maxEdge
		nw = w * maxEdge / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func (b *Builder) buildPDF(ctx context.Context, a *assetvault.Asset, store assetvault.Store) (*assetvault.Preview, error) {
	previewKey := assetvault.PreviewKey(a.ID)
	ok, err := store.Exists(ctx, previewKey)
	if err != nil {
		return nil, err
	}
	if ok {
		return &assetvault.Preview{Kind: assetvault.KindPDF, PreviewKey: previewKey}, nil
	}

	bin, err := exec.LookPath(b.pdftoppmPath)
	if err != nil {
		b.log.DebugContext(ctx, "pdftoppm not on PATH, serving pdf as-is", "id", a.ID)
		return &assetvault.Preview{Kind: assetvault.KindPDF, PreviewKey: a.FileLocation}, nil
	}

	src, cleanup, err := b.spool(ctx, a, store, ".pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outStem := filepath.Join(filepath.Dir(src), "page")
	cmd := exec.CommandContext(ctx, bin, "-jpeg", "-f", "1", "-l", "1", "-r", "150", "-singlefile", src, outStem)
	if out, err := cmd.CombinedOutput(); err != nil {
		b.log.WarnContext(ctx, "pdf render failed", "id", a.ID, "error", err, "output", string(out))
		return &assetvault.Preview{Kind: assetvault.KindPDF, PreviewKey: a.FileLocation}, nil
	}
	key, err := b.saveFile(ctx, store, previewKey, outStem+".jpg")
	if err != nil {
		return nil, err
	}
	return &assetvault.Preview{Kind: assetvault.KindPDF, PreviewKey: key}, nil
}

func (b *Builder) buildVideo(ctx context.Context, a *assetvault.Asset, store assetvault.Store) (*assetvault.Preview, error) {
	previewKey := assetvault.PreviewKey(a.ID)
	ok, err := store.Exists(ctx, previewKey)
	if err != nil {
		return nil, err
	}
	if ok {
		return &assetvault.Preview{Kind: assetvault.KindVideo, PreviewKey: previewKey}, nil
	}

	bin, err := exec.LookPath(b.ffmpegPath)
	if err != nil {
		b.log.DebugContext(ctx, "ffmpeg not on PATH, serving video as-is", "id", a.ID)
		return &assetvault.Preview{Kind: assetvault.KindVideo, PreviewKey: a.FileLocation}, nil
	}

	src, cleanup, err := b.spool(ctx, a, store, filepath.Ext(a.FileName))
	if err != nil {
		return nil, err
	}
	defer cleanup()

	frame := filepath.Join(filepath.Dir(src), "frame.jpg")
	cmd := exec.CommandContext(ctx, bin,
		"-ss", "0.5", "-i", src, "-frames:v", "1", "-q:v", "2", "-y", frame)
	if out, err := cmd.CombinedOutput(); err != nil {
		b.log.WarnContext(ctx, "video frame grab failed", "id", a.ID, "error", err, "output", string(out))
		return &assetvault.Preview{Kind: assetvault.KindVideo, PreviewKey: a.FileLocation}, nil
	}
	key, err := b.saveFile(ctx, store, previewKey, frame)
	if err != nil {
		return nil, err
	}
	return &assetvault.Preview{Kind: assetvault.KindVideo, PreviewKey: key}, nil
}

// spool copies the stored object into a fresh temp directory so external
// tools can read it by path. The returned cleanup removes the directory.
func (b *Builder) spool(ctx context.Context, a *assetvault.Asset, store assetvault.Store, ext string) (string, func(), error) {
	rc, err := store.Open(ctx, a.FileLocation)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	dir, err := os.MkdirTemp("", "preview-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	p := filepath.Join(dir, fmt.Sprintf("src%s", ext))
	f, err := os.Create(p)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	defer f.Close()
	if _, err := io.Copy(f, rc); err != nil {
		cleanup()
		return "", nil, err
	}
	return p, cleanup, nil
}

func (b *Builder) saveFile(ctx context.Context, store assetvault.Store, key, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return store.Save(ctx, key, f)
}
