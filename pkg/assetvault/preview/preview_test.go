package preview

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetvault/asset-vault/pkg/assetvault"
	storagememory "github.com/assetvault/asset-vault/pkg/assetvault/storage/memory"
)

func storePNG(t *testing.T, store assetvault.Store, key string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	_, err := store.Save(context.Background(), key, &buf)
	require.NoError(t, err)
}

func decodeStored(t *testing.T, store assetvault.Store, key string) image.Image {
	t.Helper()
	rc, err := store.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	img, _, err := image.Decode(rc)
	require.NoError(t, err)
	return img
}

func TestBuildImagePreviews(t *testing.T) {
	store := storagememory.New()
	ctx := context.Background()
	storePNG(t, store, "image/1/big.png", 2000, 1000)
	a := &assetvault.Asset{ID: 7, FileName: "big.png", FileLocation: "image/1/big.png"}

	b := New()
	p, err := b.Build(ctx, a, assetvault.KindImage, store)
	require.NoError(t, err)
	assert.Equal(t, "thumbnails/7.jpg", p.ThumbnailKey)
	assert.Equal(t, "previews/7.jpg", p.PreviewKey)

	thumb := decodeStored(t, store, p.ThumbnailKey)
	assert.Equal(t, 384, thumb.Bounds().Dx())
	assert.Equal(t, 192, thumb.Bounds().Dy())

	prev := decodeStored(t, store, p.PreviewKey)
	assert.Equal(t, 1280, prev.Bounds().Dx())
	assert.Equal(t, 640, prev.Bounds().Dy())
}

func TestBuildImageUsesCachedArtifacts(t *testing.T) {
	store := storagememory.New()
	ctx := context.Background()
	storePNG(t, store, "image/1/big.png", 800, 800)
	a := &assetvault.Asset{ID: 3, FileName: "big.png", FileLocation: "image/1/big.png"}

	b := New()
	first, err := b.Build(ctx, a, assetvault.KindImage, store)
	require.NoError(t, err)

	// The original disappears; the cached artifacts still answer.
	require.NoError(t, store.Delete(ctx, "image/1/big.png"))
	second, err := b.Build(ctx, a, assetvault.KindImage, store)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildImageFallsBackOnUndecodableContent(t *testing.T) {
	store := storagememory.New()
	ctx := context.Background()
	_, err := store.Save(ctx, "image/1/fake.png", strings.NewReader("not an image"))
	require.NoError(t, err)
	a := &assetvault.Asset{ID: 9, FileName: "fake.png", FileLocation: "image/1/fake.png"}

	p, err := New().Build(ctx, a, assetvault.KindImage, store)
	require.NoError(t, err)
	assert.Equal(t, "image/1/fake.png", p.PreviewKey)
	assert.Equal(t, "image/1/fake.png", p.ThumbnailKey)
}

func TestBuildSmallImageIsNotUpscaled(t *testing.T) {
	store := storagememory.New()
	ctx := context.Background()
	storePNG(t, store, "image/1/small.png", 100, 50)
	a := &assetvault.Asset{ID: 4, FileName: "small.png", FileLocation: "image/1/small.png"}

	p, err := New().Build(ctx, a, assetvault.KindImage, store)
	require.NoError(t, err)
	thumb := decodeStored(t, store, p.ThumbnailKey)
	assert.Equal(t, 100, thumb.Bounds().Dx())
	assert.Equal(t, 50, thumb.Bounds().Dy())
}

func TestBuildVideoWithoutFFmpegServesOriginal(t *testing.T) {
	store := storagememory.New()
	ctx := context.Background()
	_, err := store.Save(ctx, "video/1/clip.mp4", strings.NewReader("bytes"))
	require.NoError(t, err)
	a := &assetvault.Asset{ID: 5, FileName: "clip.mp4", FileLocation: "video/1/clip.mp4"}

	b := New(WithFFmpeg("definitely-not-a-real-binary"))
	p, err := b.Build(ctx, a, assetvault.KindVideo, store)
	require.NoError(t, err)
	assert.Equal(t, "video/1/clip.mp4", p.PreviewKey)
	assert.Empty(t, p.ThumbnailKey)
}

func TestBuildPDFWithoutPdftoppmServesOriginal(t *testing.T) {
	store := storagememory.New()
	ctx := context.Background()
	_, err := store.Save(ctx, "pdf/1/doc.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	a := &assetvault.Asset{ID: 6, FileName: "doc.pdf", FileLocation: "pdf/1/doc.pdf"}

	b := New(WithPdftoppm("definitely-not-a-real-binary"))
	p, err := b.Build(ctx, a, assetvault.KindPDF, store)
	require.NoError(t, err)
	assert.Equal(t, "pdf/1/doc.pdf", p.PreviewKey)
}

func TestBuildOtherKindServesOriginal(t *testing.T) {
	store := storagememory.New()
	a := &assetvault.Asset{ID: 8, FileName: "scene.glb", FileLocation: "model/1/scene.glb"}

	p, err := New().Build(context.Background(), a, assetvault.KindModel, store)
	require.NoError(t, err)
	assert.Equal(t, "model/1/scene.glb", p.PreviewKey)
	assert.Empty(t, p.ThumbnailKey)
}
