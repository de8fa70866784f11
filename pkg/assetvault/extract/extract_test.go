package extract

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageResolution(t *testing.T) {
	e := New()
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 640, 480))))
	assert.Equal(t, "640x480", e.ImageResolution(ctx, &buf))

	assert.Equal(t, "", e.ImageResolution(ctx, strings.NewReader("not an image")))
}

func TestVideoDurationWithoutProbe(t *testing.T) {
	e := New(WithFFprobe("definitely-not-a-real-binary"))
	_, ok := e.VideoDuration(context.Background(), strings.NewReader("bytes"))
	assert.False(t, ok)
}

func TestModelStatsRejectsGarbage(t *testing.T) {
	e := New()
	_, _, ok := e.ModelStats(context.Background(), strings.NewReader("not a gltf document"))
	assert.False(t, ok)
}
