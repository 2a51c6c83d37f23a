package image

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDownscaleLargeImage(t *testing.T) {
	data := encodePNG(t, solidImage(800, 400, color.NRGBA{R: 200, A: 255}))

	out := Downscale(data, 200)
	w, h := decodeDims(t, out)
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
}

func TestDownscaleSmallImageUnchanged(t *testing.T) {
	data := encodePNG(t, solidImage(100, 50, color.NRGBA{G: 120, A: 255}))

	out := Downscale(data, 200)
	assert.Equal(t, data, out)
}

func TestDownscaleIdempotent(t *testing.T) {
	data := encodePNG(t, solidImage(500, 500, color.NRGBA{B: 90, A: 255}))

	once := Downscale(data, 128)
	twice := Downscale(once, 128)
	assert.Equal(t, once, twice)
}

func TestDownscaleUndecodableInputPassedThrough(t *testing.T) {
	garbage := []byte("not an image at all")
	assert.Equal(t, garbage, Downscale(garbage, 100))
}

func TestCropToVisibleTightensToContent(t *testing.T) {
	// White canvas with a dark square at (40,40)-(60,60).
	img := solidImage(100, 100, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	for y := 40; y < 60; y++ {
		for x := 40; x < 60; x++ {
			img.Set(x, y, color.NRGBA{R: 30, G: 30, B: 30, A: 255})
		}
	}
	data := encodePNG(t, img)

	out := CropToVisible(data, 245, 10, 5)
	w, h := decodeDims(t, out)
	// 20px of content plus a 5px margin on each side.
	assert.Equal(t, 30, w)
	assert.Equal(t, 30, h)
}

func TestCropToVisibleFullyBackgroundUnchanged(t *testing.T) {
	// Fully transparent: nothing visible, input comes back as-is.
	data := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 50, 50)))

	out := CropToVisible(data, 245, 10, 5)
	assert.Equal(t, data, out)
}

func TestCropToVisibleFlattensTransparency(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	img.Set(10, 10, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	data := encodePNG(t, img)

	out := CropToVisible(data, 245, 10, 0)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	_, _, _, a := decoded.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}
