package image

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	_ "image/gif"  // register gif decoding
	_ "image/jpeg" // register jpeg decoding

	_ "golang.org/x/image/webp" // register webp decoding

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"golang.org/x/image/draw"
	"go.uber.org/zap"
)

// Downscale uniformly scales data so the longer side equals maxSide, when
// either dimension exceeds it. Decode failures return the input unchanged;
// this function never fails outward.
func Downscale(data []byte, maxSide int) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		common.LogWarn("Downscale skipped, image not decodable", zap.Error(err))
		return data
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxSide && h <= maxSide {
		return data
	}

	var nw, nh int
	if w >= h {
		nw = maxSide
		nh = h * maxSide / w
	} else {
		nh = maxSide
		nw = w * maxSide / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		common.LogWarn("Downscale re-encode failed", zap.Error(err))
		return data
	}
	return buf.Bytes()
}

// CropToVisible crops data to the bounding box of its visible content. A
// pixel counts as background when its opacity is below alphaThreshold or all
// of its channels exceed whiteThreshold. The box is expanded by margin pixels
// clipped to the image bounds. A fully background image is returned
// unchanged. The crop is flattened onto a white background and re-encoded.
func CropToVisible(data []byte, whiteThreshold, alphaThreshold, margin int) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		common.LogWarn("Crop skipped, image not decodable", zap.Error(err))
		return data
	}

	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			r8, g8, b8, a8 := int(r>>8), int(g>>8), int(b>>8), int(a>>8)
			if a8 < alphaThreshold {
				continue
			}
			if r8 > whiteThreshold && g8 > whiteThreshold && b8 > whiteThreshold {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < minX || maxY < minY {
		// Nothing visible.
		return data
	}

	minX -= margin
	minY -= margin
	maxX += margin
	maxY += margin
	if minX < bounds.Min.X {
		minX = bounds.Min.X
	}
	if minY < bounds.Min.Y {
		minY = bounds.Min.Y
	}
	if maxX > bounds.Max.X-1 {
		maxX = bounds.Max.X - 1
	}
	if maxY > bounds.Max.Y-1 {
		maxY = bounds.Max.Y - 1
	}

	crop := image.Rect(minX, minY, maxX+1, maxY+1)

	// Flatten onto white, dropping any transparency.
	flat := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, crop.Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, flat); err != nil {
		common.LogWarn("Crop re-encode failed", zap.Error(err))
		return data
	}
	return buf.Bytes()
}

// Refiner produces the hero image for a recipe: background removal followed
// by a tight crop to the visible content.
type Refiner struct {
	config    *config.Config
	segmenter Segmenter
}

// NewRefiner creates a refiner.
func NewRefiner(cfg *config.Config, segmenter Segmenter) *Refiner {
	return &Refiner{
		config:    cfg,
		segmenter: segmenter,
	}
}

// Refine runs the full refinement chain. It degrades instead of failing: a
// step that cannot run leaves the image as the previous step produced it.
func (r *Refiner) Refine(data []byte) []byte {
	if len(data) == 0 {
		return data
	}

	out := Downscale(data, r.config.Image.MaxSide)

	if segmented, err := r.removeBackground(out); err != nil {
		common.LogWarn("Background removal failed, keeping original", zap.Error(err))
	} else {
		out = segmented
	}

	return CropToVisible(out,
		r.config.Image.WhiteThreshold,
		r.config.Image.AlphaThreshold,
		r.config.Image.CropMargin,
	)
}

func (r *Refiner) removeBackground(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	cut, err := r.segmenter.RemoveBackground(img)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cut); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
