package image

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"
	"go.uber.org/zap"
)

// Segmenter is the background segmentation capability: given an image, return
// the same image with background pixels alpha-zeroed.
type Segmenter interface {
	RemoveBackground(img image.Image) (image.Image, error)
}

// maskSide is the fixed input resolution of the segmentation network.
const maskSide = 320

// Session construction loads the model into memory and is expensive. The
// session is shared process-wide: built at most once, read-only afterwards,
// safe across sequential jobs within one worker.
var (
	sessionOnce sync.Once
	sessionErr  error
	session     *ort.DynamicAdvancedSession
)

func sharedSession(cfg *config.Config) (*ort.DynamicAdvancedSession, error) {
	sessionOnce.Do(func() {
		if cfg.Segment.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.Segment.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			sessionErr = fmt.Errorf("initialize onnxruntime: %w", err)
			return
		}
		s, err := ort.NewDynamicAdvancedSession(
			cfg.Segment.ModelPath,
			[]string{"input.1"},
			[]string{"output"},
			nil,
		)
		if err != nil {
			sessionErr = fmt.Errorf("load segmentation model: %w", err)
			return
		}
		session = s
		common.LogInfo("Segmentation session initialized",
			zap.String("model_path", cfg.Segment.ModelPath),
		)
	})
	return session, sessionErr
}

// NewSegmenter returns the configured segmenter. Without a model path the
// pipeline still works; the refiner then crops on the white threshold alone.
func NewSegmenter(cfg *config.Config) Segmenter {
	if cfg.Segment.ModelPath == "" {
		common.LogInfo("No segmentation model configured, background removal disabled")
		return nopSegmenter{}
	}
	return &onnxSegmenter{config: cfg}
}

// nopSegmenter passes images through untouched.
type nopSegmenter struct{}

func (nopSegmenter) RemoveBackground(img image.Image) (image.Image, error) {
	return img, nil
}

// onnxSegmenter runs a U2-Net style saliency model through onnxruntime.
type onnxSegmenter struct {
	config *config.Config
}

func (s *onnxSegmenter) RemoveBackground(img image.Image) (image.Image, error) {
	sess, err := sharedSession(s.config)
	if err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, maskSide, maskSide), imageToTensor(img))
	if err != nil {
		return nil, fmt.Errorf("build input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, maskSide, maskSide))
	if err != nil {
		return nil, fmt.Errorf("build output tensor: %w", err)
	}
	defer output.Destroy()

	if err := sess.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("run segmentation model: %w", err)
	}

	return applyMask(img, output.GetData()), nil
}

// imageToTensor scales the image to the network resolution and lays it out as
// normalized CHW floats.
func imageToTensor(img image.Image) []float32 {
	scaled := image.NewRGBA(image.Rect(0, 0, maskSide, maskSide))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	data := make([]float32, 3*maskSide*maskSide)
	plane := maskSide * maskSide
	for y := 0; y < maskSide; y++ {
		for x := 0; x < maskSide; x++ {
			r, g, b, _ := scaled.At(x, y).RGBA()
			idx := y*maskSide + x
			data[idx] = float32(r>>8) / 255.0
			data[plane+idx] = float32(g>>8) / 255.0
			data[2*plane+idx] = float32(b>>8) / 255.0
		}
	}
	return data
}

// applyMask scales the predicted saliency mask back up to the source
// dimensions and writes it into the alpha channel.
func applyMask(img image.Image, mask []float32) image.Image {
	lo, hi := mask[0], mask[0]
	for _, v := range mask {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	small := image.NewGray(image.Rect(0, 0, maskSide, maskSide))
	for y := 0; y < maskSide; y++ {
		for x := 0; x < maskSide; x++ {
			v := (mask[y*maskSide+x] - lo) / span
			small.SetGray(x, y, color.Gray{Y: uint8(v * 255)})
		}
	}

	bounds := img.Bounds()
	full := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.CatmullRom.Scale(full, full.Bounds(), small, small.Bounds(), draw.Src, nil)

	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			alpha := full.GrayAt(x, y).Y
			out.SetNRGBA(x, y, color.NRGBA{
				R: uint8(r >> 8),
				G: uint8(g >> 8),
				B: uint8(b >> 8),
				A: alpha,
			})
		}
	}
	return out
}
