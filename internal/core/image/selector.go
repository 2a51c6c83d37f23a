package image

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"recipe-importer/internal/core/ai"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

const selectorPrompt = `Look at this photo and decide whether it depicts a plated, finished dish.
Return raw JSON only (no markdown, no commentary) in exactly this shape:
{"confidence": 0.0, "box": [0.0, 0.0, 1.0, 1.0]}
- confidence: how certain you are this is a plated dish, between 0 and 1. Use 0 when it is not a dish (e.g. a page of text, raw groceries, a person).
- box: the bounding box of the dish as fractions of the image [x, y, width, height]. Use null when there is no dish.`

// SelectionScore describes the winning candidate.
type SelectionScore struct {
	Confidence float64 `json:"confidence"`
	// Box is the dish bounding box in absolute pixels of the original
	// candidate: x, y, width, height.
	Box [4]int `json:"box"`
}

// Selector scores candidate images with the vision model and picks the most
// plated-dish-like one.
type Selector struct {
	completer ai.Completer
	maxSide   int
}

// NewSelector creates a selector. Candidates are downscaled to maxSide before
// scoring to keep vision-call cost down.
func NewSelector(completer ai.Completer, maxSide int) *Selector {
	return &Selector{
		completer: completer,
		maxSide:   maxSide,
	}
}

// scoreResponse is the model's verdict for one candidate.
type scoreResponse struct {
	Confidence float64     `json:"confidence"`
	Box        *[4]float64 `json:"box"`
}

// SelectBest returns the highest-confidence candidate that also carries a
// bounding box, with ties keeping the first seen. A candidate that cannot be
// scored is skipped, never fatal. When no candidate qualifies, both returns
// are nil.
func (s *Selector) SelectBest(ctx context.Context, images [][]byte) (*SelectionScore, []byte) {
	var (
		best      *SelectionScore
		bestBytes []byte
	)

	for i, img := range images {
		score, err := s.scoreCandidate(ctx, img)
		if err != nil {
			common.LogWarn("Skipping image candidate",
				zap.Int("candidate", i),
				zap.Error(err),
			)
			continue
		}
		if score == nil {
			// Scored, but no dish box returned.
			continue
		}
		if best == nil || score.Confidence > best.Confidence {
			best = score
			bestBytes = img
		}
	}

	if best == nil {
		common.LogInfo("No image candidate qualified as main dish photo")
		return nil, nil
	}

	common.LogInfo("Selected main image",
		zap.Float64("confidence", best.Confidence),
	)
	return best, bestBytes
}

func (s *Selector) scoreCandidate(ctx context.Context, img []byte) (*SelectionScore, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode candidate: %w", err)
	}

	small := Downscale(img, s.maxSide)

	content, err := s.completer.Complete(ctx, selectorPrompt, [][]byte{small})
	if err != nil {
		return nil, fmt.Errorf("vision call: %w", err)
	}

	var resp scoreResponse
	if err := common.ParseJSON(common.ExtractJSONObject(content), &resp); err != nil {
		return nil, fmt.Errorf("parse score: %w", err)
	}

	if resp.Box == nil {
		return nil, nil
	}

	// Relative fractional box to absolute pixels of the original candidate.
	b := *resp.Box
	return &SelectionScore{
		Confidence: resp.Confidence,
		Box: [4]int{
			int(b[0] * float64(cfg.Width)),
			int(b[1] * float64(cfg.Height)),
			int(b[2] * float64(cfg.Width)),
			int(b[3] * float64(cfg.Height)),
		},
	}, nil
}
