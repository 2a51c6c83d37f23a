package extract

import (
	"context"
	"fmt"
	"strings"

	"recipe-importer/internal/core/ai"
	img "recipe-importer/internal/core/image"
	"recipe-importer/internal/core/recipe"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

const visionPromptTemplate = `You are given one or more photos of a recipe (a cookbook page, a handwritten card, or a screenshot).
Read all of them together and extract the complete recipe.

Requirements:
- Translate everything into %s.
- "cook_time" is the total time in minutes as a plain number, or null if not stated.
- "portions" is the number of servings, or null if not stated.
- Group ingredients into categories where the source does (e.g. dressing, dough); otherwise use a single category named "Ingredients".
- Split each ingredient into name, quantity and unit. Quantities use decimal notation (0.5 instead of 1/2).
- In the instructions, wrap each mentioned ingredient in <b></b> tags with its amount in square brackets, e.g. <b>Flour [200 g]</b>.
- Do not number the steps.

Respond with raw JSON only, no markdown fences, in exactly this shape:
{"title": "...", "cook_time": "...", "portions": "...", "ingredients": [{"category": "...", "items": [{"name": "...", "quantity": "...", "unit": "..."}]}], "instructions": ["..."]}`

// VisionExtractor reads recipes straight out of photos with a multimodal
// model. Unlike the text structurer there is no heuristic fallback here: if
// the model can't produce valid JSON the image was not readable as a recipe.
type VisionExtractor struct {
	completer ai.Completer
	config    *config.Config
}

// NewVisionExtractor creates a vision extractor.
func NewVisionExtractor(completer ai.Completer, cfg *config.Config) *VisionExtractor {
	return &VisionExtractor{completer: completer, config: cfg}
}

// Extract reads the recipe in the given images.
func (v *VisionExtractor) Extract(ctx context.Context, images [][]byte) (*recipe.StructuredRecipe, error) {
	if len(images) == 0 {
		return nil, common.NewImportError(common.ImportCodeImageFailed,
			"No images were provided.", nil)
	}

	scaled := make([][]byte, 0, len(images))
	for _, data := range images {
		scaled = append(scaled, img.Downscale(data, v.config.Image.MaxSide))
	}

	prompt := fmt.Sprintf(visionPromptTemplate, v.config.Structuring.TargetLanguage)
	response, err := v.completer.Complete(ctx, prompt, scaled)
	if err != nil {
		return nil, common.NewImportError(common.ImportCodeImageFailed,
			"We couldn't read a recipe from those images. Please try clearer photos.", err)
	}

	structured, err := parseVisionResponse(response)
	if err != nil {
		common.LogWarn("Vision response was not valid recipe JSON",
			zap.Error(err),
			zap.Int("response_length", len(response)),
		)
		return nil, common.NewImportError(common.ImportCodeImageFailed,
			"We couldn't read a recipe from those images. Please try clearer photos.", err)
	}

	common.LogInfo("Recipe extracted from images",
		zap.String("title", structured.Title),
		zap.Int("images", len(images)),
	)
	return structured, nil
}

func parseVisionResponse(response string) (*recipe.StructuredRecipe, error) {
	payload := common.ExtractJSONObject(response)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var structured recipe.StructuredRecipe
	if err := common.ParseJSON(payload, &structured); err != nil {
		// Some models emit single-quoted or unquoted keys.
		if retryErr := common.ParseJSON(common.QuoteJSONKeys(payload), &structured); retryErr != nil {
			return nil, err
		}
	}

	structured.Normalize()
	if strings.TrimSpace(structured.Title) == "" && len(structured.Ingredients) == 0 {
		return nil, fmt.Errorf("response contained no recipe content")
	}
	return &structured, nil
}
