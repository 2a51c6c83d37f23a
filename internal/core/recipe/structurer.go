package recipe

import (
	"context"
	"fmt"
	"strings"

	"recipe-importer/internal/core/ai"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// Structurer turns raw ingredient and instruction text into a
// StructuredRecipe via the completion capability. Model output is untrusted:
// anything that fails to parse as the expected shape is replaced by a
// deterministic fallback, so this stage only returns an error for outright
// call failures.
type Structurer struct {
	completer ai.Completer
	config    *config.Config
}

// NewStructurer creates a structurer.
func NewStructurer(completer ai.Completer, cfg *config.Config) *Structurer {
	return &Structurer{
		completer: completer,
		config:    cfg,
	}
}

// structuredPayload is the shape requested from the model in the text path.
// Title, cook time and portions stay with the extraction that produced them.
type structuredPayload struct {
	Ingredients  []IngredientGroup `json:"ingredients"`
	Instructions []string          `json:"instructions"`
}

// Structure organizes raw ingredient and instruction lines.
func (s *Structurer) Structure(ctx context.Context, rawIngredients, rawInstructions []string, transformVegan bool, customInstructions string) (*StructuredRecipe, error) {
	prompt := s.buildPrompt(rawIngredients, rawInstructions, transformVegan, customInstructions)

	content, err := s.completer.Complete(ctx, prompt, nil)
	if err != nil {
		// Transport failure, nothing to fall back on.
		return nil, fmt.Errorf("structuring call failed: %w", err)
	}

	var payload structuredPayload
	if perr := parseModelJSON(content, &payload); perr != nil {
		common.LogWarn("Structuring fallback due to unusable model output",
			zap.Error(perr),
			zap.Int("content_length", len(content)),
		)
		return Fallback(rawIngredients, rawInstructions), nil
	}

	result := &StructuredRecipe{
		Ingredients:  payload.Ingredients,
		Instructions: payload.Instructions,
	}
	result.Normalize()
	return result, nil
}

// Fallback wraps the raw lines in the canonical shape: one "Ingredients"
// category with unparsed items, instructions passed through verbatim.
func Fallback(rawIngredients, rawInstructions []string) *StructuredRecipe {
	items := make([]IngredientItem, 0, len(rawIngredients))
	for _, line := range rawIngredients {
		items = append(items, IngredientItem{
			Name:     line,
			Quantity: "",
			Unit:     "",
		})
	}

	instructions := make([]string, 0, len(rawInstructions))
	instructions = append(instructions, rawInstructions...)

	return &StructuredRecipe{
		Ingredients: []IngredientGroup{
			{Category: "Ingredients", Items: items},
		},
		Instructions: instructions,
	}
}

// parseModelJSON decodes model output into v, tolerating prose framing and
// unquoted keys before giving up.
func parseModelJSON(content string, v interface{}) error {
	extracted := common.ExtractJSONObject(content)
	if err := common.ParseJSON(extracted, v); err == nil {
		return nil
	}
	return common.ParseJSON(common.QuoteJSONKeys(extracted), v)
}

func (s *Structurer) buildPrompt(rawIngredients, rawInstructions []string, transformVegan bool, customInstructions string) string {
	var preamble string
	if transformVegan {
		preamble = "You are a vegan chef. Please transform the following recipe into a fully vegan version, substituting animal products with appropriate alternatives."
	} else {
		preamble = "Here is a recipe."
	}

	var sb strings.Builder
	sb.WriteString(preamble)
	sb.WriteString("\nIngredients:\n")
	sb.WriteString(strings.Join(rawIngredients, "\n"))
	sb.WriteString("\nInstructions:\n")
	sb.WriteString(strings.Join(rawInstructions, "\n"))
	sb.WriteString("\n\nPlease fulfill the following requirements precisely:\n")
	if customInstructions != "" {
		sb.WriteString("- " + customInstructions + "\n")
	}
	sb.WriteString("- Translate to " + s.targetLanguage() + ".\n")
	sb.WriteString("- Convert all cook times to minutes.\n")
	sb.WriteString("- Split dressings/sauces/.. into extra groups when applicable.\n")
	sb.WriteString("- Convert fractions and ranges to decimal.\n")
	sb.WriteString("- Split quantity and unit (unit can be an empty string).\n")
	sb.WriteString("- Only in the instructions:\n")
	sb.WriteString("    - ALWAYS: Add the required quantities to the respective ingredients, like Meat [500g] or Lettuce [1 Head]. DO NOT FORGET!\n")
	sb.WriteString("    - ALWAYS: For ingredients mentioned add bold formatting, such that it is correctly identified as bold in html code\n")
	sb.WriteString("- Never include step numbers inside instruction text.\n")
	sb.WriteString("- Output the result as raw JSON only (no Markdown formatting, no commentary, no \"```json\" wrappers, no text before or after the JSON).\n")
	sb.WriteString("- Do NOT include any extraneous information.\n")
	sb.WriteString("\nExpected output format:\n")
	sb.WriteString(`{ "ingredients": [{"category": "string", "items": [{"name": "string", "quantity": "string", "unit": "string"}]}], "instructions": ["string"] }`)
	return sb.String()
}

func (s *Structurer) targetLanguage() string {
	if s.config != nil && s.config.Structuring.TargetLanguage != "" {
		return s.config.Structuring.TargetLanguage
	}
	return "german"
}
