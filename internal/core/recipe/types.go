package recipe

import (
	"encoding/json"
	"strings"
)

// FlexString decodes a JSON value that may arrive as a string or a number.
// Model output and scraped pages disagree on this constantly, so the
// intermediate representation keeps both as text.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	// Anything else (object, array) is unusable here.
	*f = ""
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// IngredientItem is one structured ingredient line.
type IngredientItem struct {
	Name     string     `json:"name"`
	Quantity FlexString `json:"quantity"`
	Unit     string     `json:"unit"`
}

// IngredientGroup is a named category of ingredients, e.g. "Dressing".
type IngredientGroup struct {
	Category string           `json:"category"`
	Items    []IngredientItem `json:"items"`
}

// StructuredRecipe is the canonical post-LLM shape handed to the persistence
// writer. Ingredients and instructions are always non-nil, possibly empty;
// instruction order is carried by slice position, never by embedded numbers.
type StructuredRecipe struct {
	Title        string            `json:"title"`
	CookTime     FlexString        `json:"cook_time"`
	Portions     FlexString        `json:"portions"`
	Ingredients  []IngredientGroup `json:"ingredients"`
	Instructions []string          `json:"instructions"`

	// ImageBytes is the refined hero image, attached by the pipeline. Never
	// part of the model exchange.
	ImageBytes []byte `json:"-"`
}

// Normalize guarantees the structural invariants after decoding untrusted
// model output.
func (r *StructuredRecipe) Normalize() {
	if r.Ingredients == nil {
		r.Ingredients = []IngredientGroup{}
	}
	if r.Instructions == nil {
		r.Instructions = []string{}
	}
}
