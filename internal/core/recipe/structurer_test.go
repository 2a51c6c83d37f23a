package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, _ [][]byte) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func TestStructureParsesModelOutput(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"ingredients": [{"category": "Dressing", "items": [{"name": "Olive oil", "quantity": "2", "unit": "tbsp"}]}], "instructions": ["Whisk the <b>Olive oil [2 tbsp]</b>."]}`,
	}
	s := NewStructurer(completer, nil)

	result, err := s.Structure(context.Background(), []string{"2 tbsp olive oil"}, []string{"Whisk the oil."}, false, "")
	require.NoError(t, err)
	require.Len(t, result.Ingredients, 1)
	assert.Equal(t, "Dressing", result.Ingredients[0].Category)
	assert.Equal(t, "Olive oil", result.Ingredients[0].Items[0].Name)
	require.Len(t, result.Instructions, 1)
}

func TestStructureToleratesProseFraming(t *testing.T) {
	completer := &fakeCompleter{
		response: "Here is your recipe:\n```json\n{\"ingredients\": [], \"instructions\": [\"Serve.\"]}\n```",
	}
	s := NewStructurer(completer, nil)

	result, err := s.Structure(context.Background(), nil, []string{"Serve."}, false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Serve."}, result.Instructions)
}

func TestStructureFallbackOnUnusableOutput(t *testing.T) {
	completer := &fakeCompleter{response: "I'm sorry, I can't do that."}
	s := NewStructurer(completer, nil)

	rawIngredients := []string{"200 g flour", "2 eggs", "a pinch of salt"}
	rawInstructions := []string{"Mix everything.", "Bake for 30 minutes."}

	result, err := s.Structure(context.Background(), rawIngredients, rawInstructions, false, "")
	require.NoError(t, err)

	// One category wrapping the raw lines 1:1, instructions verbatim.
	require.Len(t, result.Ingredients, 1)
	assert.Equal(t, "Ingredients", result.Ingredients[0].Category)
	require.Len(t, result.Ingredients[0].Items, len(rawIngredients))
	for i, item := range result.Ingredients[0].Items {
		assert.Equal(t, rawIngredients[i], item.Name)
		assert.Empty(t, item.Quantity.String())
		assert.Empty(t, item.Unit)
	}
	assert.Equal(t, rawInstructions, result.Instructions)
}

func TestStructureTransportErrorPropagates(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("connection refused")}
	s := NewStructurer(completer, nil)

	_, err := s.Structure(context.Background(), []string{"flour"}, nil, false, "")
	require.Error(t, err)
}

func TestStructurePromptDirectives(t *testing.T) {
	completer := &fakeCompleter{response: `{"ingredients": [], "instructions": []}`}
	s := NewStructurer(completer, nil)

	_, err := s.Structure(context.Background(), []string{"flour"}, nil, true, "Keep titles short")
	require.NoError(t, err)
	require.Len(t, completer.prompts, 1)

	prompt := completer.prompts[0]
	assert.Contains(t, prompt, "vegan")
	assert.Contains(t, prompt, "Keep titles short")
	assert.Contains(t, prompt, "Translate to german")
	assert.Contains(t, prompt, "raw JSON only")
	assert.Contains(t, prompt, "Never include step numbers")
}

func TestFlexStringDecoding(t *testing.T) {
	var r StructuredRecipe
	require.NoError(t, json.Unmarshal([]byte(`{"title": "Soup", "cook_time": 45, "portions": "4", "ingredients": [], "instructions": []}`), &r))
	assert.Equal(t, "45", r.CookTime.String())
	assert.Equal(t, "4", r.Portions.String())
}
