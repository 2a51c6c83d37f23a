package store

import (
	"context"
	"path/filepath"
	"testing"

	"recipe-importer/internal/core/recipe"
	"recipe-importer/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "recipes.db")
	cfg.Storage.MediaDir = filepath.Join(dir, "media")

	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleStructured() *recipe.StructuredRecipe {
	return &recipe.StructuredRecipe{
		Title:    "Kartoffelsalat",
		CookTime: "about 30 minutes",
		Portions: "4",
		Ingredients: []recipe.IngredientGroup{
			{Category: "Salad", Items: []recipe.IngredientItem{
				{Name: "Potatoes", Quantity: "1", Unit: "kg"},
				{Name: "Onion", Quantity: "½", Unit: ""},
			}},
			{Category: "Dressing", Items: []recipe.IngredientItem{
				{Name: "Vinegar", Quantity: "3", Unit: "tbsp"},
				{Name: "Oil", Quantity: "2 - 4", Unit: "tbsp"},
				{Name: "  ", Quantity: "1", Unit: "pinch"}, // dropped: empty name
				{Name: "Mustard", Quantity: "a dollop", Unit: ""},
			}},
		},
		Instructions: []string{
			"Boil the <b>Potatoes [1 kg]</b>.",
			"Slice the <b>Onion [0.5]</b>.",
			"  ",
			"Whisk the dressing.",
			"Combine and rest.",
		},
	}
}

func TestSaveStructured(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	saved, err := s.SaveStructured(ctx, sampleStructured(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Kartoffelsalat", saved.Title)
	assert.Equal(t, "kartoffelsalat", saved.SafeTitle)
	assert.Equal(t, 30, saved.CookTime)
	assert.Equal(t, 4, saved.Portions)
	assert.Equal(t, "Imported automatically", saved.Notes)
	assert.Equal(t, "private", saved.Visibility)

	loaded, err := s.GetRecipe(ctx, saved.ID, "user-1")
	require.NoError(t, err)

	// Two groups of 2 and 4 items, one dropped for its empty name.
	require.Len(t, loaded.Ingredients, 5)
	assert.Equal(t, "Salad", loaded.Ingredients[0].Category)
	assert.Equal(t, "Dressing", loaded.Ingredients[2].Category)

	require.NotNil(t, loaded.Ingredients[1].Quantity)
	assert.InDelta(t, 0.5, *loaded.Ingredients[1].Quantity, 1e-9)
	require.NotNil(t, loaded.Ingredients[3].Quantity)
	assert.InDelta(t, 3.0, *loaded.Ingredients[3].Quantity, 1e-9)
	// "a dollop" is not parseable, the quantity stays null.
	assert.Nil(t, loaded.Ingredients[4].Quantity)

	// Blank step dropped, numbering stays 1-based and contiguous.
	require.Len(t, loaded.Instructions, 4)
	for i, step := range loaded.Instructions {
		assert.Equal(t, i+1, step.StepNumber)
	}
	assert.Equal(t, "Combine and rest.", loaded.Instructions[3].Description)
}

func TestSaveStructuredDefaults(t *testing.T) {
	s := testStore(t)

	saved, err := s.SaveStructured(context.Background(), &recipe.StructuredRecipe{
		Title:    "  ",
		CookTime: "no idea",
	}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Untitled", saved.Title)
	assert.Equal(t, 1, saved.CookTime)
	assert.Equal(t, 1, saved.Portions)
}

func TestSaveStructuredStoresHeroImage(t *testing.T) {
	s := testStore(t)

	structured := sampleStructured()
	structured.ImageBytes = []byte("fake png bytes")

	saved, err := s.SaveStructured(context.Background(), structured, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, saved.ImagePath)

	data, err := s.ReadImage(saved.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, structured.ImageBytes, data)
}

func TestGetRecipeVisibility(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	saved, err := s.SaveStructured(ctx, sampleStructured(), "owner")
	require.NoError(t, err)

	_, err = s.GetRecipe(ctx, saved.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetRecipe(ctx, saved.ID, "owner")
	assert.NoError(t, err)
}

func TestDeleteRecipe(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	saved, err := s.SaveStructured(ctx, sampleStructured(), "owner")
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteRecipe(ctx, saved.ID, "stranger"), ErrNotFound)
	require.NoError(t, s.DeleteRecipe(ctx, saved.ID, "owner"))

	_, err = s.GetRecipe(ctx, saved.ID, "owner")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCopyRecipeRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	structured := sampleStructured()
	structured.ImageBytes = []byte("hero")
	original, err := s.SaveStructured(ctx, structured, "owner")
	require.NoError(t, err)

	// Make it visible so another user may copy it.
	_, err = s.db.Exec(`UPDATE recipes SET visibility = 'public' WHERE id = ?`, original.ID)
	require.NoError(t, err)

	copied, err := s.CopyRecipe(ctx, original.ID, "friend")
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, copied.ID)
	assert.Equal(t, "friend", copied.UserRef)
	assert.Equal(t, original.Title, copied.Title)
	assert.NotEqual(t, original.ImagePath, copied.ImagePath)

	source, err := s.GetRecipe(ctx, original.ID, "owner")
	require.NoError(t, err)

	require.Len(t, copied.Ingredients, len(source.Ingredients))
	for i := range source.Ingredients {
		assert.Equal(t, source.Ingredients[i].Category, copied.Ingredients[i].Category)
		assert.Equal(t, source.Ingredients[i].Name, copied.Ingredients[i].Name)
		assert.Equal(t, source.Ingredients[i].Quantity, copied.Ingredients[i].Quantity)
		assert.Equal(t, source.Ingredients[i].Unit, copied.Ingredients[i].Unit)
	}
	require.Len(t, copied.Instructions, len(source.Instructions))
	for i := range source.Instructions {
		assert.Equal(t, source.Instructions[i].StepNumber, copied.Instructions[i].StepNumber)
		assert.Equal(t, source.Instructions[i].Description, copied.Instructions[i].Description)
	}
}

func TestListRecipes(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.SaveStructured(ctx, sampleStructured(), "owner")
		require.NoError(t, err)
	}
	_, err := s.SaveStructured(ctx, sampleStructured(), "other")
	require.NoError(t, err)

	recipes, err := s.ListRecipes(ctx, "owner")
	require.NoError(t, err)
	assert.Len(t, recipes, 3)
}

func TestReplaceInstructionsRenumbers(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	saved, err := s.SaveStructured(ctx, sampleStructured(), "owner")
	require.NoError(t, err)

	require.NoError(t, s.ReplaceInstructions(ctx, saved.ID, "owner", []string{
		"New step one.",
		"New step two.",
	}))

	loaded, err := s.GetRecipe(ctx, saved.ID, "owner")
	require.NoError(t, err)
	require.Len(t, loaded.Instructions, 2)
	assert.Equal(t, 1, loaded.Instructions[0].StepNumber)
	assert.Equal(t, 2, loaded.Instructions[1].StepNumber)
	assert.Equal(t, "New step one.", loaded.Instructions[0].Description)
}

func TestCascadeDeleteOnFreshConnection(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	saved, err := s.SaveStructured(ctx, sampleStructured(), "user-1")
	require.NoError(t, err)

	// Pin the first pooled connection so the delete below has to run on a
	// connection opened later. Pragmas set per-connection would be missing
	// there and the cascade would silently not fire.
	pinned, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer pinned.Close()

	require.NoError(t, s.DeleteRecipe(ctx, saved.ID, "user-1"))

	fresh, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer fresh.Close()

	var enforced int
	require.NoError(t, fresh.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enforced))
	assert.Equal(t, 1, enforced)

	var orphans int
	require.NoError(t, fresh.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ingredients WHERE recipe_ref = ?", saved.ID).Scan(&orphans))
	assert.Equal(t, 0, orphans)

	require.NoError(t, fresh.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM instructions WHERE recipe_ref = ?", saved.ID).Scan(&orphans))
	assert.Equal(t, 0, orphans)
}
