package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"recipe-importer/internal/core/store"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(_ context.Context, _ string, _ [][]byte) (string, error) {
	return s.response, s.err
}

func testPipeline(t *testing.T, completer *stubCompleter) *Pipeline {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "recipes.db")
	cfg.Storage.MediaDir = filepath.Join(dir, "media")
	cfg.Image.MaxSide = 320
	cfg.Image.WhiteThreshold = 245
	cfg.Image.AlphaThreshold = 10
	cfg.Image.CropMargin = 12
	cfg.Scraper.Timeout = 5 * time.Second
	cfg.Structuring.PDFMaxPages = 4
	cfg.Structuring.MaxDocImages = 3

	st, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return New(cfg, completer, st)
}

func TestFromTextHeuristic(t *testing.T) {
	p := testPipeline(t, &stubCompleter{})

	saved, err := p.FromText(context.Background(), "Tacos\nHeat pan\nAdd filling\nServe", "user-1", Options{})
	require.NoError(t, err)

	assert.Equal(t, "Tacos", saved.Title)

	loaded, err := p.store.GetRecipe(context.Background(), saved.ID, "user-1")
	require.NoError(t, err)
	require.Len(t, loaded.Instructions, 3)
	assert.Equal(t, "Heat pan", loaded.Instructions[0].Description)
	assert.Equal(t, "Add filling", loaded.Instructions[1].Description)
	assert.Equal(t, "Serve", loaded.Instructions[2].Description)
	assert.Empty(t, loaded.Ingredients)
}

func TestFromTextTooAmbiguous(t *testing.T) {
	p := testPipeline(t, &stubCompleter{})

	_, err := p.FromText(context.Background(), "short single line", "user-1", Options{})
	require.Error(t, err)

	var ie *common.ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, common.ImportCodeTooAmbiguous, ie.Code)
}

func TestFromTextWithLLM(t *testing.T) {
	p := testPipeline(t, &stubCompleter{
		response: `{"ingredients": [{"category": "Ingredients", "items": [{"name": "Beans", "quantity": "400", "unit": "g"}]}], "instructions": ["Warm the <b>Beans [400 g]</b>."]}`,
	})

	saved, err := p.FromText(context.Background(), "a can of beans\nwarm them up", "user-1", Options{UseLLM: true, CustomTitle: "Quick Beans"})
	require.NoError(t, err)

	assert.Equal(t, "Quick Beans", saved.Title)

	loaded, err := p.store.GetRecipe(context.Background(), saved.ID, "user-1")
	require.NoError(t, err)
	require.Len(t, loaded.Ingredients, 1)
	assert.Equal(t, "Beans", loaded.Ingredients[0].Name)
	require.Len(t, loaded.Instructions, 1)
}

func TestFromTextLLMTransportFailure(t *testing.T) {
	p := testPipeline(t, &stubCompleter{err: errors.New("gateway timeout")})

	_, err := p.FromText(context.Background(), "a can of beans\nwarm them up", "user-1", Options{UseLLM: true})
	require.Error(t, err)

	code, _ := common.ImportCodeOf(err)
	assert.Equal(t, common.ImportCodeManualFailed, code)
}

func TestFromImagesNoMainImage(t *testing.T) {
	// Vision extraction succeeds, but no candidate qualifies as a dish photo.
	p := testPipeline(t, &stubCompleter{
		response: `{"title": "Soup", "confidence": 0.9, "box": null, "ingredients": [], "instructions": ["Simmer."]}`,
	})

	_, err := p.FromImages(context.Background(), [][]byte{[]byte("not an image")}, "user-1", Options{})
	require.Error(t, err)

	code, _ := common.ImportCodeOf(err)
	assert.Equal(t, common.ImportCodeNoMainImage, code)
}

func TestImportCodeFallsBackToGeneric(t *testing.T) {
	code, message := common.ImportCodeOf(errors.New("something else entirely"))
	assert.Equal(t, common.ImportCodeGeneric, code)
	assert.NotEmpty(t, message)
}
