package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Scraper.Timeout = 5 * time.Second
	cfg.Scraper.UserAgent = "recipe-importer-test"
	cfg.Image.MaxSide = 320
	cfg.Structuring.PDFMaxPages = 4
	cfg.Structuring.MaxDocImages = 3
	return cfg
}

const jsonLDPage = `<html><head>
<script type="application/ld+json">
{"@context": "https://schema.org", "@graph": [
  {"@type": "WebSite", "name": "Some Blog"},
  {"@type": ["Recipe", "Thing"],
   "name": "Lentil Soup",
   "totalTime": "PT1H15M",
   "recipeYield": ["4 servings", "4"],
   "image": {"url": "https://example.com/soup.jpg"},
   "recipeIngredient": ["200 g lentils", "1 onion", " "],
   "recipeInstructions": [
     {"@type": "HowToSection", "itemListElement": [
       {"@type": "HowToStep", "text": "Chop the onion."},
       {"@type": "HowToStep", "text": "Sweat it in oil."}
     ]},
     {"@type": "HowToStep", "text": "Add lentils and simmer."}
   ]}
]}
</script>
</head><body></body></html>`

func TestFetchJSONLDRecipe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(jsonLDPage))
	}))
	defer srv.Close()

	raw, err := NewScraper(testConfig()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Lentil Soup", raw.Title)
	assert.Equal(t, "75", raw.CookTime)
	assert.Equal(t, "4 servings", raw.Portions)
	assert.Equal(t, "https://example.com/soup.jpg", raw.ImageURL)
	assert.Equal(t, []string{"200 g lentils", "1 onion"}, raw.Ingredients)
	assert.Equal(t, []string{
		"Chop the onion.",
		"Sweat it in oil.",
		"Add lentils and simmer.",
	}, raw.Instructions)
}

const markupPage = `<html><head>
<title>Fallback Pancakes | Blog</title>
<meta property="og:title" content="Fallback Pancakes">
<meta property="og:image" content="https://example.com/pancakes.png">
</head><body>
<li itemprop="recipeIngredient">2 eggs</li>
<li itemprop="recipeIngredient">250 ml milk</li>
<div itemprop="recipeInstructions">Whisk everything.
Fry in butter.</div>
</body></html>`

func TestFetchMarkupFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(markupPage))
	}))
	defer srv.Close()

	raw, err := NewScraper(testConfig()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Fallback Pancakes", raw.Title)
	assert.Equal(t, "https://example.com/pancakes.png", raw.ImageURL)
	assert.Equal(t, []string{"2 eggs", "250 ml milk"}, raw.Ingredients)
	assert.Equal(t, []string{"Whisk everything.", "Fry in butter."}, raw.Instructions)
}

func TestFetchNonRecipePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>Just a blog post.</p></body></html>"))
	}))
	defer srv.Close()

	_, err := NewScraper(testConfig()).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var ie *common.ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, common.ImportCodeWebpageNotFound, ie.Code)
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewScraper(testConfig()).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var ie *common.ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, common.ImportCodeWebpageNotFound, ie.Code)
}

func TestDurationToMinutes(t *testing.T) {
	assert.Equal(t, "90", durationToMinutes("PT1H30M"))
	assert.Equal(t, "45", durationToMinutes("PT45M"))
	assert.Equal(t, "1500", durationToMinutes("P1DT1H"))
	assert.Equal(t, "", durationToMinutes(""))
	assert.Equal(t, "about an hour", durationToMinutes("about an hour"))
}
