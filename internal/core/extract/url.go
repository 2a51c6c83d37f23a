package extract

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Scraper extracts recipe data from a webpage. Most recipe sites embed a
// schema.org Recipe node as JSON-LD; plain markup selectors are the fallback.
// Failure to reach or parse the page is reported as webpage_not_found,
// distinct from any downstream structuring failure.
type Scraper struct {
	client *resty.Client
}

// NewScraper creates a scraper.
func NewScraper(cfg *config.Config) *Scraper {
	client := resty.New().
		SetTimeout(cfg.Scraper.Timeout).
		SetHeader("User-Agent", cfg.Scraper.UserAgent)

	return &Scraper{client: client}
}

// Fetch downloads and parses the recipe page at url.
func (s *Scraper) Fetch(ctx context.Context, url string) (*RawExtraction, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, common.NewImportError(common.ImportCodeWebpageNotFound,
			"We couldn't reach that page. Please check the URL and try again.", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, common.NewImportError(common.ImportCodeWebpageNotFound,
			"We couldn't reach that page. Please check the URL and try again.",
			fmt.Errorf("status code %d", resp.StatusCode()))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, common.NewImportError(common.ImportCodeWebpageNotFound,
			"That page could not be parsed as a recipe.", err)
	}

	raw := s.fromJSONLD(doc)
	if raw == nil {
		raw = s.fromMarkup(doc)
	}
	if raw == nil || (len(raw.Ingredients) == 0 && len(raw.Instructions) == 0) {
		return nil, common.NewImportError(common.ImportCodeWebpageNotFound,
			"That page does not look like a recipe.", nil)
	}

	common.LogInfo("Webpage scraped",
		zap.String("url", url),
		zap.Int("ingredients", len(raw.Ingredients)),
		zap.Int("instructions", len(raw.Instructions)),
	)
	return raw, nil
}

// fromJSONLD walks the page's ld+json blocks looking for a schema.org Recipe
// node, including nodes nested under @graph.
func (s *Scraper) fromJSONLD(doc *goquery.Document) *RawExtraction {
	var raw *RawExtraction

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		node := findRecipeNode(gjson.Parse(sel.Text()))
		if !node.Exists() {
			return true
		}
		raw = recipeFromNode(node)
		return false
	})

	return raw
}

func findRecipeNode(value gjson.Result) gjson.Result {
	if isRecipeType(value.Get("@type")) {
		return value
	}

	var found gjson.Result
	scan := func(_, item gjson.Result) bool {
		if isRecipeType(item.Get("@type")) {
			found = item
			return false
		}
		return true
	}

	if value.IsArray() {
		value.ForEach(scan)
	}
	if !found.Exists() {
		value.Get("@graph").ForEach(scan)
	}
	return found
}

func isRecipeType(t gjson.Result) bool {
	if t.Type == gjson.String {
		return t.String() == "Recipe"
	}
	match := false
	t.ForEach(func(_, item gjson.Result) bool {
		if item.String() == "Recipe" {
			match = true
			return false
		}
		return true
	})
	return match
}

func recipeFromNode(node gjson.Result) *RawExtraction {
	raw := &RawExtraction{
		Title:    strings.TrimSpace(node.Get("name").String()),
		CookTime: durationToMinutes(node.Get("totalTime").String()),
		Portions: yieldString(node.Get("recipeYield")),
		ImageURL: imageURL(node.Get("image")),
	}

	node.Get("recipeIngredient").ForEach(func(_, item gjson.Result) bool {
		if line := strings.TrimSpace(item.String()); line != "" {
			raw.Ingredients = append(raw.Ingredients, line)
		}
		return true
	})

	collectInstructions(node.Get("recipeInstructions"), &raw.Instructions)

	return raw
}

// collectInstructions flattens recipeInstructions, which may be plain
// strings, HowToStep objects or HowToSections nesting further steps.
func collectInstructions(value gjson.Result, out *[]string) {
	if value.Type == gjson.String {
		for _, line := range strings.Split(value.String(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				*out = append(*out, line)
			}
		}
		return
	}

	value.ForEach(func(_, item gjson.Result) bool {
		switch {
		case item.Type == gjson.String:
			if line := strings.TrimSpace(item.String()); line != "" {
				*out = append(*out, line)
			}
		case item.Get("itemListElement").Exists():
			collectInstructions(item.Get("itemListElement"), out)
		default:
			if line := strings.TrimSpace(item.Get("text").String()); line != "" {
				*out = append(*out, line)
			}
		}
		return true
	})
}

func yieldString(value gjson.Result) string {
	if value.IsArray() {
		first := ""
		value.ForEach(func(_, item gjson.Result) bool {
			first = item.String()
			return false
		})
		return strings.TrimSpace(first)
	}
	return strings.TrimSpace(value.String())
}

func imageURL(value gjson.Result) string {
	switch {
	case value.IsArray():
		first := ""
		value.ForEach(func(_, item gjson.Result) bool {
			first = imageURLScalar(item)
			return false
		})
		return first
	default:
		return imageURLScalar(value)
	}
}

func imageURLScalar(value gjson.Result) string {
	if value.Type == gjson.String {
		return value.String()
	}
	return value.Get("url").String()
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// durationToMinutes converts an ISO-8601 duration like PT1H30M to whole
// minutes. Unparseable input is returned as-is for the structuring stage to
// deal with.
func durationToMinutes(iso string) string {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return ""
	}
	m := isoDurationPattern.FindStringSubmatch(iso)
	if m == nil {
		return iso
	}
	days, _ := strconv.Atoi(zeroIfEmpty(m[1]))
	hours, _ := strconv.Atoi(zeroIfEmpty(m[2]))
	minutes, _ := strconv.Atoi(zeroIfEmpty(m[3]))
	total := days*24*60 + hours*60 + minutes
	if total == 0 {
		return ""
	}
	return strconv.Itoa(total)
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// fromMarkup is the selector-based fallback for pages without usable
// JSON-LD.
func (s *Scraper) fromMarkup(doc *goquery.Document) *RawExtraction {
	raw := &RawExtraction{}

	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		raw.Title = strings.TrimSpace(v)
	}
	if raw.Title == "" {
		raw.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if v, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		raw.ImageURL = strings.TrimSpace(v)
	}

	doc.Find(`[itemprop="recipeIngredient"], [itemprop="ingredients"]`).Each(func(_ int, sel *goquery.Selection) {
		if line := strings.TrimSpace(sel.Text()); line != "" {
			raw.Ingredients = append(raw.Ingredients, line)
		}
	})

	doc.Find(`[itemprop="recipeInstructions"]`).Each(func(_ int, sel *goquery.Selection) {
		for _, line := range strings.Split(sel.Text(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				raw.Instructions = append(raw.Instructions, line)
			}
		}
	})

	if v, ok := doc.Find(`meta[itemprop="totalTime"]`).Attr("content"); ok {
		raw.CookTime = durationToMinutes(v)
	}
	if v := strings.TrimSpace(doc.Find(`[itemprop="recipeYield"]`).First().Text()); v != "" {
		raw.Portions = v
	}

	return raw
}
