// Package pipeline orchestrates the ingestion flows from raw input to a
// persisted recipe.
package pipeline

import (
	"context"
	"errors"

	"recipe-importer/internal/core/ai"
	"recipe-importer/internal/core/extract"
	img "recipe-importer/internal/core/image"
	"recipe-importer/internal/core/recipe"
	"recipe-importer/internal/core/store"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// Options carries per-import knobs chosen by the user.
type Options struct {
	TransformVegan     bool
	CustomInstructions string
	CustomTitle        string
	UseLLM             bool
}

// Pipeline wires the extractors, the structuring stage, the image stages and
// the persistence writer into the named import flows. Every flow ends in
// exactly one persistence call on success.
type Pipeline struct {
	config     *config.Config
	scraper    *extract.Scraper
	vision     *extract.VisionExtractor
	documents  *extract.DocumentExtractor
	structurer *recipe.Structurer
	selector   *img.Selector
	refiner    *img.Refiner
	downloader *img.Downloader
	store      *store.Store
}

// New builds a pipeline on top of the shared completion capability and store.
func New(cfg *config.Config, completer ai.Completer, st *store.Store) *Pipeline {
	return &Pipeline{
		config:     cfg,
		scraper:    extract.NewScraper(cfg),
		vision:     extract.NewVisionExtractor(completer, cfg),
		documents:  extract.NewDocumentExtractor(cfg),
		structurer: recipe.NewStructurer(completer, cfg),
		selector:   img.NewSelector(completer, cfg.Image.MaxSide),
		refiner:    img.NewRefiner(cfg, img.NewSegmenter(cfg)),
		downloader: img.NewDownloader(cfg),
		store:      st,
	}
}

func logStage(flow, stage string) {
	common.LogDebug("Import stage",
		zap.String("flow", flow),
		zap.String("stage", stage),
	)
}

// wrapImport tags err with a flow-level code unless a more specific import
// error is already attached.
func wrapImport(code, message string, err error) error {
	var ie *common.ImportError
	if errors.As(err, &ie) {
		return err
	}
	return common.NewImportError(code, message, err)
}

// persist applies the optional title override and writes the recipe.
func (p *Pipeline) persist(ctx context.Context, flow string, structured *recipe.StructuredRecipe, owner string, opts Options) (*store.Recipe, error) {
	logStage(flow, "PERSISTING")
	if opts.CustomTitle != "" {
		structured.Title = opts.CustomTitle
	}
	saved, err := p.store.SaveStructured(ctx, structured, owner)
	if err != nil {
		return nil, err
	}
	logStage(flow, "DONE")
	return saved, nil
}
