package pipeline

import (
	"context"
	"strings"

	"recipe-importer/internal/core/extract"
	"recipe-importer/internal/core/recipe"
	"recipe-importer/internal/core/store"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// FromURL scrapes a recipe page, structures it and attaches the page's hero
// image when one can be fetched. A missing or broken hero image never fails
// the flow.
func (p *Pipeline) FromURL(ctx context.Context, url, owner string, opts Options) (*store.Recipe, error) {
	logStage("url", "EXTRACTING")
	raw, err := p.scraper.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	logStage("url", "STRUCTURING")
	structured, err := p.structurer.Structure(ctx, raw.Ingredients, raw.Instructions, opts.TransformVegan, opts.CustomInstructions)
	if err != nil {
		return nil, wrapImport(common.ImportCodeURLFailed,
			"Importing from that page failed. Please try again.", err)
	}
	structured.Title = raw.Title
	structured.CookTime = recipe.FlexString(raw.CookTime)
	structured.Portions = recipe.FlexString(raw.Portions)

	if raw.ImageURL != "" {
		logStage("url", "IMAGE_REFINING")
		if data, derr := p.downloader.Download(ctx, raw.ImageURL); derr != nil {
			common.LogWarn("Hero image download failed",
				zap.String("image_url", raw.ImageURL),
				zap.Error(derr),
			)
		} else {
			structured.ImageBytes = p.refiner.Refine(data)
		}
	}

	saved, err := p.persist(ctx, "url", structured, owner, opts)
	if err != nil {
		return nil, wrapImport(common.ImportCodeURLFailed,
			"Importing from that page failed. Please try again.", err)
	}
	return saved, nil
}

// FromImages reads the recipe out of uploaded photos with the vision model,
// then picks and refines a hero image from the originals. Unlike the other
// flows, no usable hero image here is fatal: a photo import that cannot
// produce a dish photo has nothing to show for itself.
func (p *Pipeline) FromImages(ctx context.Context, images [][]byte, owner string, opts Options) (*store.Recipe, error) {
	logStage("image", "EXTRACTING")
	structured, err := p.vision.Extract(ctx, images)
	if err != nil {
		return nil, err
	}

	logStage("image", "IMAGE_REFINING")
	score, winner := p.selector.SelectBest(ctx, images)
	if winner == nil {
		return nil, common.NewImportError(common.ImportCodeNoMainImage,
			"None of the photos shows the finished dish. Please add one and try again.", nil)
	}
	common.LogInfo("Hero image selected",
		zap.Float64("confidence", score.Confidence),
	)
	structured.ImageBytes = p.refiner.Refine(winner)

	saved, err := p.persist(ctx, "image", structured, owner, opts)
	if err != nil {
		return nil, wrapImport(common.ImportCodeImageFailed,
			"Importing from those images failed. Please try again.", err)
	}
	return saved, nil
}

// FromDocuments extracts text and embedded images from uploaded documents
// and feeds the text through the structuring stage. A hero image is picked
// from the embedded images when possible; absence is not fatal.
func (p *Pipeline) FromDocuments(ctx context.Context, uploads []extract.Upload, owner string, opts Options) (*store.Recipe, error) {
	logStage("document", "EXTRACTING")
	content, err := p.documents.Extract(uploads)
	if err != nil {
		return nil, err
	}
	return p.structureDocumentContent(ctx, "document", content, owner, opts)
}

// FromMixed handles a mixed bag of image and document uploads. Document text
// wins when any document yields structure; only then does the flow fall back
// to reading the recipe out of the photos. Hero candidates come from every
// image present, standalone or embedded.
func (p *Pipeline) FromMixed(ctx context.Context, uploads []extract.Upload, owner string, opts Options) (*store.Recipe, error) {
	var (
		documents []extract.Upload
		photos    [][]byte
	)
	for _, upload := range uploads {
		if isImageUpload(upload) {
			photos = append(photos, upload.Data)
		} else {
			documents = append(documents, upload)
		}
	}

	logStage("mixed", "EXTRACTING")
	var content *extract.DocumentContent
	if len(documents) > 0 {
		if extracted, err := p.documents.Extract(documents); err != nil {
			common.LogWarn("Document extraction failed, falling back to photos",
				zap.Error(err),
			)
		} else {
			content = extracted
		}
	}

	var structured *recipe.StructuredRecipe
	switch {
	case content != nil:
		content.Images = append(content.Images, photos...)
		saved, err := p.structureDocumentContent(ctx, "mixed", content, owner, opts)
		if err != nil {
			return nil, wrapImport(common.ImportCodeMixedFailed,
				"Importing those files failed. Please try again.", err)
		}
		return saved, nil
	case len(photos) > 0:
		var err error
		structured, err = p.vision.Extract(ctx, photos)
		if err != nil {
			return nil, wrapImport(common.ImportCodeMixedFailed,
				"Importing those files failed. Please try again.", err)
		}
	default:
		return nil, common.NewImportError(common.ImportCodeMixedFailed,
			"None of the uploaded files could be imported.", nil)
	}

	p.attachHero(ctx, "mixed", structured, photos)

	saved, err := p.persist(ctx, "mixed", structured, owner, opts)
	if err != nil {
		return nil, wrapImport(common.ImportCodeMixedFailed,
			"Importing those files failed. Please try again.", err)
	}
	return saved, nil
}

func (p *Pipeline) structureDocumentContent(ctx context.Context, flow string, content *extract.DocumentContent, owner string, opts Options) (*store.Recipe, error) {
	logStage(flow, "STRUCTURING")
	structured, err := p.structurer.Structure(ctx, content.Lines, nil, opts.TransformVegan, opts.CustomInstructions)
	if err != nil {
		return nil, wrapImport(common.ImportCodeMixedFailed,
			"Importing those files failed. Please try again.", err)
	}

	p.attachHero(ctx, flow, structured, content.Images)

	return p.persist(ctx, flow, structured, owner, opts)
}

// attachHero tries to pick and refine a hero image from candidates. Failure
// leaves the recipe imageless.
func (p *Pipeline) attachHero(ctx context.Context, flow string, structured *recipe.StructuredRecipe, candidates [][]byte) {
	if len(candidates) == 0 {
		return
	}
	logStage(flow, "IMAGE_REFINING")
	if _, winner := p.selector.SelectBest(ctx, candidates); winner != nil {
		structured.ImageBytes = p.refiner.Refine(winner)
	}
}

const minManualLength = 40

// FromText imports pasted free text. With LLM assist the text goes through
// the structuring stage; without it a minimal heuristic applies, so inputs
// too thin for that heuristic are rejected up front.
func (p *Pipeline) FromText(ctx context.Context, text, owner string, opts Options) (*store.Recipe, error) {
	text = strings.TrimSpace(text)

	var structured *recipe.StructuredRecipe
	if opts.UseLLM {
		logStage("text", "STRUCTURING")
		lines := nonBlankLines(text)
		result, err := p.structurer.Structure(ctx, lines, nil, opts.TransformVegan, opts.CustomInstructions)
		if err != nil {
			return nil, wrapImport(common.ImportCodeManualFailed,
				"Importing that text failed. Please try again.", err)
		}
		structured = result
	} else {
		if len(text) < minManualLength && !strings.Contains(text, "\n") {
			return nil, common.NewImportError(common.ImportCodeTooAmbiguous,
				"That text is too short to read a recipe from. Please add more detail.", nil)
		}
		structured = heuristicStructure(text)
	}

	saved, err := p.persist(ctx, "text", structured, owner, opts)
	if err != nil {
		return nil, wrapImport(common.ImportCodeManualFailed,
			"Importing that text failed. Please try again.", err)
	}
	return saved, nil
}

// heuristicStructure is the no-model path: first line becomes the title,
// remaining non-blank lines become instructions, no ingredients.
func heuristicStructure(text string) *recipe.StructuredRecipe {
	lines := nonBlankLines(text)
	structured := &recipe.StructuredRecipe{}
	if len(lines) > 0 {
		structured.Title = lines[0]
		structured.Instructions = lines[1:]
	}
	structured.Normalize()
	return structured
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

func isImageUpload(upload extract.Upload) bool {
	if imageContentTypes[strings.ToLower(upload.ContentType)] {
		return true
	}
	lower := strings.ToLower(upload.Name)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
