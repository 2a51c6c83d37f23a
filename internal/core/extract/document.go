package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"image"
	"io"
	"path"
	"strings"

	img "recipe-importer/internal/core/image"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// DocumentContent is everything an uploaded document yields: its text, one
// line per paragraph, plus any embedded images worth considering as a hero
// photo.
type DocumentContent struct {
	Lines  []string
	Images [][]byte
}

// DocumentExtractor pulls text and images out of uploaded PDF and DOCX
// files. Legacy formats (.doc, .rtf) are skipped with a log line rather than
// failing the whole import.
type DocumentExtractor struct {
	config *config.Config
}

// NewDocumentExtractor creates a document extractor.
func NewDocumentExtractor(cfg *config.Config) *DocumentExtractor {
	return &DocumentExtractor{config: cfg}
}

// Extract processes every upload and merges the results. It fails with
// no_extractable_text only when none of the documents produced any text.
func (d *DocumentExtractor) Extract(uploads []Upload) (*DocumentContent, error) {
	content := &DocumentContent{}

	for _, upload := range uploads {
		switch strings.ToLower(path.Ext(upload.Name)) {
		case ".pdf":
			d.extractPDF(upload, content)
		case ".docx":
			d.extractDOCX(upload, content)
		default:
			common.LogWarn("Skipping unsupported document format",
				zap.String("file", upload.Name),
			)
		}
	}

	if len(content.Lines) == 0 {
		return nil, common.NewImportError(common.ImportCodeNoExtractableText,
			"We couldn't find any text in those documents.", nil)
	}

	if max := d.config.Structuring.MaxDocImages; len(content.Images) > max {
		content.Images = content.Images[:max]
	}
	for i, data := range content.Images {
		content.Images[i] = img.Downscale(data, d.config.Image.MaxSide)
	}

	common.LogInfo("Documents extracted",
		zap.Int("documents", len(uploads)),
		zap.Int("lines", len(content.Lines)),
		zap.Int("images", len(content.Images)),
	)
	return content, nil
}

func (d *DocumentExtractor) extractPDF(upload Upload, content *DocumentContent) {
	reader, err := pdf.NewReader(bytes.NewReader(upload.Data), int64(len(upload.Data)))
	if err != nil {
		common.LogWarn("Failed to open PDF",
			zap.String("file", upload.Name),
			zap.Error(err),
		)
		return
	}

	pages := reader.NumPage()
	if max := d.config.Structuring.PDFMaxPages; pages > max {
		pages = max
	}

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			common.LogWarn("Failed to read PDF page",
				zap.String("file", upload.Name),
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		appendLines(&content.Lines, text)
	}

	content.Images = append(content.Images, scanJPEGStreams(upload.Data)...)
}

// docxDocument maps just enough of word/document.xml to walk paragraphs and
// their text runs.
type docxDocument struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text string `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

func (d *DocumentExtractor) extractDOCX(upload Upload, content *DocumentContent) {
	archive, err := zip.NewReader(bytes.NewReader(upload.Data), int64(len(upload.Data)))
	if err != nil {
		common.LogWarn("Failed to open DOCX",
			zap.String("file", upload.Name),
			zap.Error(err),
		)
		return
	}

	for _, file := range archive.File {
		switch {
		case file.Name == "word/document.xml":
			data, err := readZipFile(file)
			if err != nil {
				common.LogWarn("Failed to read DOCX body",
					zap.String("file", upload.Name),
					zap.Error(err),
				)
				continue
			}
			var doc docxDocument
			if err := xml.Unmarshal(data, &doc); err != nil {
				common.LogWarn("Failed to parse DOCX body",
					zap.String("file", upload.Name),
					zap.Error(err),
				)
				continue
			}
			for _, para := range doc.Body.Paragraphs {
				var sb strings.Builder
				for _, run := range para.Runs {
					sb.WriteString(run.Text)
				}
				if line := strings.TrimSpace(sb.String()); line != "" {
					content.Lines = append(content.Lines, line)
				}
			}

		case strings.HasPrefix(file.Name, "word/media/"):
			data, err := readZipFile(file)
			if err != nil {
				continue
			}
			if isDecodableImage(data) {
				content.Images = append(content.Images, data)
			}
		}
	}
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func appendLines(lines *[]string, text string) {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			*lines = append(*lines, line)
		}
	}
}

var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF}
	jpegEOI = []byte{0xFF, 0xD9}
)

// scanJPEGStreams finds embedded JPEG images by their SOI/EOI markers.
// Candidates that don't survive a real decode are discarded, so marker
// collisions inside other stream data are harmless.
func scanJPEGStreams(data []byte) [][]byte {
	var images [][]byte
	offset := 0
	for {
		start := bytes.Index(data[offset:], jpegSOI)
		if start < 0 {
			break
		}
		start += offset
		end := bytes.Index(data[start:], jpegEOI)
		if end < 0 {
			break
		}
		end += start + len(jpegEOI)
		candidate := data[start:end]
		if isDecodableImage(candidate) {
			images = append(images, candidate)
		}
		offset = end
	}
	return images
}

func isDecodableImage(data []byte) bool {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return false
	}
	// Tiny assets are decoration (bullets, rules), not recipe photos.
	return cfg.Width >= 64 && cfg.Height >= 64
}
