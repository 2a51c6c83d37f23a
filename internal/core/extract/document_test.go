package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"recipe-importer/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Grandma's Apple Cake</w:t></w:r></w:p>
    <w:p><w:r><w:t>3 apples, </w:t></w:r><w:r><w:t>200 g flour</w:t></w:r></w:p>
    <w:p><w:r><w:t>   </w:t></w:r></w:p>
    <w:p><w:r><w:t>Mix and bake for 40 minutes.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func buildDOCX(t *testing.T, body string, media map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(body))
	require.NoError(t, err)

	for name, data := range media {
		f, err := w.Create("word/media/" + name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 180, G: 90, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractDOCXTextAndImages(t *testing.T) {
	data := buildDOCX(t, docxBody, map[string][]byte{
		"image1.png": testPNG(t, 200, 150),
		"bullet.png": testPNG(t, 16, 16), // decoration, below the size floor
	})

	content, err := NewDocumentExtractor(testConfig()).Extract([]Upload{
		{Name: "cake.docx", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Data: data},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Grandma's Apple Cake",
		"3 apples, 200 g flour",
		"Mix and bake for 40 minutes.",
	}, content.Lines)
	assert.Len(t, content.Images, 1)
}

func TestExtractSkipsLegacyFormats(t *testing.T) {
	docx := buildDOCX(t, docxBody, nil)

	content, err := NewDocumentExtractor(testConfig()).Extract([]Upload{
		{Name: "old.doc", ContentType: "application/msword", Data: []byte("legacy blob")},
		{Name: "cake.docx", Data: docx},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, content.Lines)
}

func TestExtractNoTextIsTypedError(t *testing.T) {
	_, err := NewDocumentExtractor(testConfig()).Extract([]Upload{
		{Name: "old.doc", Data: []byte("legacy blob")},
		{Name: "broken.pdf", Data: []byte("not really a pdf")},
	})
	require.Error(t, err)

	var ie *common.ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, common.ImportCodeNoExtractableText, ie.Code)
}

func TestExtractCapsEmbeddedImages(t *testing.T) {
	media := map[string][]byte{
		"a.png": testPNG(t, 128, 128),
		"b.png": testPNG(t, 128, 128),
		"c.png": testPNG(t, 128, 128),
		"d.png": testPNG(t, 128, 128),
		"e.png": testPNG(t, 128, 128),
	}
	data := buildDOCX(t, docxBody, media)

	cfg := testConfig()
	cfg.Structuring.MaxDocImages = 2

	content, err := NewDocumentExtractor(cfg).Extract([]Upload{{Name: "cake.docx", Data: data}})
	require.NoError(t, err)
	assert.Len(t, content.Images, 2)
}
