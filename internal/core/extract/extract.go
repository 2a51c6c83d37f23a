// Package extract contains the three source extraction strategies feeding
// the ingestion pipeline: webpage scrape, image-set vision extraction and
// document text extraction. All three produce raw material for the
// structuring stage; none of them invents a title — the "Untitled" default
// belongs to the persistence boundary.
package extract

// RawExtraction is the intermediate representation a source extractor
// produces and the structuring stage consumes once. Never persisted.
type RawExtraction struct {
	Title        string
	Ingredients  []string
	Instructions []string
	CookTime     string
	Portions     string
	ImageURL     string
}

// Upload is one user-supplied file carried across the queue boundary as
// opaque bytes.
type Upload struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}
