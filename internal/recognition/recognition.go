// Package recognition turns a photographed cover or a free-text query into a
// ranked list of book candidates.
package recognition

import (
	"errors"

	"booklend/internal/platform/vision"
)

var (
	ErrNotFound   = errors.New("no matching book found")
	ErrEmptyInput = errors.New("imageBase64 or query is required")
)

// Source identifiers carried by candidates.
const (
	SourceGoogleBooks = "google_books"
	SourceOpenLibrary = "open_library"
)

// Signals is everything the vision service told us about one image.
type Signals struct {
	BestGuessLabels []string
	WebEntities     []vision.WebEntity
	Text            string
	TitleLines      []string
}

// Candidate is a possible identification of a book. It is never persisted.
type Candidate struct {
	Score         float64  `json:"score"`
	ISBN13        string   `json:"isbn13,omitempty"`
	ISBN10        string   `json:"isbn10,omitempty"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedYear *int     `json:"publishedYear,omitempty"`
	CoverURL      string   `json:"coverUrl,omitempty"`
	Source        string   `json:"source"`
	SourceID      string   `json:"sourceId"`
	Language      string   `json:"language,omitempty"`
}

// ISBN returns the preferred identifier, ISBN-13 first.
func (c Candidate) ISBN() string {
	if c.ISBN13 != "" {
		return c.ISBN13
	}
	return c.ISBN10
}

// Refined is a title/author pair extracted by the text-generation model.
type Refined struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}
