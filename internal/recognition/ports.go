package recognition

import (
	"context"

	"booklend/internal/platform/gemini"
	"booklend/internal/platform/googlebooks"
	"booklend/internal/platform/openlibrary"
	"booklend/internal/platform/vision"
)

type Annotator interface {
	Annotate(ctx context.Context, imageBase64 string) (vision.Annotation, error)
}

type BookSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]googlebooks.Volume, error)
}

// FallbackSearcher is consulted when the primary metadata source has nothing.
type FallbackSearcher interface {
	SearchByTitle(ctx context.Context, title, author string, limit int) ([]openlibrary.Doc, error)
}

type TextGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, img *gemini.Image) (string, error)
}
