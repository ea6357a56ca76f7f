package recognition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/text/language"

	"booklend/internal/logging"
	"booklend/internal/metrics"
	"booklend/internal/platform/gemini"
	"booklend/internal/platform/googlebooks"
	"booklend/internal/platform/openlibrary"
)

const resultsPerQuery = 5

const refinePrompt = `You help people find books. Given the search text below, return the most likely official book title and author as JSON: {"title": "...", "author": "..."}. Use an empty string for an unknown author. If no book matches, return {"title": ""}.

Search text: %s`

const coverPrompt = `This is a photo of a book cover. Return the book's official title and author as JSON: {"title": "...", "author": "..."}. Use an empty string for an unknown author. If you cannot read a title, return {"title": ""}.`

type Service struct {
	vision   Annotator
	books    BookSearcher
	fallback FallbackSearcher
	llm      TextGenerator
}

func NewService(vision Annotator, books BookSearcher, fallback FallbackSearcher, llm TextGenerator) *Service {
	return &Service{vision: vision, books: books, fallback: fallback, llm: llm}
}

// ExtractSignals annotates the image and reduces its OCR text to title lines.
func (s *Service) ExtractSignals(ctx context.Context, imageBase64 string) (Signals, error) {
	a, err := s.vision.Annotate(ctx, imageBase64)
	if err != nil {
		return Signals{}, fmt.Errorf("extract signals: %w", err)
	}
	return Signals{
		BestGuessLabels: a.BestGuessLabels,
		WebEntities:     a.WebEntities,
		Text:            a.Text,
		TitleLines:      ExtractTitleLines(a.Text),
	}, nil
}

// Recognize runs the full image pipeline and returns scored candidates.
func (s *Service) Recognize(ctx context.Context, imageBase64 string, count int) ([]Candidate, error) {
	if strings.TrimSpace(imageBase64) == "" {
		return nil, ErrEmptyInput
	}
	sig, err := s.ExtractSignals(ctx, imageBase64)
	if err != nil {
		return nil, err
	}

	n := ClampCount(count)
	cands, err := s.collect(ctx, BuildQueries(sig), 2*n)
	if err != nil {
		return nil, err
	}
	ranked := Rank(cands, NewSignalBags(sig), n)
	metrics.RecognitionCandidates.WithLabelValues("image").Observe(float64(len(ranked)))
	return ranked, nil
}

// collect runs queries in order until target candidates are gathered. A
// failing query is skipped; the error surfaces only if nothing was found and
// every query failed.
func (s *Service) collect(ctx context.Context, queries []string, target int) ([]Candidate, error) {
	log := logging.Ctx(ctx)
	seen := make(map[string]struct{})
	cands := make([]Candidate, 0, target)

	var lastErr error
	failed := 0
	for _, q := range queries {
		if len(cands) >= target {
			break
		}
		vols, err := s.books.Search(ctx, q, resultsPerQuery)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("query", q).Msg("metadata search failed, skipping query")
			lastErr = err
			failed++
			continue
		}
		for _, v := range vols {
			if _, dup := seen[v.ID]; dup {
				continue
			}
			seen[v.ID] = struct{}{}
			cands = append(cands, fromVolume(v))
		}
	}

	if len(cands) == 0 && failed > 0 && failed == len(queries) {
		return nil, lastErr
	}
	return cands, nil
}

// Refine asks the text-generation model for the official title and author
// behind a free-text query.
func (s *Service) Refine(ctx context.Context, query string) (Refined, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Refined{}, ErrEmptyInput
	}
	out, err := s.llm.GenerateJSON(ctx, fmt.Sprintf(refinePrompt, query), nil)
	return parseRefined(out, err)
}

// IdentifyCover asks the text-generation model to read title and author
// straight off a cover image.
func (s *Service) IdentifyCover(ctx context.Context, imageBase64 string) (Refined, error) {
	if strings.TrimSpace(imageBase64) == "" {
		return Refined{}, ErrEmptyInput
	}
	out, err := s.llm.GenerateJSON(ctx, coverPrompt, &gemini.Image{MIMEType: sniffImageType(imageBase64), Base64: imageBase64})
	return parseRefined(out, err)
}

// SearchByTitle refines query and returns the top matches unscored, falling
// back to the secondary source when the primary has none.
func (s *Service) SearchByTitle(ctx context.Context, query string, count int) ([]Candidate, error) {
	r, err := s.Refine(ctx, query)
	if err != nil {
		return nil, err
	}
	n := ClampCount(count)

	q := `intitle:"` + r.Title + `"`
	if r.Author != "" {
		q += ` inauthor:"` + r.Author + `"`
	}

	var cands []Candidate
	vols, primaryErr := s.books.Search(ctx, q, n)
	if primaryErr != nil {
		logging.Ctx(ctx).Warn().Err(primaryErr).Str("query", q).Msg("primary metadata search failed")
	}
	for _, v := range vols {
		cands = append(cands, fromVolume(v))
	}

	if len(cands) == 0 && s.fallback != nil {
		docs, err := s.fallback.SearchByTitle(ctx, r.Title, r.Author, n)
		if err != nil {
			if primaryErr != nil {
				return nil, primaryErr
			}
			return nil, err
		}
		for _, d := range docs {
			cands = append(cands, fromDoc(d))
		}
	} else if len(cands) == 0 && primaryErr != nil {
		return nil, primaryErr
	}

	if len(cands) > n {
		cands = cands[:n]
	}
	metrics.RecognitionCandidates.WithLabelValues("text").Observe(float64(len(cands)))
	return cands, nil
}

func parseRefined(out string, err error) (Refined, error) {
	if err != nil {
		if errors.Is(err, gemini.ErrEmptyResponse) {
			return Refined{}, ErrNotFound
		}
		return Refined{}, err
	}
	block, ok := extractJSONObject(out)
	if !ok {
		return Refined{}, ErrNotFound
	}
	var r Refined
	if err := json.Unmarshal([]byte(block), &r); err != nil {
		return Refined{}, ErrNotFound
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Author = strings.TrimSpace(r.Author)
	if r.Title == "" {
		return Refined{}, ErrNotFound
	}
	return r, nil
}

// extractJSONObject returns the first balanced {...} block of s, ignoring
// markdown code fences and braces inside strings.
func extractJSONObject(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// sniffImageType guesses the MIME type from the leading base64 characters.
func sniffImageType(b64 string) string {
	switch {
	case strings.HasPrefix(b64, "iVBOR"):
		return "image/png"
	case strings.HasPrefix(b64, "UklGR"):
		return "image/webp"
	}
	return "image/jpeg"
}

func fromVolume(v googlebooks.Volume) Candidate {
	return Candidate{
		ISBN13:        v.ISBN13,
		ISBN10:        v.ISBN10,
		Title:         v.Title,
		Authors:       nonNil(v.Authors),
		Publisher:     v.Publisher,
		PublishedYear: ParseYear(v.PublishedDate),
		CoverURL:      v.Thumbnail,
		Source:        SourceGoogleBooks,
		SourceID:      v.ID,
		Language:      v.Language,
	}
}

func fromDoc(d openlibrary.Doc) Candidate {
	c := Candidate{
		Title:    d.Title,
		Authors:  nonNil(d.AuthorNames),
		CoverURL: d.CoverURL(),
		Source:   SourceOpenLibrary,
		SourceID: d.Key,
	}
	for _, isbn := range d.ISBN {
		switch {
		case len(isbn) == 13 && c.ISBN13 == "":
			c.ISBN13 = isbn
		case len(isbn) == 10 && c.ISBN10 == "":
			c.ISBN10 = isbn
		}
	}
	if len(d.Publishers) > 0 {
		c.Publisher = d.Publishers[0]
	}
	if d.FirstPublishYear > 0 {
		y := d.FirstPublishYear
		c.PublishedYear = &y
	}
	if len(d.Language) > 0 {
		c.Language = languageTag(d.Language[0])
	}
	return c
}

// languageTag maps Open Library's three-letter codes ("kor") to the two-letter
// form Google Books uses ("ko").
func languageTag(code string) string {
	base, err := language.ParseBase(code)
	if err != nil {
		return code
	}
	return base.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
