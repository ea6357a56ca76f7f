package book

import (
	"context"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service provides book-related business logic.
type Service struct {
	repo Repository
}

// NewService creates a new book service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create adds a book to ownerID's collection.
func (s *Service) Create(ctx context.Context, ownerID string, cmd CreateCommand) (Book, error) {
	b := Book{
		OwnerID:       ownerID,
		Title:         strings.TrimSpace(cmd.Title),
		Authors:       cleanAuthors(cmd.Authors),
		Publisher:     strings.TrimSpace(cmd.Publisher),
		PublishedYear: cmd.PublishedYear,
		CoverURL:      cmd.CoverURL,
		Available:     true,
	}
	if isbn := normalizeISBN(cmd.ISBN); isbn != "" {
		b.ISBN = &isbn
	}
	if err := s.repo.Create(ctx, &b); err != nil {
		return Book{}, err
	}
	return b, nil
}

// GetByID returns a book by its id.
func (s *Service) GetByID(ctx context.Context, id string) (Book, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page and the cursor for the next one, empty on the last
// page.
func (s *Service) List(ctx context.Context, q Query) ([]Book, string, error) {
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	want := q.Limit
	q.Limit++

	books, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, "", err
	}

	var next string
	if len(books) > want {
		books = books[:want]
		last := books[want-1]
		next = EncodeCursor(CursorData{AfterID: last.ID, CreatedAt: last.CreatedAt})
	}
	return books, next, nil
}

func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	return s.repo.Delete(ctx, id, ownerID)
}

func normalizeISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	return strings.ToUpper(strings.ReplaceAll(isbn, " ", ""))
}

func cleanAuthors(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
