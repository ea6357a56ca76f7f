package book

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a book is not found.
	ErrNotFound = errors.New("book not found")
	// ErrOnLoan blocks deleting a book with a reserved or loaned copy.
	ErrOnLoan    = errors.New("book has an active loan")
	ErrForbidden = errors.New("only the owner can change this book")
)

// Book is one physical copy in a user's collection. Available is maintained
// by the loan store and is read-only here.
type Book struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	ISBN          *string   `json:"isbn,omitempty"`
	Title         string    `json:"title"`
	Authors       []string  `json:"authors"`
	Publisher     string    `json:"publisher,omitempty"`
	PublishedYear *int      `json:"published_year,omitempty"`
	CoverURL      string    `json:"cover_url,omitempty"`
	Available     bool      `json:"available"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateCommand catalogs a book, typically a candidate the user picked.
type CreateCommand struct {
	ISBN          string   `json:"isbn" validate:"omitempty,isbn"`
	Title         string   `json:"title" validate:"required,min=1,max=300"`
	Authors       []string `json:"authors" validate:"max=20,dive,max=200"`
	Publisher     string   `json:"publisher" validate:"max=200"`
	PublishedYear *int     `json:"published_year" validate:"omitempty,min=0,max=3000"`
	CoverURL      string   `json:"cover_url" validate:"omitempty,url,max=2000"`
}

// Query filters the browse listing. Results are ordered newest first.
type Query struct {
	OwnerID       string
	ExcludeOwner  string
	AvailableOnly bool
	Search        string
	After         CursorData
	Limit         int
}
