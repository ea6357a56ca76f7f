package book

import (
	"context"
)

// Repository defines the contract for book data storage.
type Repository interface {
	Create(ctx context.Context, b *Book) error
	GetByID(ctx context.Context, id string) (Book, error)
	List(ctx context.Context, q Query) ([]Book, error)
	Delete(ctx context.Context, id, ownerID string) error
}
