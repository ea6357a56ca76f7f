package book

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

const bookColumns = `id, owner_id, isbn, title, authors, publisher, published_year, cover_url, available, created_at`

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.OwnerID, &b.ISBN, &b.Title, &b.Authors, &b.Publisher,
		&b.PublishedYear, &b.CoverURL, &b.Available, &b.CreatedAt)
	if b.Authors == nil {
		b.Authors = []string{}
	}
	return b, err
}

func (r *PostgresRepo) Create(ctx context.Context, b *Book) error {
	const sql = `
		INSERT INTO books (owner_id, isbn, title, authors, publisher, published_year, cover_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, available, created_at`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.db.QueryRow(timeoutCtx, sql,
		b.OwnerID, b.ISBN, b.Title, b.Authors, b.Publisher, b.PublishedYear, b.CoverURL,
	).Scan(&b.ID, &b.Available, &b.CreatedAt)
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	b, err := scanBook(r.db.QueryRow(timeoutCtx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]Book, error) {
	clauses := []string{"1=1"}
	args := []any{}
	argn := 1

	if q.OwnerID != "" {
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", argn))
		args = append(args, q.OwnerID)
		argn++
	}

	if q.ExcludeOwner != "" {
		clauses = append(clauses, fmt.Sprintf("owner_id <> $%d", argn))
		args = append(args, q.ExcludeOwner)
		argn++
	}

	if q.AvailableOnly {
		clauses = append(clauses, "available")
	}

	if q.Search != "" {
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR array_to_string(authors, ' ') ILIKE $%d OR isbn = $%d)", argn, argn, argn+1))
		args = append(args, "%"+q.Search+"%", q.Search)
		argn += 2
	}

	if !q.After.IsZero() {
		clauses = append(clauses, fmt.Sprintf("(created_at, id) < ($%d, $%d)", argn, argn+1))
		args = append(args, q.After.CreatedAt, q.After.AfterID)
		argn += 2
	}

	query := fmt.Sprintf(`SELECT %s FROM books WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		bookColumns, strings.Join(clauses, " AND "), argn)
	args = append(args, q.Limit)

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Delete removes the book unless it is lent out. The loan history goes with
// it through ON DELETE CASCADE.
func (r *PostgresRepo) Delete(ctx context.Context, id, ownerID string) error {
	const sql = `
		DELETE FROM books b
		WHERE b.id = $1 AND b.owner_id = $2
		  AND NOT EXISTS (
		      SELECT 1 FROM loans l WHERE l.book_id = b.id AND l.status IN ('reserved', 'loaned'))`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, sql, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var owner string
	err = r.db.QueryRow(timeoutCtx, `SELECT owner_id FROM books WHERE id = $1`, id).Scan(&owner)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return err
	case owner != ownerID:
		return ErrForbidden
	}
	return ErrOnLoan
}
