package reminder

import (
	"context"
	"time"

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
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) ListDueOn(ctx context.Context, day string) ([]Due, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const sql = `
		SELECT l.id, b.title, COALESCE(p.email, ''), COALESCE(p.display_name, ''), l.due_at
		FROM loans l
		JOIN books b ON b.id = l.book_id
		LEFT JOIN profiles p ON p.id = l.borrower_id
		WHERE l.status = 'loaned'
		  AND (l.due_at AT TIME ZONE 'UTC')::date = $1::date
		ORDER BY l.due_at, l.id`

	rows, err := r.db.Query(ctx, sql, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Due
	for rows.Next() {
		var d Due
		if err := rows.Scan(&d.LoanID, &d.BookTitle, &d.BorrowerEmail, &d.BorrowerName, &d.DueAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) HasNotification(ctx context.Context, loanID string, kind Kind) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE loan_id = $1 AND kind = $2)`,
		loanID, string(kind)).Scan(&exists)
	return exists, err
}

func (r *PostgresRepo) RecordNotification(ctx context.Context, loanID string, kind Kind, at time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const sql = `
		INSERT INTO notifications (loan_id, kind, sent_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (loan_id, kind) DO NOTHING`
	tag, err := r.db.Exec(ctx, sql, loanID, string(kind), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
