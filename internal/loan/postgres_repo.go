package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation       = "23505"
	oneActivePerBookIndex = "loans_one_active_per_book"
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

const loanColumns = `id, book_id, owner_id, borrower_id, status, requested_at, approved_at, due_at, returned_at, cancel_reason`

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	err := row.Scan(&l.ID, &l.BookID, &l.OwnerID, &l.BorrowerID, &l.Status, &l.RequestedAt,
		&l.ApprovedAt, &l.DueAt, &l.ReturnedAt, &l.CancelReason)
	return l, err
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Loan, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	l, err := scanLoan(r.db.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, ErrNotFound
	}
	return l, err
}

func (r *PostgresRepo) HasActiveLoan(ctx context.Context, bookID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM loans WHERE book_id = $1 AND status IN ('reserved', 'loaned'))`,
		bookID).Scan(&exists)
	return exists, err
}

// Create relies on the partial unique index loans_one_active_per_book; the
// NOT EXISTS guard only avoids burning a unique violation in the common case.
func (r *PostgresRepo) Create(ctx context.Context, l *Loan, tokens []ActionToken) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		const insert = `
			INSERT INTO loans (id, book_id, owner_id, borrower_id, status, requested_at)
			SELECT $1::uuid, $2::uuid, $3::uuid, $4::uuid, 'reserved', $5::timestamptz
			WHERE NOT EXISTS (
			    SELECT 1 FROM loans WHERE book_id = $2::uuid AND status IN ('reserved', 'loaned'))`
		tag, err := tx.Exec(ctx, insert, l.ID, l.BookID, l.OwnerID, l.BorrowerID, l.RequestedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrActiveLoanExists
		}

		if _, err := tx.Exec(ctx, `UPDATE books SET available = false WHERE id = $1`, l.BookID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, t := range tokens {
			batch.Queue(`INSERT INTO loan_action_tokens (token_hash, loan_id, action, expires_at) VALUES ($1, $2, $3, $4)`,
				t.Hash, t.LoanID, string(t.Action), t.ExpiresAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == oneActivePerBookIndex {
		return ErrActiveLoanExists
	}
	return err
}

func (r *PostgresRepo) Apply(ctx context.Context, t Transition) (Loan, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var updated Loan
	var missed bool
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		const update = `
			UPDATE loans SET
			    status        = $3,
			    approved_at   = CASE WHEN $3 = 'loaned' THEN $4 ELSE approved_at END,
			    due_at        = CASE WHEN $3 = 'loaned' THEN $5 ELSE due_at END,
			    returned_at   = CASE WHEN $3 = 'returned' THEN $4 ELSE returned_at END,
			    cancel_reason = CASE WHEN $3 = 'cancelled' THEN $6 ELSE cancel_reason END
			WHERE id = $1 AND status = $2
			RETURNING ` + loanColumns

		var err error
		updated, err = scanLoan(tx.QueryRow(ctx, update, t.LoanID, string(t.From), string(t.To), t.At, t.DueAt, t.Reason))
		if errors.Is(err, pgx.ErrNoRows) {
			missed = true
			return nil
		}
		if err != nil {
			return err
		}

		const availability = `
			UPDATE books b SET available = NOT EXISTS (
			    SELECT 1 FROM loans l WHERE l.book_id = b.id AND l.status IN ('reserved', 'loaned'))
			WHERE b.id = $1`
		_, err = tx.Exec(ctx, availability, updated.BookID)
		return err
	})
	if err != nil {
		return Loan{}, err
	}
	if !missed {
		return updated, nil
	}

	current, err := r.GetByID(ctx, t.LoanID)
	if err != nil {
		return Loan{}, err
	}
	return Loan{}, &StateError{Op: opFor(t), Current: current.Status}
}

func opFor(t Transition) Operation {
	switch {
	case t.To == StatusLoaned:
		return OpApprove
	case t.To == StatusReturned:
		return OpReturn
	}
	return OpCancel
}

func (r *PostgresRepo) ConsumeActionToken(ctx context.Context, hash string, now time.Time) (ActionToken, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var tok ActionToken
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		const consume = `
			UPDATE loan_action_tokens SET used_at = $2
			WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
			RETURNING token_hash, loan_id, action, expires_at, used_at`
		var action string
		err := tx.QueryRow(ctx, consume, hash, now).Scan(&tok.Hash, &tok.LoanID, &action, &tok.ExpiresAt, &tok.UsedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidToken
		}
		if err != nil {
			return err
		}
		tok.Action = Action(action)

		// The approve and reject links of one request are spent together.
		_, err = tx.Exec(ctx, `UPDATE loan_action_tokens SET used_at = $2 WHERE loan_id = $1 AND used_at IS NULL`, tok.LoanID, now)
		return err
	})
	if err != nil {
		return ActionToken{}, err
	}
	return tok, nil
}

func (r *PostgresRepo) PeekActionToken(ctx context.Context, hash string, now time.Time) (ActionToken, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const peek = `
		SELECT token_hash, loan_id, action, expires_at, used_at FROM loan_action_tokens
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2`
	var tok ActionToken
	var action string
	err := r.db.QueryRow(ctx, peek, hash, now).Scan(&tok.Hash, &tok.LoanID, &action, &tok.ExpiresAt, &tok.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ActionToken{}, ErrInvalidToken
	}
	if err != nil {
		return ActionToken{}, err
	}
	tok.Action = Action(action)
	return tok, nil
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string, role Role, status Status) ([]Loan, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	column := "borrower_id"
	if role == RoleOwner {
		column = "owner_id"
	}
	query := fmt.Sprintf(`SELECT %s FROM loans WHERE %s = $1 AND ($2 = '' OR status = $2) ORDER BY requested_at DESC LIMIT 200`,
		loanColumns, column)

	rows, err := r.db.Query(ctx, query, userID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Loan{}
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
