package profile

import (
	"context"
	"errors"
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

const profileColumns = `id, display_name, COALESCE(email, ''), created_at, updated_at`

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.DisplayName, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	return p, err
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Profile, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}

func (r *PostgresRepo) Ensure(ctx context.Context, id, email string) (Profile, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const q = `
		INSERT INTO profiles (id, display_name, email)
		VALUES ($1, '', NULLIF($2, ''))
		ON CONFLICT (id) DO UPDATE
		SET email = COALESCE(EXCLUDED.email, profiles.email)
		RETURNING ` + profileColumns
	return scanProfile(r.db.QueryRow(ctx, q, id, email))
}

func (r *PostgresRepo) UpdateDisplayName(ctx context.Context, id, name string) (Profile, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const q = `UPDATE profiles SET display_name = $2, updated_at = now() WHERE id = $1 RETURNING ` + profileColumns
	return scanProfile(r.db.QueryRow(ctx, q, id, name))
}
