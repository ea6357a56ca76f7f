package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"booklend/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string
	root := &cobra.Command{
		Use:           "booklend-migrate",
		Short:         "Apply and inspect BookLend database migrations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", migrationsDir(), "migrations directory")

	withDB := func(fn func(ctx context.Context, db *sql.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			dsn, err := databaseDSN()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, dsn)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			db := stdlib.OpenDBFromPool(pool)
			defer db.Close()

			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			return fn(ctx, db)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withDB(func(ctx context.Context, db *sql.DB) error {
				if err := goose.UpContext(ctx, db, dir); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				logging.Info().Str("dir", dir).Msg("migrations applied")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: withDB(func(ctx context.Context, db *sql.DB) error {
				if err := goose.DownContext(ctx, db, dir); err != nil {
					return fmt.Errorf("roll back migration: %w", err)
				}
				logging.Info().Str("dir", dir).Msg("migration rolled back")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: withDB(func(ctx context.Context, db *sql.DB) error {
				return goose.StatusContext(ctx, db, dir)
			}),
		},
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create a new SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				if err := goose.Create(nil, dir, args[0], "sql"); err != nil {
					return fmt.Errorf("create migration: %w", err)
				}
				return nil
			},
		},
	)
	return root
}
