// Command booklend-remind sends the due-date reminders for one day. It is
// meant to be run by an external scheduler such as cron.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"booklend/internal/config"
	"booklend/internal/logging"
	"booklend/internal/platform/mailer"
	"booklend/internal/reminder"
)

// runner is what the command needs from reminder.Service.
type runner interface {
	Run(ctx context.Context, now time.Time) (reminder.Summary, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openService).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func openService(ctx context.Context) (runner, func(), error) {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.Init(cfg.Logging)

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	svc := reminder.NewService(
		reminder.NewPostgresRepo(pool, cfg.Database.Timeout),
		mailer.NewClient(cfg.Email.APIKey, cfg.Email.From, cfg.Email.BaseURL),
	)
	return svc, pool.Close, nil
}

func newRootCmd(open func(ctx context.Context) (runner, func(), error)) *cobra.Command {
	var (
		date   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:          "booklend-remind",
		Short:        "Email borrowers whose loans are due in two days, tomorrow or today",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now().UTC()
			if date != "" {
				d, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
				now = d
			}

			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			sum, err := svc.Run(cmd.Context(), now)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(sum)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: sent %d, skipped %d, failed %d\n",
				reminder.Day(now), sum.Sent, sum.Skipped, sum.Failed)
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "process this UTC day instead of today (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}
