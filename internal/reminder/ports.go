package reminder

import (
	"context"
	"time"

	"booklend/internal/platform/mailer"
)

type Repository interface {
	// ListDueOn returns loaned loans whose due date falls on day (YYYY-MM-DD, UTC).
	ListDueOn(ctx context.Context, day string) ([]Due, error)
	HasNotification(ctx context.Context, loanID string, kind Kind) (bool, error)
	// RecordNotification reports false when the pair was already recorded.
	RecordNotification(ctx context.Context, loanID string, kind Kind, at time.Time) (bool, error)
}

type Mailer interface {
	Send(ctx context.Context, m mailer.Message) (string, error)
}
