package loan

import (
	"context"
	"time"

	"booklend/internal/book"
	"booklend/internal/platform/mailer"
	"booklend/internal/profile"
)

// Transition is a conditional status change: it applies only while the loan
// is still in From.
type Transition struct {
	LoanID string
	From   Status
	To     Status
	At     time.Time
	DueAt  *time.Time
	Reason *string
}

type Repository interface {
	GetByID(ctx context.Context, id string) (Loan, error)
	HasActiveLoan(ctx context.Context, bookID string) (bool, error)
	// Create inserts a reserved loan together with its action tokens. It
	// returns ErrActiveLoanExists when another active loan won the race.
	Create(ctx context.Context, l *Loan, tokens []ActionToken) error
	// Apply performs t atomically. When the loan has left t.From meanwhile it
	// returns a *StateError carrying the current status and changes nothing.
	Apply(ctx context.Context, t Transition) (Loan, error)
	// ConsumeActionToken marks the token and its sibling used. Unknown,
	// expired and used tokens give ErrInvalidToken.
	ConsumeActionToken(ctx context.Context, hash string, now time.Time) (ActionToken, error)
	// PeekActionToken returns a still redeemable token without spending it.
	PeekActionToken(ctx context.Context, hash string, now time.Time) (ActionToken, error)
	ListByUser(ctx context.Context, userID string, role Role, status Status) ([]Loan, error)
}

type BookLookup interface {
	GetByID(ctx context.Context, id string) (book.Book, error)
}

type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (profile.Profile, error)
}

type Mailer interface {
	Send(ctx context.Context, m mailer.Message) (string, error)
}
