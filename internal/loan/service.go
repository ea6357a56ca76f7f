package loan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"booklend/internal/book"
	"booklend/internal/logging"
	"booklend/internal/metrics"
)

const (
	defaultRejectReason = "rejected by owner"
	defaultCancelReason = "cancelled by borrower"
)

type Config struct {
	LoanDays   int
	TokenTTL   time.Duration
	AppBaseURL string
}

type Service struct {
	repo     Repository
	books    BookLookup
	profiles ProfileLookup
	mail     Mailer
	cfg      Config
	now      func() time.Time
}

func NewService(repo Repository, books BookLookup, profiles ProfileLookup, mail Mailer, cfg Config) *Service {
	if cfg.LoanDays <= 0 {
		cfg.LoanDays = 14
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 72 * time.Hour
	}
	cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")
	return &Service{repo: repo, books: books, profiles: profiles, mail: mail, cfg: cfg, now: time.Now}
}

// clock returns the current time at the precision the database keeps.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Request reserves bookID for borrowerID and emails the owner approve and
// reject links.
func (s *Service) Request(ctx context.Context, borrowerID, bookID string) (Result, error) {
	b, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			return Result{}, ErrBookNotFound
		}
		return Result{}, err
	}
	if b.OwnerID == borrowerID {
		return Result{}, ErrSelfLoan
	}

	// Best effort only; Create is what actually serializes requests.
	active, err := s.repo.HasActiveLoan(ctx, bookID)
	if err != nil {
		return Result{}, err
	}
	if active {
		s.record("request", ErrActiveLoanExists)
		return Result{}, ErrActiveLoanExists
	}

	now := s.clock()
	l := Loan{
		ID:          uuid.NewString(),
		BookID:      b.ID,
		OwnerID:     b.OwnerID,
		BorrowerID:  borrowerID,
		Status:      StatusReserved,
		RequestedAt: now,
	}

	links := make(map[Action]string, 2)
	tokens := make([]ActionToken, 0, 2)
	for _, a := range []Action{ActionApprove, ActionReject} {
		raw, err := newRawToken()
		if err != nil {
			return Result{}, fmt.Errorf("mint action token: %w", err)
		}
		links[a] = s.actionURL(raw)
		tokens = append(tokens, ActionToken{Hash: hashToken(raw), LoanID: l.ID, Action: a, ExpiresAt: now.Add(s.cfg.TokenTTL)})
	}

	if err := s.repo.Create(ctx, &l, tokens); err != nil {
		s.record("request", err)
		return Result{}, err
	}
	s.record("request", nil)
	logging.Ctx(ctx).Info().Str("loan_id", l.ID).Str("book_id", l.BookID).Msg("loan requested")

	msg := "Loan requested. The owner has been notified."
	if err := s.notifyOwnerOfRequest(ctx, l, b, links); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("loan_id", l.ID).Msg("owner notification failed")
		msg = "Loan requested, but the owner could not be notified by email."
	}
	return Result{Loan: l, Message: msg}, nil
}

// Approve moves a reserved loan to loaned and sets the due date.
func (s *Service) Approve(ctx context.Context, actorID, loanID string) (Result, error) {
	return s.decide(ctx, actorID, loanID, OpApprove, "")
}

// Reject cancels a reserved loan on the owner's behalf.
func (s *Service) Reject(ctx context.Context, actorID, loanID, reason string) (Result, error) {
	return s.decide(ctx, actorID, loanID, OpReject, reason)
}

func (s *Service) decide(ctx context.Context, actorID, loanID string, op Operation, reason string) (Result, error) {
	l, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return Result{}, err
	}
	if l.OwnerID != actorID {
		s.record(string(op), ErrForbidden)
		return Result{}, ErrForbidden
	}

	to, err := checkTransition(op, l.Status)
	if err != nil {
		s.record(string(op), err)
		return Result{}, err
	}
	t := Transition{LoanID: l.ID, From: StatusReserved, To: to, At: s.clock()}

	if op == OpApprove {
		due := t.At.AddDate(0, 0, s.cfg.LoanDays)
		t.DueAt = &due
	} else {
		t.Reason = reasonOr(reason, defaultRejectReason)
	}

	updated, err := s.repo.Apply(ctx, t)
	s.record(string(op), err)
	if err != nil {
		return Result{}, err
	}
	logging.Ctx(ctx).Info().Str("loan_id", l.ID).Str("op", string(op)).Msg("loan decided")

	msg := "Loan approved. The borrower has been notified."
	if op == OpReject {
		msg = "Loan request rejected. The borrower has been notified."
	}
	if err := s.notifyBorrowerOfDecision(ctx, updated); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("loan_id", l.ID).Msg("borrower notification failed")
		msg = strings.Replace(msg, "The borrower has been notified.", "The borrower could not be notified by email.", 1)
	}
	return Result{Loan: updated, Message: msg}, nil
}

// Cancel withdraws a reserved request. Only the borrower may cancel.
func (s *Service) Cancel(ctx context.Context, actorID, loanID, reason string) (Result, error) {
	l, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return Result{}, err
	}
	if l.BorrowerID != actorID {
		s.record(string(OpCancel), ErrForbidden)
		return Result{}, ErrForbidden
	}
	to, err := checkTransition(OpCancel, l.Status)
	if err != nil {
		s.record(string(OpCancel), err)
		return Result{}, err
	}

	updated, err := s.repo.Apply(ctx, Transition{
		LoanID: l.ID,
		From:   StatusReserved,
		To:     to,
		At:     s.clock(),
		Reason: reasonOr(reason, defaultCancelReason),
	})
	s.record(string(OpCancel), err)
	if err != nil {
		return Result{}, err
	}
	return Result{Loan: updated, Message: "Loan request cancelled."}, nil
}

// Return closes a loaned loan. Either party may record the return.
func (s *Service) Return(ctx context.Context, actorID, loanID string) (Result, error) {
	l, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return Result{}, err
	}
	if actorID != l.OwnerID && actorID != l.BorrowerID {
		s.record(string(OpReturn), ErrForbidden)
		return Result{}, ErrForbidden
	}
	to, err := checkTransition(OpReturn, l.Status)
	if err != nil {
		s.record(string(OpReturn), err)
		return Result{}, err
	}

	updated, err := s.repo.Apply(ctx, Transition{LoanID: l.ID, From: StatusLoaned, To: to, At: s.clock()})
	s.record(string(OpReturn), err)
	if err != nil {
		return Result{}, err
	}
	return Result{Loan: updated, Message: "Book marked as returned."}, nil
}

// ActionPreview describes what redeeming an emailed link would do.
type ActionPreview struct {
	Action    Action
	Loan      Loan
	BookTitle string
	ExpiresAt time.Time
}

// PreviewActionToken checks an emailed link without spending it, so that
// opening the link only shows a confirmation.
func (s *Service) PreviewActionToken(ctx context.Context, rawToken string) (ActionPreview, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ActionPreview{}, ErrInvalidToken
	}
	tok, err := s.repo.PeekActionToken(ctx, hashToken(rawToken), s.clock())
	if err != nil {
		return ActionPreview{}, err
	}
	l, err := s.repo.GetByID(ctx, tok.LoanID)
	if err != nil {
		return ActionPreview{}, err
	}
	op := OpApprove
	if tok.Action == ActionReject {
		op = OpReject
	}
	if l.Status != StatusReserved {
		return ActionPreview{}, &StateError{Op: op, Current: l.Status}
	}

	p := ActionPreview{Action: tok.Action, Loan: l, ExpiresAt: tok.ExpiresAt}
	if b, err := s.books.GetByID(ctx, l.BookID); err == nil {
		p.BookTitle = b.Title
	}
	return p, nil
}

// ApplyActionToken redeems an emailed link. The token is consumed before the
// decision is applied, so a link works at most once even if the decision
// then fails.
func (s *Service) ApplyActionToken(ctx context.Context, rawToken string) (Result, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Result{}, ErrInvalidToken
	}
	tok, err := s.repo.ConsumeActionToken(ctx, hashToken(rawToken), s.clock())
	if err != nil {
		return Result{}, err
	}
	l, err := s.repo.GetByID(ctx, tok.LoanID)
	if err != nil {
		return Result{}, err
	}

	switch tok.Action {
	case ActionApprove:
		return s.decide(ctx, l.OwnerID, l.ID, OpApprove, "")
	case ActionReject:
		return s.decide(ctx, l.OwnerID, l.ID, OpReject, "")
	}
	return Result{}, ErrInvalidAction
}

func (s *Service) ListForUser(ctx context.Context, userID string, role Role, status Status) ([]Loan, error) {
	return s.repo.ListByUser(ctx, userID, role, status)
}

func (s *Service) actionURL(raw string) string {
	return s.cfg.AppBaseURL + "/loan-action?token=" + raw
}

func (s *Service) record(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrStateConflict), errors.Is(err, ErrActiveLoanExists):
		result = "conflict"
	case errors.Is(err, ErrForbidden):
		result = "forbidden"
	default:
		result = "error"
	}
	metrics.LoanTransitions.WithLabelValues(op, result).Inc()
}

func reasonOr(reason, fallback string) *string {
	if r := strings.TrimSpace(reason); r != "" {
		return &r
	}
	return &fallback
}
