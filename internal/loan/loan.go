// Package loan implements the borrow cycle of one book: request, owner
// decision, cancellation and return, plus approval through emailed links.
package loan

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("loan not found")
	ErrBookNotFound     = errors.New("book not found")
	ErrForbidden        = errors.New("not allowed to act on this loan")
	ErrSelfLoan         = errors.New("you cannot borrow your own book")
	ErrActiveLoanExists = errors.New("book already has an active loan")
	ErrInvalidToken     = errors.New("link is invalid, expired or already used")
	ErrInvalidAction    = errors.New("action must be approve or reject")
	ErrStateConflict    = errors.New("loan is not in the expected state")
)

type Status string

const (
	StatusReserved  Status = "reserved"
	StatusLoaned    Status = "loaned"
	StatusReturned  Status = "returned"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the status blocks new requests for the book.
func (s Status) Active() bool {
	return s == StatusReserved || s == StatusLoaned
}

type Loan struct {
	ID           string     `json:"id"`
	BookID       string     `json:"book_id"`
	OwnerID      string     `json:"owner_id"`
	BorrowerID   string     `json:"borrower_id"`
	Status       Status     `json:"status"`
	RequestedAt  time.Time  `json:"requested_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	DueAt        *time.Time `json:"due_at,omitempty"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
	CancelReason *string    `json:"cancel_reason,omitempty"`
}

// Action is what an emailed link authorizes.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ActionToken is stored by hash only; the raw token lives in the email.
type ActionToken struct {
	Hash      string
	LoanID    string
	Action    Action
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Result is returned by every operation. Message is shown to the user as is
// and mentions a notification that could not be delivered.
type Result struct {
	Loan    Loan
	Message string
}

// Role selects which side of the loans a listing shows.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleBorrower Role = "borrower"
)
