package loan

import (
	"context"
	"errors"
	"sync"
	"time"

	"booklend/internal/book"
	"booklend/internal/platform/mailer"
	"booklend/internal/profile"
)

// memRepo keeps loans in memory. With guard set, Create refuses a second
// active loan for a book the way the database index does.
type memRepo struct {
	mu      sync.Mutex
	guard   bool
	loans   map[string]Loan
	tokens  map[string]ActionToken
	barrier *sync.WaitGroup
}

func newMemRepo(guard bool) *memRepo {
	return &memRepo{guard: guard, loans: map[string]Loan{}, tokens: map[string]ActionToken{}}
}

func (r *memRepo) GetByID(_ context.Context, id string) (Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loans[id]
	if !ok {
		return Loan{}, ErrNotFound
	}
	return l, nil
}

func (r *memRepo) activeFor(bookID string) bool {
	for _, l := range r.loans {
		if l.BookID == bookID && l.Status.Active() {
			return true
		}
	}
	return false
}

func (r *memRepo) HasActiveLoan(_ context.Context, bookID string) (bool, error) {
	r.mu.Lock()
	active := r.activeFor(bookID)
	r.mu.Unlock()
	if r.barrier != nil {
		r.barrier.Done()
		r.barrier.Wait()
	}
	return active, nil
}

func (r *memRepo) Create(_ context.Context, l *Loan, tokens []ActionToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.guard && r.activeFor(l.BookID) {
		return ErrActiveLoanExists
	}
	r.loans[l.ID] = *l
	for _, t := range tokens {
		r.tokens[t.Hash] = t
	}
	return nil
}

func (r *memRepo) Apply(_ context.Context, t Transition) (Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loans[t.LoanID]
	if !ok {
		return Loan{}, ErrNotFound
	}
	if l.Status != t.From {
		return Loan{}, &StateError{Op: opFor(t), Current: l.Status}
	}
	at := t.At
	l.Status = t.To
	switch t.To {
	case StatusLoaned:
		l.ApprovedAt = &at
		l.DueAt = t.DueAt
	case StatusReturned:
		l.ReturnedAt = &at
	case StatusCancelled:
		l.CancelReason = t.Reason
	}
	r.loans[l.ID] = l
	return l, nil
}

func (r *memRepo) ConsumeActionToken(_ context.Context, hash string, now time.Time) (ActionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[hash]
	if !ok || tok.UsedAt != nil || !tok.ExpiresAt.After(now) {
		return ActionToken{}, ErrInvalidToken
	}
	for h, t := range r.tokens {
		if t.LoanID == tok.LoanID && t.UsedAt == nil {
			used := now
			t.UsedAt = &used
			r.tokens[h] = t
		}
	}
	return tok, nil
}

func (r *memRepo) PeekActionToken(_ context.Context, hash string, now time.Time) (ActionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[hash]
	if !ok || tok.UsedAt != nil || !tok.ExpiresAt.After(now) {
		return ActionToken{}, ErrInvalidToken
	}
	return tok, nil
}

func (r *memRepo) ListByUser(_ context.Context, userID string, role Role, status Status) ([]Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Loan
	for _, l := range r.loans {
		party := l.BorrowerID
		if role == RoleOwner {
			party = l.OwnerID
		}
		if party == userID && (status == "" || l.Status == status) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memRepo) activeCount(bookID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.loans {
		if l.BookID == bookID && l.Status.Active() {
			n++
		}
	}
	return n
}

type fakeBooks map[string]book.Book

func (f fakeBooks) GetByID(_ context.Context, id string) (book.Book, error) {
	b, ok := f[id]
	if !ok {
		return book.Book{}, book.ErrNotFound
	}
	return b, nil
}

type fakeProfiles map[string]profile.Profile

func (f fakeProfiles) GetByID(_ context.Context, id string) (profile.Profile, error) {
	p, ok := f[id]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	fail bool
	sent []mailer.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("email provider unavailable")
	}
	m.sent = append(m.sent, msg)
	return "msg-1", nil
}

func (m *fakeMailer) last() mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return mailer.Message{}
	}
	return m.sent[len(m.sent)-1]
}
