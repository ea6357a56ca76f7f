package loan

import (
	"context"
	"fmt"
	"html"

	"booklend/internal/book"
	"booklend/internal/platform/mailer"
)

func (s *Service) notifyOwnerOfRequest(ctx context.Context, l Loan, b book.Book, links map[Action]string) error {
	owner, err := s.profiles.GetByID(ctx, l.OwnerID)
	if err != nil {
		return fmt.Errorf("load owner profile: %w", err)
	}
	borrower := s.displayName(ctx, l.BorrowerID)

	subject := fmt.Sprintf("%s wants to borrow %q", borrower, b.Title)
	text := fmt.Sprintf("%s asked to borrow your copy of %q.\n\nApprove: %s\nReject: %s\n\nThese links expire in %d hours.\n",
		borrower, b.Title, links[ActionApprove], links[ActionReject], int(s.cfg.TokenTTL.Hours()))
	body := fmt.Sprintf(`<p>%s asked to borrow your copy of <strong>%s</strong>.</p>
<p><a href="%s">Approve</a> &middot; <a href="%s">Reject</a></p>
<p>These links expire in %d hours.</p>`,
		html.EscapeString(borrower), html.EscapeString(b.Title),
		html.EscapeString(links[ActionApprove]), html.EscapeString(links[ActionReject]), int(s.cfg.TokenTTL.Hours()))

	_, err = s.mail.Send(ctx, mailer.Message{To: owner.Email, Subject: subject, Text: text, HTML: body})
	return err
}

func (s *Service) notifyBorrowerOfDecision(ctx context.Context, l Loan) error {
	borrower, err := s.profiles.GetByID(ctx, l.BorrowerID)
	if err != nil {
		return fmt.Errorf("load borrower profile: %w", err)
	}
	title := s.bookTitle(ctx, l.BookID)

	var subject, text string
	if l.Status == StatusLoaned && l.DueAt != nil {
		subject = fmt.Sprintf("Your request for %q was approved", title)
		text = fmt.Sprintf("Good news: your request to borrow %q was approved. Please return it by %s.",
			title, l.DueAt.Format("2006-01-02"))
	} else {
		subject = fmt.Sprintf("Your request for %q was declined", title)
		text = fmt.Sprintf("Your request to borrow %q was declined.", title)
		if l.CancelReason != nil {
			text += " Reason: " + *l.CancelReason
		}
	}

	_, err = s.mail.Send(ctx, mailer.Message{
		To:      borrower.Email,
		Subject: subject,
		Text:    text,
		HTML:    "<p>" + html.EscapeString(text) + "</p>",
	})
	return err
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil || p.Name() == "" {
		return "A BookLend member"
	}
	return p.Name()
}

func (s *Service) bookTitle(ctx context.Context, bookID string) string {
	b, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return "your requested book"
	}
	return b.Title
}

