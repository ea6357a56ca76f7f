package reminder

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"booklend/internal/logging"
	"booklend/internal/metrics"
	"booklend/internal/platform/mailer"
)

type Service struct {
	repo Repository
	mail Mailer
}

func NewService(repo Repository, mail Mailer) *Service {
	return &Service{repo: repo, mail: mail}
}

// Run sends the reminders due at now. A reminder is recorded only after its
// email went out, so a failed send is retried by the next run while a
// recorded one is never sent twice.
func (s *Service) Run(ctx context.Context, now time.Time) (Summary, error) {
	// Day offsets are calendar days in UTC, whatever zone now is in.
	now = now.UTC()
	log := logging.Ctx(ctx)
	var sum Summary

	for _, step := range Schedule {
		day := Day(now.AddDate(0, 0, step.DaysBefore))
		due, err := s.repo.ListDueOn(ctx, day)
		if err != nil {
			return sum, fmt.Errorf("list loans due %s: %w", day, err)
		}

		for _, d := range due {
			outcome, err := s.remind(ctx, d, step.Kind, step.DaysBefore, now)
			metrics.RemindersSent.WithLabelValues(string(step.Kind), outcome).Inc()
			switch outcome {
			case "sent":
				sum.Sent++
			case "skipped":
				sum.Skipped++
			default:
				sum.Failed++
				log.Warn().Err(err).Str("loan_id", d.LoanID).Str("kind", string(step.Kind)).Msg("reminder failed")
			}
		}
	}

	log.Info().Int("sent", sum.Sent).Int("skipped", sum.Skipped).Int("failed", sum.Failed).Msg("due reminders run")
	return sum, nil
}

func (s *Service) remind(ctx context.Context, d Due, kind Kind, daysBefore int, now time.Time) (string, error) {
	done, err := s.repo.HasNotification(ctx, d.LoanID, kind)
	if err != nil {
		return "failed", err
	}
	if done {
		return "skipped", nil
	}
	if d.BorrowerEmail == "" {
		return "failed", errors.New("borrower has no email address")
	}

	if _, err := s.mail.Send(ctx, message(d, daysBefore)); err != nil {
		return "failed", err
	}
	if _, err := s.repo.RecordNotification(ctx, d.LoanID, kind, now); err != nil {
		// The email is out; only the dedup record is missing.
		logging.Ctx(ctx).Error().Err(err).Str("loan_id", d.LoanID).Msg("record reminder")
	}
	return "sent", nil
}

func message(d Due, daysBefore int) mailer.Message {
	when := "today"
	switch daysBefore {
	case 1:
		when = "tomorrow"
	case 2:
		when = "in 2 days"
	}

	name := d.BorrowerName
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("Hi %s, %q is due back %s (%s). Please arrange the return with the owner.",
		name, d.BookTitle, when, Day(d.DueAt))
	return mailer.Message{
		To:      d.BorrowerEmail,
		Subject: fmt.Sprintf("Reminder: %q is due %s", d.BookTitle, when),
		Text:    text,
		HTML:    "<p>" + html.EscapeString(text) + "</p>",
	}
}
