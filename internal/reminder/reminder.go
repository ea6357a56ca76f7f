// Package reminder emails borrowers ahead of and on their due date.
package reminder

import "time"

type Kind string

const (
	KindDueMinus2 Kind = "due_minus_2"
	KindDueMinus1 Kind = "due_minus_1"
	KindDueDay    Kind = "due_day"
)

// Schedule lists the reminders sent for every loan, by days before due.
var Schedule = []struct {
	Kind       Kind
	DaysBefore int
}{
	{KindDueMinus2, 2},
	{KindDueMinus1, 1},
	{KindDueDay, 0},
}

// Due is a loaned book due on the day being processed.
type Due struct {
	LoanID        string
	BookTitle     string
	BorrowerEmail string
	BorrowerName  string
	DueAt         time.Time
}

// Summary reports one run.
type Summary struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Day formats t as the UTC calendar date used to match due dates.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
