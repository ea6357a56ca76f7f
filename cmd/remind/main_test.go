package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklend/internal/reminder"
)

type stubRunner struct {
	got time.Time
	sum reminder.Summary
	err error
}

func (s *stubRunner) Run(_ context.Context, now time.Time) (reminder.Summary, error) {
	s.got = now
	return s.sum, s.err
}

func execute(t *testing.T, r *stubRunner, args ...string) (string, error) {
	t.Helper()
	closed := false
	cmd := newRootCmd(func(context.Context) (runner, func(), error) {
		return r, func() { closed = true }, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		assert.True(t, closed)
	}
	return out.String(), err
}

func TestRemind_DateFlag(t *testing.T) {
	r := &stubRunner{sum: reminder.Summary{Sent: 2, Skipped: 1}}
	out, err := execute(t, r, "--date", "2026-05-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), r.got)
	assert.Equal(t, "2026-05-10: sent 2, skipped 1, failed 0\n", out)
}

func TestRemind_JSON(t *testing.T) {
	r := &stubRunner{sum: reminder.Summary{Sent: 1}}
	out, err := execute(t, r, "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"sent":1,"skipped":0,"failed":0}`, out)
}

func TestRemind_Errors(t *testing.T) {
	_, err := execute(t, &stubRunner{}, "--date", "10/05/2026")
	assert.ErrorContains(t, err, "YYYY-MM-DD")

	_, err = execute(t, &stubRunner{err: errors.New("db down")})
	assert.EqualError(t, err, "db down")
}
