package loan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklend/internal/httpx"
)

type actionBody struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Loan    Loan   `json:"loan"`
	Code    string `json:"code"`
}

func post(t *testing.T, h http.HandlerFunc, userID, body string) (int, actionBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req = req.WithContext(httpx.ContextWithUser(req.Context(), userID, ""))
	rec := httptest.NewRecorder()
	h(rec, req)

	var out actionBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestHTTPHandler_LoanLifecycle(t *testing.T) {
	f := newFixture(t, true)
	h := NewHTTPHandler(f.svc)

	code, body := post(t, h.RequestLoan, borrowerID, `{"book_id":"`+duneID+`"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, body.OK)
	assert.Equal(t, StatusReserved, body.Loan.Status)
	loanID := body.Loan.ID

	code, body = post(t, h.RequestLoan, strangerID, `{"book_id":"`+duneID+`"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "STATE_CONFLICT", body.Code)

	code, body = post(t, h.ManageLoanRequest, borrowerID, `{"loan_id":"`+loanID+`","action":"approve"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = post(t, h.ManageLoanRequest, ownerID, `{"loan_id":"`+loanID+`","action":"approve"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusLoaned, body.Loan.Status)
	assert.NotNil(t, body.Loan.DueAt)

	code, body = post(t, h.ManageLoanRequest, ownerID, `{"loan_id":"`+loanID+`","action":"approve"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "STATE_CONFLICT", body.Code)
	assert.Equal(t, "already loaned", body.Message)

	code, body = post(t, h.CancelLoan, borrowerID, `{"loan_id":"`+loanID+`"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "already loaned", body.Message)

	code, body = post(t, h.ReturnLoan, ownerID, `{"loan_id":"`+loanID+`"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusReturned, body.Loan.Status)
}

func TestHTTPHandler_Validation(t *testing.T) {
	f := newFixture(t, true)
	h := NewHTTPHandler(f.svc)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		code    string
	}{
		{"malformed json", h.RequestLoan, `{`, "BAD_REQUEST"},
		{"missing book id", h.RequestLoan, `{}`, "VALIDATION_ERROR"},
		{"book id not a uuid", h.RequestLoan, `{"book_id":"dune"}`, "VALIDATION_ERROR"},
		{"unknown action", h.ManageLoanRequest, `{"loan_id":"` + duneID + `","action":"maybe"}`, "VALIDATION_ERROR"},
		{"self loan", h.RequestLoan, `{"book_id":"` + duneID + `"}`, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := post(t, tt.handler, ownerID, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.code, body.Code)
		})
	}

	code, body := post(t, h.ReturnLoan, ownerID, `{"loan_id":"`+duneID+`"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestHTTPHandler_LoanActionPageDoesNotSpendTheLink(t *testing.T) {
	f := newFixture(t, true)
	h := NewHTTPHandler(f.svc)
	l := f.request(t)
	approve, _ := tokensFrom(t, f.mail.last().Text)

	// Scanners and previews may open the link any number of times.
	for range 2 {
		rec := httptest.NewRecorder()
		h.LoanActionPage(rec, httptest.NewRequest(http.MethodGet, "/loan-action?token="+approve, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), `<form method="post" action="/loan-action">`)
		assert.Contains(t, rec.Body.String(), `value="`+approve+`"`)
		assert.Contains(t, rec.Body.String(), "Dune")
	}

	got, err := f.repo.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, got.Status)

	rec := httptest.NewRecorder()
	h.LoanActionPage(rec, httptest.NewRequest(http.MethodGet, "/loan-action?token=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Link not valid")
}

func TestHTTPHandler_LoanActionFormPost(t *testing.T) {
	f := newFixture(t, true)
	h := NewHTTPHandler(f.svc)
	l := f.request(t)
	approve, reject := tokensFrom(t, f.mail.last().Text)

	submit := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/loan-action", strings.NewReader(url.Values{"token": {token}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.LoanAction(rec, req)
		return rec
	}

	rec := submit(approve)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Request approved")
	got, err := f.repo.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLoaned, got.Status)

	rec = submit(approve)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Link not valid")

	rec = httptest.NewRecorder()
	h.LoanActionPage(rec, httptest.NewRequest(http.MethodGet, "/loan-action?token="+reject, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPHandler_LoanActionJSON(t *testing.T) {
	f := newFixture(t, true)
	h := NewHTTPHandler(f.svc)
	f.request(t)
	_, reject := tokensFrom(t, f.mail.last().Text)

	send := func(token string) (int, actionBody) {
		req := httptest.NewRequest(http.MethodPost, "/loan-action", strings.NewReader(`{"token":"`+token+`"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.LoanAction(rec, req)
		var out actionBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return rec.Code, out
	}

	code, body := send(reject)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusCancelled, body.Loan.Status)

	code, body = send(reject)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_TOKEN", body.Code)
}

func TestHTTPHandler_List(t *testing.T) {
	f := newFixture(t, true)
	h := NewHTTPHandler(f.svc)
	l := f.request(t)

	list := func(userID, query string) (int, map[string][]Loan) {
		req := httptest.NewRequest(http.MethodGet, "/loans?"+query, nil)
		req = req.WithContext(httpx.ContextWithUser(req.Context(), userID, ""))
		rec := httptest.NewRecorder()
		h.List(rec, req)
		var out map[string][]Loan
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
		return rec.Code, out
	}

	code, out := list(ownerID, "role=owner&status=reserved")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, out["loans"], 1)
	assert.Equal(t, l.ID, out["loans"][0].ID)

	code, out = list(ownerID, "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, out["loans"])

	code, _ = list(ownerID, "role=admin")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = list(ownerID, "status=lost")
	assert.Equal(t, http.StatusBadRequest, code)
}
