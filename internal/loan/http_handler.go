package loan

import (
	"errors"
	"net/http"
	"strings"

	"booklend/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type requestLoanRequest struct {
	BookID string `json:"book_id" validate:"required,uuid"`
}

type manageLoanRequest struct {
	LoanID string `json:"loan_id" validate:"required,uuid"`
	Action Action `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason" validate:"max=500"`
}

type loanIDRequest struct {
	LoanID string `json:"loan_id" validate:"required,uuid"`
	Reason string `json:"reason" validate:"max=500"`
}

// decode reads the body and validates it, writing the 400 itself.
func decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if !httpx.DecodeJSON(w, r, &req) {
		return req, false
	}
	if details := httpx.ValidateStruct(req); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", details)
		return req, false
	}
	return req, true
}

// RequestLoan handles POST /request-loan
// @Summary Ask to borrow a book
// @Tags loans
// @Accept json
// @Produce json
// @Security Bearer
// @Success 201 {object} httpx.ActionResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /request-loan [post]
func (h *HTTPHandler) RequestLoan(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[requestLoanRequest](w, r)
	if !ok {
		return
	}
	res, err := h.service.Request(r.Context(), httpx.UserIDFrom(r), req.BookID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONAction(w, http.StatusCreated, res.Message, res.Loan)
}

// ManageLoanRequest handles POST /manage-loan-request
// @Summary Approve or reject a pending request
// @Tags loans
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} httpx.ActionResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Router /manage-loan-request [post]
func (h *HTTPHandler) ManageLoanRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[manageLoanRequest](w, r)
	if !ok {
		return
	}

	var (
		res Result
		err error
	)
	if req.Action == ActionApprove {
		res, err = h.service.Approve(r.Context(), httpx.UserIDFrom(r), req.LoanID)
	} else {
		res, err = h.service.Reject(r.Context(), httpx.UserIDFrom(r), req.LoanID, req.Reason)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONAction(w, http.StatusOK, res.Message, res.Loan)
}

// CancelLoan handles POST /cancel-loan
func (h *HTTPHandler) CancelLoan(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[loanIDRequest](w, r)
	if !ok {
		return
	}
	res, err := h.service.Cancel(r.Context(), httpx.UserIDFrom(r), req.LoanID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONAction(w, http.StatusOK, res.Message, res.Loan)
}

// ReturnLoan handles POST /return-loan
func (h *HTTPHandler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[loanIDRequest](w, r)
	if !ok {
		return
	}
	res, err := h.service.Return(r.Context(), httpx.UserIDFrom(r), req.LoanID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONAction(w, http.StatusOK, res.Message, res.Loan)
}

type loanActionRequest struct {
	Token string `json:"token"`
}

// LoanActionPage handles GET /loan-action?token=...
// It is reached from an email link, without a session, and only shows a
// confirmation form; mail scanners that prefetch the link spend nothing.
func (h *HTTPHandler) LoanActionPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	p, err := h.service.PreviewActionToken(r.Context(), token)
	if err != nil {
		h.actionFailed(w, r, err)
		return
	}
	renderActionPage(w, r, http.StatusOK, actionPageData{
		Confirm:     true,
		Action:      p.Action,
		BookTitle:   p.BookTitle,
		RequestedAt: p.Loan.RequestedAt.Format("2 Jan 2006"),
		ExpiresAt:   p.ExpiresAt.Format("2 Jan 2006 15:04 MST"),
		Token:       token,
	})
}

// LoanAction handles POST /loan-action
// The confirmation form posts the token form-encoded and gets a page back;
// JSON clients send {"token": "..."} and get the usual action response.
func (h *HTTPHandler) LoanAction(w http.ResponseWriter, r *http.Request) {
	form := !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")

	var token string
	if form {
		token = r.PostFormValue("token")
	} else {
		var req loanActionRequest
		if !httpx.DecodeJSON(w, r, &req) {
			return
		}
		token = req.Token
	}

	res, err := h.service.ApplyActionToken(r.Context(), token)
	if !form {
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.JSONAction(w, http.StatusOK, res.Message, res.Loan)
		return
	}
	if err != nil {
		h.actionFailed(w, r, err)
		return
	}
	title := "Request approved"
	if res.Loan.Status == StatusCancelled {
		title = "Request rejected"
	}
	renderActionPage(w, r, http.StatusOK, actionPageData{Title: title, Message: res.Message})
}

func (h *HTTPHandler) actionFailed(w http.ResponseWriter, r *http.Request, err error) {
	var se *StateError
	switch {
	case errors.Is(err, ErrInvalidToken):
		renderActionPage(w, r, http.StatusBadRequest, actionPageData{Title: "Link not valid", Message: "This link is invalid, expired or already used."})
	case errors.As(err, &se):
		renderActionPage(w, r, http.StatusBadRequest, actionPageData{Title: "Nothing to do", Message: "This loan is " + se.Error() + "."})
	case errors.Is(err, ErrNotFound):
		renderActionPage(w, r, http.StatusNotFound, actionPageData{Title: "Loan not found", Message: "This loan no longer exists."})
	default:
		httpx.ServerError(w, r, err)
	}
}

// List handles GET /loans?role=owner|borrower&status=...
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	role := Role(r.URL.Query().Get("role"))
	if role == "" {
		role = RoleBorrower
	}
	if role != RoleOwner && role != RoleBorrower {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "role must be owner or borrower", nil)
		return
	}
	status := Status(r.URL.Query().Get("status"))
	switch status {
	case "", StatusReserved, StatusLoaned, StatusReturned, StatusCancelled:
	default:
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "unknown status", nil)
		return
	}

	loans, err := h.service.ListForUser(r.Context(), httpx.UserIDFrom(r), role, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, map[string]any{"loans": loans})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var se *StateError
	switch {
	case errors.As(err, &se):
		httpx.JSONError(w, r, http.StatusBadRequest, "STATE_CONFLICT", se.Error(), nil)
	case errors.Is(err, ErrActiveLoanExists):
		httpx.JSONError(w, r, http.StatusBadRequest, "STATE_CONFLICT", "This book is already reserved or on loan", nil)
	case errors.Is(err, ErrSelfLoan), errors.Is(err, ErrInvalidAction):
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrInvalidToken):
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_TOKEN", err.Error(), nil)
	case errors.Is(err, ErrForbidden):
		httpx.JSONError(w, r, http.StatusForbidden, "FORBIDDEN", "You are not allowed to act on this loan", nil)
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Loan not found", nil)
	case errors.Is(err, ErrBookNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	default:
		httpx.ServerError(w, r, err)
	}
}
