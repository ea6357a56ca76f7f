package httpx

import (
	"net/http"

	"github.com/goccy/go-json"
)

// ErrorResponse is the body of every failed request. Clients read Message;
// Error mirrors it for callers that expect an "error" field.
type ErrorResponse struct {
	OK        bool          `json:"ok"`
	Code      string        `json:"code"`
	Error     string        `json:"error"`
	Message   string        `json:"message"`
	Details   []ErrorDetail `json:"details,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ActionResponse is returned by the loan operations.
type ActionResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Loan    any    `json:"loan,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func JSONSuccess(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

func JSONAction(w http.ResponseWriter, statusCode int, message string, loan any) {
	JSON(w, statusCode, ActionResponse{OK: true, Message: message, Loan: loan})
}

func JSONError(w http.ResponseWriter, r *http.Request, statusCode int, code string, message string, details []ErrorDetail) {
	body := ErrorResponse{
		OK:      false,
		Code:    code,
		Error:   message,
		Message: message,
		Details: details,
	}
	if r != nil {
		body.RequestID = RequestIDFrom(r)
	}
	JSON(w, statusCode, body)
}

// DecodeJSON decodes the request body into dst. It reports false after
// writing a 400 when the body is not valid JSON.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return false
	}
	return true
}
