package reminder

import (
	"net/http"
	"time"

	"booklend/internal/httpx"
)

type HTTPHandler struct {
	svc *Service
	now func() time.Time
}

func NewHTTPHandler(svc *Service) *HTTPHandler {
	return &HTTPHandler{svc: svc, now: time.Now}
}

// DueReminders handles POST /internal/jobs/due-reminders
// @Summary Send due-date reminders
// @Description Emails borrowers two days before, one day before and on the due date
// @Tags internal
// @Produce json
// @Param X-Internal-Secret header string true "Internal secret for authentication"
// @Success 200 {object} Summary
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /internal/jobs/due-reminders [post]
func (h *HTTPHandler) DueReminders(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Run(r.Context(), h.now())
	if err != nil {
		httpx.ServerError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, sum)
}
