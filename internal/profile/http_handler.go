package profile

import (
	"errors"
	"net/http"

	"booklend/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// GetOwnProfile handles GET /me/profile
// @Summary Get own profile
// @Tags profiles
// @Produce json
// @Security Bearer
// @Success 200 {object} Profile
// @Failure 401 {object} httpx.ErrorResponse
// @Router /me/profile [get]
func (h *HTTPHandler) GetOwnProfile(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	p, err := h.service.GetOwn(r.Context(), userID, httpx.EmailFrom(r))
	if err != nil {
		httpx.ServerError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, p)
}

// UpdateProfile handles PATCH /me/profile
// @Summary Update own display name
// @Tags profiles
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body UpdateCommand true "Profile update request"
// @Success 200 {object} Profile
// @Failure 400 {object} httpx.ErrorResponse
// @Router /me/profile [patch]
func (h *HTTPHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	var cmd UpdateCommand
	if !httpx.DecodeJSON(w, r, &cmd) {
		return
	}
	if details := httpx.ValidateStruct(cmd); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", details)
		return
	}

	p, err := h.service.UpdateDisplayName(r.Context(), userID, httpx.EmailFrom(r), cmd)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Profile not found", nil)
			return
		}
		httpx.ServerError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, p)
}
