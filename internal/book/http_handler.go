package book

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"booklend/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Create handles POST /books
// @Summary Add a book to the caller's collection
// @Tags books
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body CreateCommand true "Book to catalog"
// @Success 201 {object} Book
// @Failure 400 {object} httpx.ErrorResponse
// @Router /books [post]
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	var cmd CreateCommand
	if !httpx.DecodeJSON(w, r, &cmd) {
		return
	}
	if details := httpx.ValidateStruct(cmd); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", details)
		return
	}

	b, err := h.service.Create(r.Context(), userID, cmd)
	if err != nil {
		httpx.ServerError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

// Get handles GET /books/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
		return
	}

	b, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
			return
		}
		httpx.ServerError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, b)
}

// List handles GET /books
//
// Query parameters: owner_id, mine=true, available=true, q, cursor, limit.
// Without owner_id or mine the caller's own books are left out so the
// listing shows what others can lend.
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := httpx.UserIDFrom(r)

	params := Query{
		OwnerID:       query.Get("owner_id"),
		AvailableOnly: query.Get("available") == "true",
		Search:        query.Get("q"),
	}
	switch {
	case query.Get("mine") == "true":
		params.OwnerID = userID
	case params.OwnerID == "":
		params.ExcludeOwner = userID
	}
	if params.OwnerID != "" {
		if _, err := uuid.Parse(params.OwnerID); err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "owner_id must be a valid id", nil)
			return
		}
	}

	after, err := DecodeCursor(query.Get("cursor"))
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid cursor", nil)
		return
	}
	params.After = after
	params.Limit, _ = strconv.Atoi(query.Get("limit"))

	books, next, err := h.service.List(r.Context(), params)
	if err != nil {
		httpx.ServerError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, map[string]any{
		"books":       books,
		"next_cursor": next,
	})
}

// Delete handles DELETE /books/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
		return
	}

	err := h.service.Delete(r.Context(), id, userID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	case errors.Is(err, ErrForbidden):
		httpx.JSONError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, ErrOnLoan):
		httpx.JSONError(w, r, http.StatusConflict, "BOOK_ON_LOAN", "The book is reserved or lent out", nil)
	default:
		httpx.ServerError(w, r, err)
	}
}
