package recognition

import (
	"errors"
	"net/http"
	"strings"

	"booklend/internal/httpx"
	"booklend/internal/logging"
	"booklend/internal/platform/vision"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type imagePayload struct {
	ImageBase64   string `json:"imageBase64"`
	MaxCandidates int    `json:"maxCandidates" validate:"min=0,max=50"`
}

// recognizeRequest accepts the image either at the top level or wrapped in
// "payload", which some clients send.
type recognizeRequest struct {
	ImageBase64   string        `json:"imageBase64"`
	MaxCandidates int           `json:"maxCandidates" validate:"min=0,max=50"`
	Query         string        `json:"query" validate:"max=500"`
	Payload       *imagePayload `json:"payload"`
}

func (req recognizeRequest) image() string {
	img := req.ImageBase64
	if img == "" && req.Payload != nil {
		img = req.Payload.ImageBase64
	}
	// Strip a data URL prefix such as "data:image/jpeg;base64,".
	if strings.HasPrefix(img, "data:") {
		if i := strings.IndexByte(img, ','); i >= 0 {
			img = img[i+1:]
		}
	}
	return strings.TrimSpace(img)
}

func (req recognizeRequest) count() int {
	if req.MaxCandidates == 0 && req.Payload != nil {
		return req.Payload.MaxCandidates
	}
	return req.MaxCandidates
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request) (recognizeRequest, bool) {
	var req recognizeRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return req, false
	}
	if details := httpx.ValidateStruct(req); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", details)
		return req, false
	}
	return req, true
}

// IdentifyCover handles POST /gemini-cover-to-book
// @Summary Read title and author from a cover photo
// @Tags recognition
// @Accept json
// @Produce json
// @Success 200 {object} Refined
// @Failure 404 {object} httpx.ErrorResponse
// @Router /gemini-cover-to-book [post]
func (h *HTTPHandler) IdentifyCover(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.service.IdentifyCover(r.Context(), req.image())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, res)
}

// Recognize handles POST /cover-to-book
// @Summary Rank book candidates for a cover photo
// @Tags recognition
// @Accept json
// @Produce json
// @Success 200 {object} map[string][]Candidate
// @Router /cover-to-book [post]
func (h *HTTPHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	cands, err := h.service.Recognize(r.Context(), req.image(), req.count())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, map[string]any{"candidates": cands})
}

// Refine handles POST /refine-query
func (h *HTTPHandler) Refine(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.service.Refine(r.Context(), req.Query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, map[string]string{
		"refinedQuery":  res.Title,
		"refinedAuthor": res.Author,
	})
}

// Search handles POST /search-book-by-title. An image takes the scored cover
// pipeline; a query takes the refine-then-search path.
func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	var (
		cands []Candidate
		err   error
	)
	switch {
	case req.image() != "":
		cands, err = h.service.Recognize(r.Context(), req.image(), req.count())
	case strings.TrimSpace(req.Query) != "":
		cands, err = h.service.SearchByTitle(r.Context(), req.Query, req.count())
	default:
		err = ErrEmptyInput
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if cands == nil {
		cands = []Candidate{}
	}
	httpx.JSONSuccess(w, map[string]any{"candidates": cands})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrEmptyInput):
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "No book title could be recognized", nil)
	case errors.Is(err, vision.ErrNoResponses):
		logging.Ctx(r.Context()).Error().Err(err).Msg("vision returned no responses")
		httpx.JSONError(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", "An upstream service failed, please try again later", nil)
	default:
		httpx.ServerError(w, r, err)
	}
}
