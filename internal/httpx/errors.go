package httpx

import (
	"context"
	"errors"
	"net/http"

	"booklend/internal/logging"
	"booklend/internal/platform"
)

// ServerError writes the response for errors a handler does not map itself.
// Missing configuration is reported explicitly; upstream failures become a
// generic 502 and the details only reach the log.
func ServerError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.Ctx(r.Context())
	switch {
	case errors.Is(err, platform.ErrNotConfigured):
		log.Error().Err(err).Msg("service not configured")
		JSONError(w, r, http.StatusInternalServerError, "NOT_CONFIGURED", err.Error(), nil)
	case platform.IsUpstream(err):
		log.Error().Err(err).Msg("upstream service failed")
		JSONError(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", "An upstream service failed, please try again later", nil)
	case errors.Is(err, context.DeadlineExceeded):
		log.Error().Err(err).Msg("request timed out")
		JSONError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "The request timed out", nil)
	default:
		log.Error().Err(err).Msg("internal error")
		JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
