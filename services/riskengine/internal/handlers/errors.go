package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/riskfabric/cyberrisk/pkg/logger"
	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/pkg/resilience"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeServiceError maps domain errors onto HTTP statuses. Only unexpected
// failures are logged at error level.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidOrganization):
		writeError(w, http.StatusNotFound, "organization_not_found", "organization not found")
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, models.ErrInvalidSelection):
		writeError(w, http.StatusBadRequest, "invalid_selection", err.Error())
	case errors.Is(err, models.ErrStoreUnavailable):
		var open *resilience.BreakerOpenError
		if errors.As(err, &open) {
			w.Header().Set("Retry-After", retryAfterSeconds(open))
		}
		log.WithContext(r.Context()).Warn("data store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "data store unavailable, retry later")
	default:
		log.WithContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func retryAfterSeconds(e *resilience.BreakerOpenError) string {
	secs := int(math.Ceil(e.RetryAfter().Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
