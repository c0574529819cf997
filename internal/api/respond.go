package api

import (
	"encoding/json"
	"net/http"

	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// errorBody is the JSON shape of every non-2xx response
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses. Details of 5xx errors are
// logged and not returned.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	var verr *errors.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_input", Message: verr.Message, Field: verr.Field})
	case errors.Is(err, errors.ErrInvalidInput), errors.Is(err, errors.ErrInsufficientHistory):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_input", Message: err.Error()})
	case errors.Is(err, errors.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "user id header is required"})
	case errors.Is(err, errors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
	case errors.Is(err, errors.ErrUnavailable):
		log.Warnw("Dependency unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable"})
	default:
		log.Errorw("Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}

// decodeJSON reads a bounded JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.NewValidationError("body", "request body too large", tooLarge.Limit)
		}
		return errors.Wrapf(errors.ErrInvalidInput, "malformed JSON body: %v", err)
	}
	return nil
}
