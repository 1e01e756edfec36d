package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aengwo/rfid-project/internal/campus/service"
)

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message, RequestID: requestID(r.Context())})
}

// writeServiceError maps service sentinels onto HTTP statuses. Unexpected
// errors are logged and reported without detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCardID):
		writeError(w, r, http.StatusBadRequest, "invalid_card_id", err.Error())
	case errors.Is(err, service.ErrInvalidLocation):
		writeError(w, r, http.StatusBadRequest, "invalid_location", err.Error())
	case errors.Is(err, service.ErrInvalidDirection):
		writeError(w, r, http.StatusBadRequest, "invalid_direction", err.Error())
	case errors.Is(err, service.ErrInvalidReaderID):
		writeError(w, r, http.StatusBadRequest, "invalid_reader_id", err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		writeError(w, r, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrConflict):
		writeError(w, r, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		writeError(w, r, http.StatusUnprocessableEntity, "insufficient_balance", err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "store_unavailable", "access store unavailable, retry")
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

// decodeJSON reads a size-capped JSON body into v, rejecting unknown fields.
// On failure it writes the 400 response itself and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryInt parses an optional positive integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return n, true
}

var (
	errNoDatabase  = errors.New("no database configured")
	errNotMigrated = errors.New("schema not migrated")
)
