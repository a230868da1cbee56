package shared

import (
	"encoding/json"
	"errors"
	"net/http"
)

// WriteJSON renders v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// IsClientError reports whether err belongs to the recoverable taxonomy a
// caller triggered, as opposed to an infrastructure fault worth logging.
func IsClientError(err error) bool {
	var ve *ValidationError
	var de *DependencyError
	var ce *CycleError
	var se *StateError
	return errors.As(err, &ve) || errors.As(err, &de) || errors.As(err, &ce) ||
		errors.As(err, &se) || errors.Is(err, ErrNotFound)
}

// WriteError maps the error taxonomy onto HTTP statuses and renders the
// body. Validation errors carry the full rule list so clients can render
// every issue at once.
func WriteError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "validation failed",
			"details":  ve.Errors,
			"warnings": ve.Warnings,
		})
		return
	}
	var de *DependencyError
	if errors.As(err, &de) {
		WriteJSON(w, http.StatusConflict, map[string]any{"error": de.Reason})
		return
	}
	var ce *CycleError
	if errors.As(err, &ce) {
		WriteJSON(w, http.StatusConflict, map[string]any{"error": ce.Error()})
		return
	}
	var se *StateError
	if errors.As(err, &se) {
		WriteJSON(w, http.StatusConflict, map[string]any{"error": se.Reason})
		return
	}
	if errors.Is(err, ErrNotFound) {
		WriteJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	if IsRemote(err) {
		WriteJSON(w, http.StatusBadGateway, map[string]any{"error": "remote store unavailable"})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": http.StatusText(http.StatusInternalServerError)})
}
