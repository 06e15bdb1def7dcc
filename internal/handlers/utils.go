package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"paper-reader/internal/library"
	"paper-reader/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v as JSON with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, map[string]string{"error": message})
}

// writeError maps a library error to its response. Anything unexpected is
// logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *library.ValidationError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &verr):
		writeJSONError(w, verr.Reason, verr.Status)
	case errors.As(err, &maxErr):
		writeJSONError(w, "Upload too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, library.ErrNotFound):
		writeJSONError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, library.ErrInvalidID):
		writeJSONError(w, "Invalid paper ID", http.StatusBadRequest)
	default:
		logging.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
		writeJSONError(w, "Server error", http.StatusInternalServerError)
	}
}
