package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"devpulse/internal/apperrors"
	"devpulse/internal/lib/logger/sl"
)

const (
	msgInternal     = "Something went wrong. Please try again."
	msgInvalidBody  = "Invalid request body"
	msgUnauthorized = "Unauthorized"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode response", sl.Err(err))
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, status int, message string) {
	writeJSON(w, log, status, ErrorResponse{Error: message})
}

// decodeJSON reads r's body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, w http.ResponseWriter, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// inputMessage returns the user-facing message of a validation failure.
func inputMessage(err error) (string, bool) {
	var inputErr *apperrors.InputError
	if errors.As(err, &inputErr) {
		return inputErr.Message, true
	}
	return "", false
}
