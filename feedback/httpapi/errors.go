package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"feedback-drop/feedback/domain"
)

// Textos genéricos das respostas de erro. Nunca inclua o erro interno.
const (
	msgInvalid     = "Invalid message format"
	msgTooLarge    = "Request too large"
	msgRateLimited = "Too many requests, please try again later"
	msgStorageFull = "Storage full"
	msgInternal    = "Internal server error"
	msgNotFound    = "Not found"
	msgUnavailable = "Service unavailable"

	msgKeyMissing   = "Public key not available"
	msgKeyMalformed = "Invalid public key format"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// submitStatus mapeia os erros de Submit para status + texto genérico.
func submitStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, msgTooLarge
	case errors.Is(err, errBadBody), errors.Is(err, domain.ErrInvalidMessage):
		return http.StatusBadRequest, msgInvalid
	case errors.Is(err, domain.ErrStorageFull):
		return http.StatusInsufficientStorage, msgStorageFull
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func publicKeyStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrKeyNotFound):
		return http.StatusNotFound, msgKeyMissing
	case errors.Is(err, domain.ErrKeyMalformed):
		return http.StatusInternalServerError, msgKeyMalformed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

var errBadBody = errors.New("request body is not a JSON object")
