package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/matheus3301/chatd/internal/auth"
	"github.com/matheus3301/chatd/internal/chat"
	"github.com/matheus3301/chatd/internal/store"
	"go.uber.org/zap"
)

// envelope is the body of every JSON response.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{"success": false, "message": msg})
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest, "message needs text or an image"
	case errors.Is(err, chat.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chat.ErrUploadFailed):
		return http.StatusBadGateway, "image upload failed"
	case errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden, "not allowed"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, store.ErrEmailTaken):
		return http.StatusConflict, "account already exists"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid token"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	fail(w, status, msg)
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return chat.ErrInvalidInput
	}
	return nil
}
