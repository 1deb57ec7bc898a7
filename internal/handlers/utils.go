package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/quillpress/apiserver/internal/auth"
	"github.com/quillpress/apiserver/internal/services"
)

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a simple acknowledgement payload.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError translates a service error into a status and a generic
// message. Unclassified errors are logged and reported as 500 without
// detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, action string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "access token required")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusForbidden, "invalid token")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, services.ErrUnsupportedMediaType):
		writeError(w, http.StatusBadRequest, "invalid file type")
	case errors.Is(err, services.ErrPayloadTooLarge):
		writeError(w, http.StatusBadRequest, "file too large")
	default:
		log.ErrorContext(r.Context(), "request failed",
			slog.String("action", action),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(value); err != nil {
		return &services.ValidationError{Fields: map[string]string{"body": "must be a JSON object"}}
	}
	return nil
}

func parsePostID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "postID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, &services.ValidationError{Fields: map[string]string{"id": "must be a positive integer"}}
	}
	return id, nil
}

// principal returns the identity attached by RequireAuth. Handlers mounted
// behind the gate can rely on it being present.
func principal(r *http.Request) (int, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return 0, services.ErrUnauthenticated
	}
	return userID, nil
}
