package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quillpress/apiserver/internal/services"
	"github.com/quillpress/apiserver/types"
)

// AuthHandler provides registration, login and identity endpoints.
type AuthHandler struct {
	userService *services.UserService
	log         *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		userService: userService,
		log:         log,
	}
}

// AuthRouter registers auth routes on the given router. limit, when not nil,
// guards the credential endpoints.
func AuthRouter(
	r chi.Router,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
	limit func(http.Handler) http.Handler,
	log *slog.Logger,
) {
	handler := NewAuthHandler(userService, log)

	credentials := r
	if limit != nil {
		credentials = r.With(limit)
	}
	credentials.Post("/register", handler.Register)
	credentials.Post("/login", handler.Login)
	r.With(authMiddleware).Get("/me", handler.Me)
}

// Register creates a new user account and returns a JWT.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "register")
		return
	}

	session, err := h.userService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "register")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: session.Token, User: session.User})
}

// Login verifies credentials and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err, "authenticate")
		return
	}

	session, err := h.userService.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.log, err, "authenticate")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: session.Token, User: session.User})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeServiceError(w, r, h.log, err, "load user")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeServiceError(w, r, h.log, err, "load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}
