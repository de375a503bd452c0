// Package handler contains HTTP handlers for the talentgate service.
//
// This file implements account handlers: registration, login and logout.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/service"
	"github.com/DukeRupert/talentgate/internal/session"
)

// AuthHandler handles authentication-related HTTP requests.
//
// Routes handled:
//   - POST /register -> Register
//   - POST /login    -> Login
//   - POST /logout   -> Logout
type AuthHandler struct {
	userService service.UserService
	logger      *slog.Logger
	isSecure    bool
}

// NewAuthHandler creates a new AuthHandler.
//
//	authHandler := handler.NewAuthHandler(userService, logger, cfg.Env != "development")
func NewAuthHandler(userService service.UserService, logger *slog.Logger, isSecure bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// RegisterRoutes registers the account routes. The credential endpoints are
// wrapped with their rate limiters.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, limitRegister, limitLogin func(http.Handler) http.Handler) {
	mux.Handle("POST /register", limitRegister(http.HandlerFunc(h.Register)))
	mux.Handle("POST /login", limitLogin(http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /logout", h.Logout)
}

// =============================================================================
// POST /register
// =============================================================================

// Register creates a Free-plan account and logs it in.
//
// Fields: name, email, password, password_confirmation, years_experience.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	fields := make(map[string]string)
	password := in.Get("password")
	if confirm := in.Get("password_confirmation"); confirm != "" && confirm != password {
		fields["password_confirmation"] = "Passwords do not match"
	}
	years := 0
	if raw := trimmed(in, "years_experience"); raw != "" {
		years, err = strconv.Atoi(raw)
		if err != nil {
			fields["years_experience"] = "Years of experience must be a number"
		}
	}
	if len(fields) > 0 {
		ValidationErrorResponse(w, r, h.logger, &domain.ValidationError{Op: "AuthHandler.Register", Fields: fields})
		return
	}

	if _, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:           in.Get("email"),
		Password:        password,
		Name:            in.Get("name"),
		YearsExperience: years,
	}); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Login(r.Context(), in.Get("email"), password)
	if err != nil {
		h.logger.Error("auto-login after registration failed", "error", err)
		ErrorResponse(w, r, h.logger, err)
		return
	}

	session.SetCookie(w, result.Token, h.isSecure)
	WriteJSON(w, http.StatusCreated, map[string]any{"user": newUserView(result.User)})
}

// =============================================================================
// POST /login
// =============================================================================

// Login checks credentials and starts a session. Every credential failure
// returns the same message.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Login(r.Context(), in.Get("email"), in.Get("password"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	session.SetCookie(w, result.Token, h.isSecure)
	WriteJSON(w, http.StatusOK, map[string]any{"user": newUserView(result.User)})
}

// =============================================================================
// POST /logout
// =============================================================================

// Logout invalidates the session and always clears the cookie. Idempotent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		if err := h.userService.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("failed to invalidate session", "error", err)
		}
	}

	session.ClearCookie(w, h.isSecure)
	w.WriteHeader(http.StatusNoContent)
}
