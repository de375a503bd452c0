package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/talentgate/internal/auth"
	"github.com/DukeRupert/talentgate/internal/service"
)

// AccountHandler serves the signed-in user's plan, usage and notifications.
//
// Routes handled:
//   - GET  /api/entitlements        -> Entitlements
//   - GET  /api/notifications       -> Notifications
//   - POST /api/notifications/read  -> MarkNotificationsRead
type AccountHandler struct {
	entitlements  service.EntitlementService
	notifications service.NotificationService
	sessions      service.SessionValues
	logger        *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(
	entitlements service.EntitlementService,
	notifications service.NotificationService,
	sessions service.SessionValues,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		entitlements:  entitlements,
		notifications: notifications,
		sessions:      sessions,
		logger:        logger,
	}
}

// RegisterRoutes registers account routes behind protect.
func (h *AccountHandler) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("GET /api/entitlements", protect(http.HandlerFunc(h.Entitlements)))
	mux.Handle("GET /api/notifications", protect(http.HandlerFunc(h.Notifications)))
	mux.Handle("POST /api/notifications/read", protect(http.HandlerFunc(h.MarkNotificationsRead)))
}

// Entitlements returns the plan and per-kind usage.
func (h *AccountHandler) Entitlements(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	summary, err := h.entitlements.Summary(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user":         newUserView(user),
		"entitlements": newSummaryView(summary),
	})
}

// Notifications returns unread notifications and drains the session flash.
func (h *AccountHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.GetUser(ctx)
	sess := auth.GetSession(ctx)

	flash, err := h.sessions.PopFlash(ctx, sess.ID)
	if err != nil {
		h.logger.Warn("failed to read flash", "user_id", user.ID, "error", err)
		flash = ""
	}

	items, err := h.notifications.ListUnread(ctx, user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	views := make([]notificationView, 0, len(items))
	for _, n := range items {
		views = append(views, notificationView{
			ID:        n.ID,
			Kind:      string(n.Kind),
			Message:   n.Message,
			Data:      n.Data,
			CreatedAt: n.CreatedAt,
		})
	}

	body := map[string]any{"notifications": views}
	if flash != "" {
		body["flash"] = flash
	}
	WriteJSON(w, http.StatusOK, body)
}

// MarkNotificationsRead clears the caller's inbox. Staff share one inbox.
func (h *AccountHandler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkAllRead(r.Context(), auth.GetUser(r.Context())); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
