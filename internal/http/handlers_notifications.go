package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/instantmart/admin-console/internal/service"
)

// NotificationService is the notification cache the console exposes.
type NotificationService interface {
	Snapshot() service.NotificationSnapshot
	Fetch(ctx context.Context, page int, appendPage bool) (service.NotificationSnapshot, error)
	RefreshUnreadCount(ctx context.Context) error
	MarkAsRead(ctx context.Context, ids []int64) error
	Delete(ctx context.Context, id int64) error
}

// NotificationHandlers serves /api/notifications.
type NotificationHandlers struct {
	Svc    NotificationService
	Logger *slog.Logger
}

func (h *NotificationHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// List returns the cache, loading a page first when ?page= is given.
// GET /api/notifications?page=<n>&append=<bool>.
func (h *NotificationHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("page")
	if raw == "" {
		WriteJSON(w, http.StatusOK, h.Svc.Snapshot())
		return
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_page", Err: errors.New("page must be a positive integer")})
		return
	}
	appendPage, _ := strconv.ParseBool(q.Get("append"))

	snap, err := h.Svc.Fetch(r.Context(), page, appendPage)
	if err != nil {
		h.fail(w, r, "fetch notifications", err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

// UnreadCount reloads the unread counter from the backend.
// GET /api/notifications/unread-count.
func (h *NotificationHandlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.RefreshUnreadCount(r.Context()); err != nil {
		h.fail(w, r, "unread count", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"count": h.Svc.Snapshot().UnreadCount})
}

type markReadRequest struct {
	IDs []int64 `json:"ids"`
}

// MarkAsRead marks notifications read.
// PUT /api/notifications/mark-as-read.
func (h *NotificationHandlers) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	var in markReadRequest
	if !DecodeJSON(w, r, &in) {
		return
	}
	if err := h.Svc.MarkAsRead(r.Context(), in.IDs); err != nil {
		h.fail(w, r, "mark notifications read", err)
		return
	}
	WriteJSON(w, http.StatusOK, h.Svc.Snapshot())
}

// Delete removes a notification.
// DELETE /api/notifications/{id}.
func (h *NotificationHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_id", Err: errors.New("id must be an integer")})
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "delete notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail leaves the cache as it was; the client shows a transient error.
func (h *NotificationHandlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger().WarnContext(r.Context(), op+" failed", "error", err)
	if errors.Is(err, service.ErrOwnerChanged) {
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "session_changed", Err: errors.New("the signed-in operator changed; reload notifications")})
		return
	}
	WriteAppError(w, err)
}
