package httpx

import (
	"log/slog"
	"net/http"

	"github.com/instantmart/admin-console/internal/ports"
)

// RouterServices holds the services the console router needs.
type RouterServices struct {
	Auth          AuthService
	Notifications NotificationService // optional; routes are skipped when nil
	API           ports.Requester
	Storage       StoragePinger // optional; /healthz reports it when set
	Logger        *slog.Logger
}

// NewRouter builds the console handler with logging, panic recovery and browser detection.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	health := healthHandler(services.Storage, logger)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	auth := &AuthHandlers{Svc: services.Auth, Logger: logger}
	registerAuthRoutes(mux, auth)

	if services.Notifications != nil {
		registerNotificationRoutes(mux, &NotificationHandlers{Svc: services.Notifications, Logger: logger}, services.Auth)
	}
	if services.API != nil {
		proxy := &AdminProxy{Sessions: services.Auth, API: services.API, Logger: logger}
		mux.Handle("/api/admin/{resource}", proxy)
		mux.Handle("/api/admin/{resource}/{rest...}", proxy)
	}

	mux.Handle("GET /{$}", RequireRoles(services.Auth, AdminOrAbove...)(http.HandlerFunc(auth.Home)))

	var h http.Handler = mux
	h = BrowserDetection()(h)
	h = Logging(logger)(h)
	h = Recover(logger)(h)
	return h
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.LoginPage)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /api/session", h.Session)
}

func registerNotificationRoutes(mux *http.ServeMux, h *NotificationHandlers, sessions SessionReader) {
	gate := RequireRoles(sessions, AdminOrAbove...)
	mux.Handle("GET /api/notifications", gate(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/notifications/unread-count", gate(http.HandlerFunc(h.UnreadCount)))
	mux.Handle("PUT /api/notifications/mark-as-read", gate(http.HandlerFunc(h.MarkAsRead)))
	mux.Handle("DELETE /api/notifications/{id}", gate(http.HandlerFunc(h.Delete)))
}
