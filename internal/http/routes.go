package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth     AuthServiceInterface
	Notices  NoticeServiceInterface
	Gallery  GalleryServiceInterface
	Settings SettingsServiceInterface
	Toasts   ToastSource
	Pages    *PageRenderer

	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Ready lists the dependency probes behind /readyz.
	Ready map[string]HealthCheck

	CookieDomain       string
	GuardSettleTimeout time.Duration
	Logger             *slog.Logger
}

// NewRouter creates and configures the HTTP router with its middleware chain.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.Ready))
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics)
	}

	adminOnly := RequireRole(GuardOptions{
		Sessions:      sessionLookup(services.Auth),
		SettleTimeout: services.GuardSettleTimeout,
		Logger:        logger,
	}, domainauth.RoleAdmin)

	cookie := ClientIDOptions{CookieDomain: services.CookieDomain}
	authHandlers := &AuthHandlers{Svc: services.Auth, Toasts: services.Toasts, Cookie: cookie, Logger: logger}
	registerAuthRoutes(mux, authHandlers)

	if services.Notices != nil {
		registerNoticeRoutes(mux, &NoticeHandlers{Svc: services.Notices, Logger: logger}, adminOnly)
	}
	if services.Gallery != nil {
		registerGalleryRoutes(mux, &GalleryHandlers{Svc: services.Gallery, Logger: logger}, adminOnly)
	}
	if services.Settings != nil {
		registerSettingsRoutes(mux, &SettingsHandlers{
			Svc:    services.Settings,
			Auth:   services.Auth,
			Toasts: services.Toasts,
			Logger: logger,
		}, adminOnly)
	}
	if services.Pages != nil && services.Notices != nil {
		registerPageRoutes(mux, &PageHandlers{
			Pages:   services.Pages,
			Notices: services.Notices,
			Toasts:  services.Toasts,
			Logger:  logger,
		}, adminOnly)
	}

	return Chain(mux,
		Recover(logger),
		ClientID(cookie),
		CSRFProtection(CSRFOptions{CookieDomain: services.CookieDomain}),
		Logging(logger),
		BrowserDetection(),
	)
}

// sessionLookup adapts the auth service to the guard without leaking a typed nil.
func sessionLookup(auth AuthServiceInterface) SessionLookup {
	if auth == nil {
		return nil
	}
	return func(ctx context.Context, clientID string) (SessionView, error) {
		store, err := auth.Store(ctx, clientID)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	if h.Svc == nil {
		return
	}
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /api/notifications", h.Notifications)
}

func registerNoticeRoutes(mux *http.ServeMux, h *NoticeHandlers, guard func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/notices", h.Public)

	const base = "/api/admin/notices"
	mux.Handle("GET "+base, guard(http.HandlerFunc(h.List)))
	mux.Handle("POST "+base, guard(http.HandlerFunc(h.Create)))
	mux.Handle("GET "+base+"/{id}", guard(http.HandlerFunc(h.GetByID)))
	mux.Handle("PUT "+base+"/{id}", guard(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE "+base+"/{id}", guard(http.HandlerFunc(h.Delete)))
}

func registerGalleryRoutes(mux *http.ServeMux, h *GalleryHandlers, guard func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/gallery", h.Public)

	const base = "/api/admin/gallery"
	mux.Handle("GET "+base, guard(http.HandlerFunc(h.List)))
	mux.Handle("POST "+base, guard(http.HandlerFunc(h.Create)))
	mux.Handle("GET "+base+"/{id}", guard(http.HandlerFunc(h.GetByID)))
	mux.Handle("PUT "+base+"/{id}", guard(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE "+base+"/{id}", guard(http.HandlerFunc(h.Delete)))
}

func registerSettingsRoutes(mux *http.ServeMux, h *SettingsHandlers, guard func(http.Handler) http.Handler) {
	mux.Handle("PUT /api/admin/settings/profile", guard(http.HandlerFunc(h.UpdateProfile)))
	mux.Handle("PUT /api/admin/settings/password", guard(http.HandlerFunc(h.ChangePassword)))
}

func registerPageRoutes(mux *http.ServeMux, h *PageHandlers, guard func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /login", h.Login)
	mux.Handle("GET /admin", guard(http.HandlerFunc(h.Dashboard)))
}
