package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gpchangipur/portal/internal/ports"
	"github.com/gpchangipur/portal/internal/service"
)

// SettingsServiceInterface is the settings surface used by the HTTP layer.
type SettingsServiceInterface interface {
	UpdateProfile(ctx context.Context, store *service.SessionStore, req service.UpdateProfileRequest) error
	ChangePassword(ctx context.Context, store *service.SessionStore, req service.ChangePasswordRequest) error
}

// SettingsHandlers lets the signed-in admin edit their own profile and password.
type SettingsHandlers struct {
	Svc    SettingsServiceInterface
	Auth   AuthServiceInterface
	Toasts ToastSource
	Logger *slog.Logger
}

// UpdateProfile handles PUT /api/admin/settings/profile.
func (h *SettingsHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateProfileRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	h.run(w, r, func(ctx context.Context, store *service.SessionStore) error {
		return h.Svc.UpdateProfile(ctx, store, req)
	})
}

// ChangePassword handles PUT /api/admin/settings/password.
func (h *SettingsHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req service.ChangePasswordRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	h.run(w, r, func(ctx context.Context, store *service.SessionStore) error {
		return h.Svc.ChangePassword(ctx, store, req)
	})
}

func (h *SettingsHandlers) run(w http.ResponseWriter, r *http.Request, fn func(context.Context, *service.SessionStore) error) {
	clientID, ok := ClientIDFromContext(r.Context())
	if !ok {
		writeMissingClient(w)
		return
	}
	store, err := h.Auth.Store(r.Context(), clientID)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	err = fn(r.Context(), store)
	toasts := drainToasts(r, h.Toasts, h.Logger, clientID)
	switch {
	case errors.Is(err, ports.ErrNoSession):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: err})
	case err != nil:
		SetToasts(w, toasts)
		WriteServiceError(w, r, h.Logger, err)
	default:
		SetToasts(w, toasts)
		WriteJSON(w, http.StatusOK, map[string]any{
			"session":       statusBody(store.Snapshot()),
			"notifications": toasts,
		})
	}
}
