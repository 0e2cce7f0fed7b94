package httpx

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/service"
)

// AuthServiceInterface is the session command surface used by the HTTP layer.
type AuthServiceInterface interface {
	Store(ctx context.Context, clientID string) (*service.SessionStore, error)
	Login(ctx context.Context, clientID, email, password string) (*service.CommandResult, error)
	Logout(ctx context.Context, clientID string) (*service.CommandResult, error)
	Status(ctx context.Context, clientID string) (domainauth.Snapshot, error)
}

// ToastSource hands out the notifications queued for a browser client.
type ToastSource interface {
	Drain(ctx context.Context, clientID string) ([]domainauth.Notification, error)
}

// toastQueue is implemented by toast sources that accept notifications directly.
type toastQueue interface {
	Push(ctx context.Context, clientID string, n domainauth.Notification) error
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc    AuthServiceInterface
	Toasts ToastSource
	// Cookie configures the portal_cid cookie reissued after login.
	Cookie ClientIDOptions
	Logger *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login runs the login command for the requesting client.
// POST /auth/login with a form or JSON body {email, password}.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ClientIDFromContext(r.Context())
	if !ok {
		writeMissingClient(w)
		return
	}
	var req loginRequest
	if !decodeLogin(w, r, &req) {
		return
	}

	res, err := h.Svc.Login(r.Context(), clientID, req.Email, req.Password)
	if err != nil {
		WriteServiceError(w, r, h.logger(), err)
		return
	}
	if res.ClientID != "" && res.ClientID != clientID {
		setClientIDCookie(w, r, res.ClientID, h.Cookie)
		h.moveToasts(r, clientID, res.ClientID)
		clientID = res.ClientID
	}
	h.respondCommand(w, r, clientID, res, "/login")
}

// moveToasts carries notifications queued under the old client id over to the
// new one so the next response still shows them.
func (h *AuthHandlers) moveToasts(r *http.Request, from, to string) {
	q, ok := h.Toasts.(toastQueue)
	if !ok {
		return
	}
	for _, n := range h.drain(r, from) {
		if err := q.Push(r.Context(), to, n); err != nil {
			h.logger().WarnContext(r.Context(), "requeue notification failed", "client_id", to, "error", err)
		}
	}
}

// Logout runs the logout command for the requesting client.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ClientIDFromContext(r.Context())
	if !ok {
		writeMissingClient(w)
		return
	}
	res, err := h.Svc.Logout(r.Context(), clientID)
	if err != nil {
		WriteServiceError(w, r, h.logger(), err)
		return
	}
	h.respondCommand(w, r, clientID, res, "/admin")
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ClientIDFromContext(r.Context())
	if !ok {
		writeMissingClient(w)
		return
	}
	snap, err := h.Svc.Status(r.Context(), clientID)
	if err != nil {
		WriteServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, statusBody(snap))
}

// Notifications drains the notifications queued for the requesting client.
// GET /api/notifications.
func (h *AuthHandlers) Notifications(w http.ResponseWriter, r *http.Request) {
	clientID, ok := ClientIDFromContext(r.Context())
	if !ok {
		writeMissingClient(w)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"notifications": h.drain(r, clientID)})
}

// respondCommand renders a login/logout outcome. htmx callers get toasts in
// Hx-Trigger and Hx-Redirect for navigation; JSON callers get everything in
// the body; form posts follow a 303 and pick toasts up on the next page.
func (h *AuthHandlers) respondCommand(
	w http.ResponseWriter,
	r *http.Request,
	clientID string,
	res *service.CommandResult,
	fallback string,
) {
	redirect := ""
	if res.Redirect != nil {
		redirect = res.Redirect.Path
	}

	switch {
	case IsHTMX(r):
		SetToasts(w, h.drain(r, clientID))
		if redirect != "" {
			SetHXRedirect(w, redirect)
		}
		w.WriteHeader(http.StatusNoContent)
	case IsBrowserRequest(r) && !wantsJSON(r):
		if redirect == "" {
			redirect = fallback
		}
		http.Redirect(w, r, redirect, http.StatusSeeOther)
	default:
		code := http.StatusOK
		if !res.OK {
			code = http.StatusUnauthorized
		}
		body := map[string]any{
			"ok":            res.OK,
			"session":       statusBody(res.Session),
			"notifications": h.drain(r, clientID),
		}
		if redirect != "" {
			body["redirect_to"] = redirect
		}
		WriteJSON(w, code, body)
	}
}

func (h *AuthHandlers) drain(r *http.Request, clientID string) []domainauth.Notification {
	return drainToasts(r, h.Toasts, h.logger(), clientID)
}

// drainToasts never returns nil so JSON bodies carry an empty list.
func drainToasts(r *http.Request, src ToastSource, logger *slog.Logger, clientID string) []domainauth.Notification {
	out := []domainauth.Notification{}
	if src == nil {
		return out
	}
	toasts, err := src.Drain(r.Context(), clientID)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(r.Context(), "drain notifications failed", "client_id", clientID, "error", err)
		return out
	}
	return append(out, toasts...)
}

type statusUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name,omitempty"`
	ContactNumber string `json:"contact_number,omitempty"`
	Role          string `json:"role"`
}

type statusResponse struct {
	Authenticated bool        `json:"authenticated"`
	Loading       bool        `json:"loading"`
	State         string      `json:"state"`
	User          *statusUser `json:"user,omitempty"`
}

func statusBody(snap domainauth.Snapshot) statusResponse {
	out := statusResponse{
		Authenticated: snap.Profile != nil,
		Loading:       snap.Loading,
		State:         snap.State.String(),
	}
	if snap.Profile != nil {
		out.User = &statusUser{
			ID:            snap.Profile.ID,
			Email:         snap.Profile.Email,
			FullName:      snap.Profile.FullName,
			ContactNumber: snap.Profile.ContactNumber,
			Role:          string(snap.Profile.Role),
		}
	}
	return out
}

func decodeLogin(w http.ResponseWriter, r *http.Request, dst *loginRequest) bool {
	if isJSONBody(r) {
		return DecodeJSON(w, r, dst)
	}
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
		return false
	}
	dst.Email = r.PostFormValue("email")
	dst.Password = r.PostFormValue("password")
	return true
}

func isJSONBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func wantsJSON(r *http.Request) bool {
	return isJSONBody(r) || strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeMissingClient(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusBadRequest,
		ErrCode: "missing_client_id",
		Err:     errors.New("client id cookie is required"),
	})
}
