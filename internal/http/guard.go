package httpx

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
)

// Decision is the route guard's verdict for one request.
type Decision int

const (
	// Render passes the request to the protected handler.
	Render Decision = iota
	// ShowLoading renders a neutral loading indicator and nothing else.
	ShowLoading
	// RedirectLogin sends the user to the login entry point.
	RedirectLogin
	// RedirectHome sends the user to the public entry point.
	RedirectHome
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case ShowLoading:
		return "show_loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

// Evaluate decides how a protected route requiring role renders for snap.
// It has no side effects.
func Evaluate(snap domainauth.Snapshot, role domainauth.Role) Decision {
	switch {
	case snap.Loading:
		return ShowLoading
	case snap.Identity == nil || snap.Profile == nil:
		return RedirectLogin
	case !snap.Profile.HasRole(role):
		return RedirectHome
	default:
		return Render
	}
}

// SessionView is the read side of a session store.
type SessionView interface {
	Snapshot() domainauth.Snapshot
	WaitSettled(ctx context.Context) (domainauth.Snapshot, error)
	// Revalidate confirms a held identity is still live and returns the result.
	Revalidate(ctx context.Context) (domainauth.Snapshot, error)
}

// SessionLookup returns the session of a browser client.
type SessionLookup func(ctx context.Context, clientID string) (SessionView, error)

// GuardOptions configures RequireRole.
type GuardOptions struct {
	Sessions SessionLookup
	// SettleTimeout is how long a request waits for a fresh session to settle
	// before the loading indicator is shown. Zero never waits.
	SettleTimeout time.Duration
	LoginPath     string
	HomePath      string
	Logger        *slog.Logger
	Now           func() time.Time
}

func (o GuardOptions) withDefaults() GuardOptions {
	if o.LoginPath == "" {
		o.LoginPath = "/login"
	}
	if o.HomePath == "" {
		o.HomePath = "/"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// RequireRole returns a middleware that admits only sessions whose profile has role.
// Admitted requests carry the session snapshot in their context.
func RequireRole(opts GuardOptions, role domainauth.Role) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, ok := ClientIDFromContext(r.Context())
			if !ok || opts.Sessions == nil {
				redirectReplacing(w, r, opts.LoginPath)
				return
			}

			view, err := opts.Sessions(r.Context(), clientID)
			if err != nil {
				WriteServiceError(w, r, opts.Logger, err)
				return
			}
			snap := settledSnapshot(r.Context(), view, opts.SettleTimeout)
			if !snap.Loading && snap.Identity != nil {
				snap = revalidated(r.Context(), view, snap, opts)
			}

			switch Evaluate(snap, role) {
			case ShowLoading:
				writeLoading(w, r)
			case RedirectLogin:
				redirectReplacing(w, r, opts.LoginPath)
			case RedirectHome:
				redirectReplacing(w, r, opts.HomePath)
			default:
				next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), snap)))
			}
		})
	}
}

func settledSnapshot(ctx context.Context, view SessionView, timeout time.Duration) domainauth.Snapshot {
	snap := view.Snapshot()
	if !snap.Loading || timeout <= 0 {
		return snap
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	// On timeout the still-loading snapshot is returned and the indicator shown.
	waited, _ := view.WaitSettled(wctx)
	return waited
}

// revalidated asks the store to re-check a held identity. When the store cannot
// answer, a credential that has already lapsed is still treated as signed out.
func revalidated(ctx context.Context, view SessionView, snap domainauth.Snapshot, opts GuardOptions) domainauth.Snapshot {
	fresh, err := view.Revalidate(ctx)
	if err == nil {
		return fresh
	}
	opts.Logger.WarnContext(ctx, "session revalidation failed", "error", err)
	if snap.Identity.Expired(opts.Now()) {
		snap.Identity = nil
		snap.Profile = nil
		snap.State = domainauth.StateUnauthenticated
	}
	return snap
}

// redirectReplacing navigates without leaving the guarded page in history:
// htmx replaces the location, plain browsers follow a 303.
func redirectReplacing(w http.ResponseWriter, r *http.Request, path string) {
	if IsHTMX(r) {
		SetHXRedirect(w, path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

var loadingPage = template.Must(template.New("loading").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="1">
<title>Loading</title>
</head>
<body><div class="loading" role="status" aria-live="polite">Loading…</div></body>
</html>
`))

func writeLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = loadingPage.Execute(w, nil)
}
