package httpx

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ClientIDCookie names the cookie that identifies one browser client.
const ClientIDCookie = "portal_cid"

const defaultClientIDMaxAge = 400 * 24 * time.Hour

// ClientIDOptions configures the ClientID middleware.
type ClientIDOptions struct {
	CookieDomain string
	// MaxAge defaults to 400 days, the longest lifetime browsers honour.
	MaxAge time.Duration
}

// ClientID returns a middleware that ensures every request carries a browser
// client id. A missing or malformed portal_cid cookie is replaced by a fresh uuid.
func ClientID(opts ClientIDOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := readClientID(r)
			if id == "" {
				id = uuid.NewString()
				setClientIDCookie(w, r, id, opts)
			}
			next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), id)))
		})
	}
}

// setClientIDCookie points the browser at id from now on.
func setClientIDCookie(w http.ResponseWriter, r *http.Request, id string, opts ClientIDOptions) {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = defaultClientIDMaxAge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ClientIDCookie,
		Value:    id,
		Path:     "/",
		Domain:   opts.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}

func readClientID(r *http.Request) string {
	c, err := r.Cookie(ClientIDCookie)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return ""
	}
	return id.String()
}
