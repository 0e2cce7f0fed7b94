package httpx

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const (
	// CSRFCookie holds the double-submit token.
	CSRFCookie = "portal_csrf"
	// CSRFHeader carries the token on htmx and JSON requests.
	CSRFHeader = "X-Csrf-Token"
	// CSRFFormField carries the token on plain form posts.
	CSRFFormField = "csrf_token"

	csrfTokenBytes  = 32
	csrfCookieHours = 12
)

// CSRFOptions configures CSRFProtection.
type CSRFOptions struct {
	CookieDomain string
}

// CSRFProtection guards state-changing requests with a double-submit cookie.
// Every request gets a portal_csrf cookie; POST, PUT, PATCH and DELETE must
// echo its value in the X-Csrf-Token header or the csrf_token form field.
// The token is exposed to handlers through CSRFToken for templates.
func CSRFProtection(opts CSRFOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := readCSRFCookie(r)
			if token == "" {
				var err error
				if token, err = newCSRFToken(); err != nil {
					http.Error(w, "unable to generate CSRF token", http.StatusInternalServerError)
					return
				}
				// Readable so same-origin fetch calls can echo it.
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookie,
					Value:    token,
					Path:     "/",
					Domain:   opts.CookieDomain,
					HttpOnly: false,
					Secure:   isSecureRequest(r),
					SameSite: http.SameSiteStrictMode,
					MaxAge:   csrfCookieHours * 3600,
				})
			}

			r = r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, token))
			if needsCSRFCheck(r.Method) && !csrfTokenMatches(r, token) {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "csrf_failed",
					Err:     fmt.Errorf("missing or mismatched %s", CSRFHeader),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFToken returns the token for the current request, or "" outside CSRFProtection.
func CSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfTokenKey{}).(string)
	return token
}

type csrfTokenKey struct{}

func needsCSRFCheck(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

func readCSRFCookie(r *http.Request) string {
	c, err := r.Cookie(CSRFCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// newCSRFToken fails rather than fall back to a guessable token.
func newCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// csrfTokenMatches compares in constant time. The header wins over the form
// field; the body is only parsed for form encodings.
func csrfTokenMatches(r *http.Request, want string) bool {
	if want == "" {
		return false
	}
	got := r.Header.Get(CSRFHeader)
	if got == "" {
		ct := r.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "application/x-www-form-urlencoded") && !strings.HasPrefix(ct, "multipart/form-data") {
			return false
		}
		got = r.PostFormValue(CSRFFormField)
	}
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
