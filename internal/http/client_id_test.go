package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveClientID(t *testing.T, opts ClientIDOptions, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	h := ClientID(opts)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		id, ok := ClientIDFromContext(r.Context())
		require.True(t, ok)
		seen = id
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, seen
}

func TestClientID_IssuesCookie(t *testing.T) {
	w, seen := serveClientID(t, ClientIDOptions{CookieDomain: "gpc.edu.bd"}, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, ClientIDCookie, c.Name)
	assert.Equal(t, seen, c.Value)
	assert.True(t, c.HttpOnly)
	assert.False(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "gpc.edu.bd", c.Domain)
	assert.Equal(t, int(defaultClientIDMaxAge.Seconds()), c.MaxAge)
}

func TestClientID_ReusesValidCookie(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientIDCookie, Value: id})

	w, seen := serveClientID(t, ClientIDOptions{}, req)

	assert.Equal(t, id, seen)
	assert.Empty(t, w.Result().Cookies())
}

func TestClientID_ReplacesMalformedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientIDCookie, Value: "../../etc"})
	req.Header.Set("X-Forwarded-Proto", "https")

	w, seen := serveClientID(t, ClientIDOptions{}, req)

	assert.NotEqual(t, "../../etc", seen)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, seen, cookies[0].Value)
	assert.True(t, cookies[0].Secure)
}
