package httpx

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestPageHandlers_HomeListsPublishedNotices(t *testing.T) {
	h := newRouterHarness(t)
	h.notices.EXPECT().ListPublished(gomock.Any(), gomock.Any()).Return(publishedNotices(), nil)

	resp := h.do(t, http.MethodGet, "/?category=examination", nil, map[string]string{"Accept": "text/html"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	page := readBody(t, resp)
	assert.Contains(t, page, "Semester final routine")
	assert.NotContains(t, page, "Annual sports week")
}

func TestPageHandlers_UnknownPathIsNotFound(t *testing.T) {
	h := newRouterHarness(t)

	resp := h.do(t, http.MethodGet, "/no-such-page", nil, map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPageHandlers_DashboardForAdmin(t *testing.T) {
	h := newRouterHarness(t)
	h.notices.EXPECT().List(gomock.Any()).Return(publishedNotices(), nil)
	h.notices.EXPECT().ListPublished(gomock.Any(), gomock.Any()).Return(publishedNotices()[:1], nil)
	require.True(t, h.login(t, adminAccount).OK)

	resp := h.do(t, http.MethodGet, "/admin", nil, map[string]string{"Accept": "text/html"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := readBody(t, resp)
	assert.Contains(t, page, "Signed in as Principal (admin)")
	assert.Contains(t, page, "3 notices, 1 on the public board.")
}

func TestPageHandlers_LoginPage(t *testing.T) {
	h := newRouterHarness(t)

	resp := h.do(t, http.MethodGet, "/login", nil, map[string]string{"Accept": "text/html"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := readBody(t, resp)
	assert.Contains(t, page, `action="/auth/login"`)
	assert.NotContains(t, page, "toast-destructive")
}
