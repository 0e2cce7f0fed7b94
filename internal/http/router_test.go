package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/net/publicsuffix"

	redisadapter "github.com/gpchangipur/portal/internal/adapters/redis"
	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/mocks"
	mockauth "github.com/gpchangipur/portal/internal/mocks/auth"
	"github.com/gpchangipur/portal/internal/ports"
	"github.com/gpchangipur/portal/internal/service"
	"github.com/gpchangipur/portal/internal/testutil"
)

var (
	adminAccount   = mockauth.Account{UserID: "admin-1", Email: "principal@gpc.edu.bd", Password: "correctpw"}
	teacherAccount = mockauth.Account{UserID: "teacher-1", Email: "teacher@gpc.edu.bd", Password: "correctpw"}
	adminProfile   = domainauth.Profile{ID: "admin-1", Email: "principal@gpc.edu.bd", FullName: "Principal", Role: domainauth.RoleAdmin}
	teacherProfile = domainauth.Profile{ID: "teacher-1", Email: "teacher@gpc.edu.bd", Role: domainauth.RoleTeacher}
)

type routerHarness struct {
	srv      *httptest.Server
	client   *http.Client
	idp      *mockauth.FakeIdentityProvider
	profiles *mockauth.MemoryProfiles
	notices  *mocks.MockNoticeRepository
	gallery  *mocks.MockGalleryRepository
	ready    map[string]HealthCheck
}

func newRouterHarness(t *testing.T) *routerHarness {
	t.Helper()
	idp := mockauth.NewFakeIdentityProvider(adminAccount, teacherAccount)
	h := newRouterHarnessWith(t, idp, nil)
	h.idp = idp
	return h
}

// newRouterHarnessWith serves the router on top of identity. tweak adjusts the
// session registry before it is built.
func newRouterHarnessWith(t *testing.T, identity ports.IdentityProvider, tweak func(*service.SessionRegistryOptions)) *routerHarness {
	t.Helper()
	ctrl := gomock.NewController(t)
	_, rdb := testutil.NewMiniRedis(t)

	h := &routerHarness{
		profiles: mockauth.NewMemoryProfiles(adminProfile, teacherProfile),
		notices:  mocks.NewMockNoticeRepository(ctrl),
		gallery:  mocks.NewMockGalleryRepository(ctrl),
		ready:    map[string]HealthCheck{"redis": func(context.Context) error { return nil }},
	}
	flash := redisadapter.NewFlashStore(redisadapter.FlashStoreOptions{Client: rdb})

	opts := service.SessionRegistryOptions{
		Identity:     identity,
		Profiles:     h.profiles,
		Notifiers:    flash.Notifier,
		IdleTTL:      time.Minute,
		TouchTimeout: time.Second,
	}
	if tweak != nil {
		tweak(&opts)
	}
	reg, err := service.NewSessionRegistry(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	pages, err := NewPageRenderer()
	require.NoError(t, err)

	handler := NewRouter(RouterServices{
		Auth:               service.NewAuthService(service.AuthServiceOptions{Sessions: reg, SettleTimeout: time.Second}),
		Notices:            service.NewNoticeService(service.NoticeServiceOptions{Repo: h.notices}),
		Gallery:            service.NewGalleryService(service.GalleryServiceOptions{Repo: h.gallery}),
		Settings:           service.NewSettingsService(service.SettingsServiceOptions{Profiles: h.profiles, Notifiers: flash.Notifier}),
		Toasts:             flash,
		Pages:              pages,
		Ready:              h.ready,
		Metrics:            http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "# metrics\n") }),
		GuardSettleTimeout: time.Second,
	})
	h.srv = httptest.NewServer(handler)
	t.Cleanup(h.srv.Close)

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	require.NoError(t, err)
	h.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return h
}

// do sends a request the way the portal's pages do: unsafe methods echo the
// CSRF cookie in X-Csrf-Token unless the caller sets that header itself.
func (h *routerHarness) do(t *testing.T, method, path string, body io.Reader, header map[string]string) *http.Response {
	t.Helper()
	if _, set := header[CSRFHeader]; !set && needsCSRFCheck(method) {
		merged := map[string]string{CSRFHeader: h.csrfToken(t)}
		for k, v := range header {
			merged[k] = v
		}
		header = merged
	}
	return h.raw(t, method, path, body, header)
}

func (h *routerHarness) raw(t *testing.T, method, path string, body io.Reader, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// csrfToken returns the jar's CSRF cookie, visiting /healthz first to obtain one.
func (h *routerHarness) csrfToken(t *testing.T) string {
	t.Helper()
	if v := h.cookie(t, CSRFCookie); v != "" {
		return v
	}
	h.raw(t, http.MethodGet, "/healthz", nil, nil)
	v := h.cookie(t, CSRFCookie)
	require.NotEmpty(t, v, "csrf cookie not issued")
	return v
}

func (h *routerHarness) cookie(t *testing.T, name string) string {
	t.Helper()
	u, err := url.Parse(h.srv.URL)
	require.NoError(t, err)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (h *routerHarness) getJSON(t *testing.T, path string, out any) *http.Response {
	t.Helper()
	resp := h.do(t, http.MethodGet, path, nil, map[string]string{"Accept": "application/json"})
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (h *routerHarness) sendJSON(t *testing.T, method, path, body string, out any) *http.Response {
	t.Helper()
	resp := h.do(t, method, path, strings.NewReader(body), map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	})
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (h *routerHarness) login(t *testing.T, acct mockauth.Account) commandBody {
	t.Helper()
	var body commandBody
	h.sendJSON(t, http.MethodPost, "/auth/login",
		`{"email":"`+acct.Email+`","password":"`+acct.Password+`"}`, &body)
	return body
}

func (h *routerHarness) clientID(t *testing.T) string {
	t.Helper()
	v := h.cookie(t, ClientIDCookie)
	if v == "" {
		t.Fatal("client id cookie not set")
	}
	return v
}

type commandBody struct {
	OK            bool                      `json:"ok"`
	Session       statusResponse            `json:"session"`
	Notifications []domainauth.Notification `json:"notifications"`
	RedirectTo    string                    `json:"redirect_to"`
}

func TestRouter_Health(t *testing.T) {
	h := newRouterHarness(t)

	resp := h.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	h.ready["postgres"] = func(context.Context) error { return errors.New("connection refused") }
	resp = h.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_StatusIssuesClientID(t *testing.T) {
	h := newRouterHarness(t)

	var status statusResponse
	resp := h.getJSON(t, "/auth/status", &status)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, status.Authenticated)
	assert.False(t, status.Loading)
	assert.Equal(t, "unauthenticated", status.State)
	assert.NotEmpty(t, h.clientID(t))
}

func TestRouter_AdminRedirectsAnonymousToLogin(t *testing.T) {
	h := newRouterHarness(t)

	resp := h.do(t, http.MethodGet, "/admin", nil, map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = h.do(t, http.MethodGet, "/admin", nil, map[string]string{"Hx-Request": "true"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Hx-Redirect"))
}

func TestRouter_LoginAndLogoutJSON(t *testing.T) {
	h := newRouterHarness(t)
	h.notices.EXPECT().List(gomock.Any()).Return(nil, nil)
	h.notices.EXPECT().ListPublished(gomock.Any(), gomock.Any()).Return(nil, nil)

	body := h.login(t, adminAccount)
	assert.True(t, body.OK)
	assert.Equal(t, "/admin", body.RedirectTo)
	assert.True(t, body.Session.Authenticated)
	require.NotNil(t, body.Session.User)
	assert.Equal(t, "admin", body.Session.User.Role)
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "Login successful", body.Notifications[0].Title)

	var dash struct {
		Profile *domainauth.Profile `json:"profile"`
		Notices map[string]int      `json:"notices"`
	}
	resp := h.getJSON(t, "/admin", &dash)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, dash.Profile)
	assert.Equal(t, "admin-1", dash.Profile.ID)
	assert.Equal(t, 0, dash.Notices["total"])

	var out commandBody
	resp = h.sendJSON(t, http.MethodPost, "/auth/logout", `{}`, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.OK)
	assert.Equal(t, "/login", out.RedirectTo)
	assert.False(t, out.Session.Authenticated)

	resp = h.do(t, http.MethodGet, "/admin", nil, map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestRouter_LoginRejected(t *testing.T) {
	h := newRouterHarness(t)

	var body commandBody
	resp := h.sendJSON(t, http.MethodPost, "/auth/login", `{"email":"principal@gpc.edu.bd","password":"nope"}`, &body)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, body.OK)
	assert.Empty(t, body.RedirectTo)
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, domainauth.SeverityDestructive, body.Notifications[0].Severity)
	assert.Equal(t, "Invalid credentials. Please check your email and password.", body.Notifications[0].Description)
}

func TestRouter_LoginDeniesNonAdmin(t *testing.T) {
	h := newRouterHarness(t)

	body := h.login(t, teacherAccount)

	assert.False(t, body.OK)
	assert.False(t, body.Session.Authenticated)
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "Only administrators can access this portal.", body.Notifications[0].Description)
	assert.Equal(t, 1, h.idp.Fake(h.clientID(t)).SignOutCalls())
}

func TestRouter_LoginHTMX(t *testing.T) {
	h := newRouterHarness(t)

	form := url.Values{"email": {adminAccount.Email}, "password": {adminAccount.Password}}
	resp := h.do(t, http.MethodPost, "/auth/login", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Hx-Request":   "true",
	})

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Hx-Redirect"))

	var trigger map[string][]domainauth.Notification
	require.NoError(t, json.Unmarshal([]byte(resp.Header.Get("Hx-Trigger")), &trigger))
	require.Len(t, trigger[ToastEvent], 1)
	assert.Equal(t, "Login successful", trigger[ToastEvent][0].Title)
}

func TestRouter_LoginFormFollowsRedirect(t *testing.T) {
	h := newRouterHarness(t)

	form := url.Values{"email": {adminAccount.Email}, "password": {"wrong"}}
	resp := h.do(t, http.MethodPost, "/auth/login", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "text/html",
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	// The failure toast waits for the next response.
	var queued struct {
		Notifications []domainauth.Notification `json:"notifications"`
	}
	h.getJSON(t, "/api/notifications", &queued)
	require.Len(t, queued.Notifications, 1)
	assert.Equal(t, "Login failed", queued.Notifications[0].Title)

	h.getJSON(t, "/api/notifications", &queued)
	assert.Empty(t, queued.Notifications)
}

func TestRouter_LoginPageRendersToasts(t *testing.T) {
	h := newRouterHarness(t)

	resp := h.do(t, http.MethodPost, "/auth/login", strings.NewReader("email=&password="), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "text/html",
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/login", nil, map[string]string{"Accept": "text/html"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "Email and password are required.")
}

func TestRouter_AdminOnlyAPIsRequireSession(t *testing.T) {
	h := newRouterHarness(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/notices"},
		{http.MethodPost, "/api/admin/notices"},
		{http.MethodDelete, "/api/admin/notices/n-1"},
		{http.MethodPut, "/api/admin/settings/profile"},
		{http.MethodGet, "/api/admin/gallery"},
		{http.MethodPost, "/api/admin/gallery"},
		{http.MethodDelete, "/api/admin/gallery/g-1"},
	} {
		resp := h.do(t, tc.method, tc.path, nil, map[string]string{"Accept": "application/json"})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "%s %s", tc.method, tc.path)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	}
}

func TestRouter_UnsafeRequestsNeedCSRFToken(t *testing.T) {
	h := newRouterHarness(t)
	h.csrfToken(t)

	for _, path := range []string{"/auth/login", "/auth/logout"} {
		resp := h.raw(t, http.MethodPost, path, strings.NewReader(`{}`), map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}

	resp := h.raw(t, http.MethodPost, "/auth/login", strings.NewReader(`{}`), map[string]string{
		"Content-Type": "application/json",
		CSRFHeader:     "forged",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, h.idp.Fake(h.clientID(t)).SignInCalls())
}

func TestRouter_LoginFormCarriesCSRFField(t *testing.T) {
	h := newRouterHarness(t)

	resp := h.do(t, http.MethodGet, "/login", nil, map[string]string{"Accept": "text/html"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	token := h.cookie(t, CSRFCookie)
	require.NotEmpty(t, token)
	assert.Contains(t, string(page), `name="csrf_token" value="`+token+`"`)

	form := url.Values{
		"email":       {adminAccount.Email},
		"password":    {adminAccount.Password},
		CSRFFormField: {token},
	}
	resp = h.raw(t, http.MethodPost, "/auth/login", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "text/html",
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))
}

func TestRouter_LoginRotatesClientID(t *testing.T) {
	h := newRouterHarness(t)
	h.csrfToken(t)
	before := h.clientID(t)

	body := h.login(t, adminAccount)
	require.True(t, body.OK)
	assert.True(t, body.Session.Authenticated)
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "Login successful", body.Notifications[0].Title)

	after := h.clientID(t)
	assert.NotEqual(t, before, after)
	assert.Equal(t, [][2]string{{before, after}}, h.idp.Moves())

	var status statusResponse
	h.getJSON(t, "/auth/status", &status)
	assert.True(t, status.Authenticated)

	// Replaying the pre-login cookie does not carry the session.
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/auth/status", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: ClientIDCookie, Value: before})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var replay statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&replay))
	assert.False(t, replay.Authenticated)
}

func TestRouter_LoginFormToastsFollowRotation(t *testing.T) {
	h := newRouterHarness(t)

	form := url.Values{"email": {adminAccount.Email}, "password": {adminAccount.Password}}
	resp := h.do(t, http.MethodPost, "/auth/login", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "text/html",
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var queued struct {
		Notifications []domainauth.Notification `json:"notifications"`
	}
	h.getJSON(t, "/api/notifications", &queued)
	require.Len(t, queued.Notifications, 1)
	assert.Equal(t, "Login successful", queued.Notifications[0].Title)
}
