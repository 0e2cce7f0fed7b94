package httpx

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/domain/model"
)

//go:embed pages/*.html
var pageFS embed.FS

// PageRenderer renders the small set of server-side pages.
type PageRenderer struct {
	pages map[string]*template.Template
}

// NewPageRenderer parses every page against the shared layout.
func NewPageRenderer() (*PageRenderer, error) {
	pr := &PageRenderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{"login", "home", "admin"} {
		t, err := template.ParseFS(pageFS, "pages/layout.html", "pages/"+name+".html")
		if err != nil {
			return nil, err
		}
		pr.pages[name] = t
	}
	return pr, nil
}

func (pr *PageRenderer) render(w http.ResponseWriter, r *http.Request, logger *slog.Logger, name string, data pageData) {
	t, ok := pr.pages[name]
	if !ok {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}
	data.CSRFToken = CSRFToken(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(r.Context(), "render page failed", "page", name, "error", err)
	}
}

type pageData struct {
	Title           string
	CSRFToken       string
	Toasts          []domainauth.Notification
	Profile         *domainauth.Profile
	Notices         *model.NoticePage
	NoticeTotal     int
	NoticePublished int
}

// PageHandlers serves the login page, the public home page and the admin dashboard.
type PageHandlers struct {
	Pages   *PageRenderer
	Notices NoticeServiceInterface
	Toasts  ToastSource
	Logger  *slog.Logger
}

func (h *PageHandlers) toasts(r *http.Request) []domainauth.Notification {
	cid, ok := ClientIDFromContext(r.Context())
	if !ok {
		return nil
	}
	return drainToasts(r, h.Toasts, h.Logger, cid)
}

// Login handles GET /login.
func (h *PageHandlers) Login(w http.ResponseWriter, r *http.Request) {
	h.Pages.render(w, r, h.Logger, "login", pageData{Title: "Login", Toasts: h.toasts(r)})
}

// Home handles GET /.
func (h *PageHandlers) Home(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Notices", Toasts: h.toasts(r)}
	page, err := h.Notices.ListPublished(r.Context(), parseNoticeListOptions(r))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	data.Notices = page
	h.Pages.render(w, r, h.Logger, "home", data)
}

// Dashboard handles GET /admin behind the admin route guard. API clients get JSON.
func (h *PageHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	all, err := h.Notices.ListAll(r.Context(), model.NoticesListOptions{})
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	published, err := h.Notices.ListPublished(r.Context(), model.NoticesListOptions{})
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	var profile *domainauth.Profile
	if p, ok := ProfileFromContext(r.Context()); ok {
		profile = &p
	}
	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"profile": profile,
			"notices": map[string]int{"total": all.Total, "published": published.Total},
		})
		return
	}
	h.Pages.render(w, r, h.Logger, "admin", pageData{
		Title:           "Dashboard",
		Toasts:          h.toasts(r),
		Profile:         profile,
		NoticeTotal:     all.Total,
		NoticePublished: published.Total,
	})
}
