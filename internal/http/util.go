package httpx

import (
	"net/http"
	"strconv"

	"github.com/gpchangipur/portal/internal/domain/model"
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// parseNoticeListOptions reads q, category and page. An unknown category
// filters nothing rather than failing the request.
func parseNoticeListOptions(r *http.Request) model.NoticesListOptions {
	opts := model.NoticesListOptions{
		Q:    r.URL.Query().Get("q"),
		Page: parseIntQuery(r, "page", 1),
	}
	if c, ok := model.ParseNoticeCategory(r.URL.Query().Get("category")); ok {
		opts.Category = c
	}
	return opts
}

// parseGalleryListOptions reads q, category and page like parseNoticeListOptions.
func parseGalleryListOptions(r *http.Request) model.GalleryListOptions {
	opts := model.GalleryListOptions{
		Q:    r.URL.Query().Get("q"),
		Page: parseIntQuery(r, "page", 1),
	}
	if c, ok := model.ParseGalleryCategory(r.URL.Query().Get("category")); ok {
		opts.Category = c
	}
	return opts
}
