package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/domain/model"
)

// GalleryServiceInterface is the gallery surface used by the HTTP layer.
type GalleryServiceInterface interface {
	Create(ctx context.Context, actor domainauth.Profile, req *model.CreateGalleryItemRequest) (*model.GalleryItem, error)
	Update(ctx context.Context, id string, req model.UpdateGalleryItemRequest) (*model.GalleryItem, error)
	Delete(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*model.GalleryItem, error)
	ListAll(ctx context.Context, opts model.GalleryListOptions) (*model.GalleryPage, error)
	ListPublished(ctx context.Context, opts model.GalleryListOptions) (*model.GalleryPage, error)
}

// GalleryHandlers serves gallery management and the public gallery.
type GalleryHandlers struct {
	Svc    GalleryServiceInterface
	Logger *slog.Logger
}

// List handles GET /api/admin/gallery?q=&category=&page=.
func (h *GalleryHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Svc.ListAll(r.Context(), parseGalleryListOptions(r))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// Public handles GET /api/gallery?q=&category=&page=.
func (h *GalleryHandlers) Public(w http.ResponseWriter, r *http.Request) {
	page, err := h.Svc.ListPublished(r.Context(), parseGalleryListOptions(r))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// GetByID handles GET /api/admin/gallery/{id}.
func (h *GalleryHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	item, err := h.Svc.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

// Create handles POST /api/admin/gallery.
func (h *GalleryHandlers) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := ProfileFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errors.New("authentication required")})
		return
	}
	var req model.CreateGalleryItemRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	item, err := h.Svc.Create(r.Context(), actor, &req)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, item)
}

// Update handles PUT /api/admin/gallery/{id}.
func (h *GalleryHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateGalleryItemRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	item, err := h.Svc.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

// Delete handles DELETE /api/admin/gallery/{id}.
func (h *GalleryHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Svc.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("gallery item not found")})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
