package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/domain/model"
)

// NoticeServiceInterface is the notice surface used by the HTTP layer.
type NoticeServiceInterface interface {
	Create(ctx context.Context, actor domainauth.Profile, req *model.CreateNoticeRequest) (*model.Notice, error)
	Update(ctx context.Context, id string, req model.UpdateNoticeRequest) (*model.Notice, error)
	Delete(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Notice, error)
	ListAll(ctx context.Context, opts model.NoticesListOptions) (*model.NoticePage, error)
	ListPublished(ctx context.Context, opts model.NoticesListOptions) (*model.NoticePage, error)
}

// NoticeHandlers serves the admin notice console and the public board.
type NoticeHandlers struct {
	Svc    NoticeServiceInterface
	Logger *slog.Logger
}

// List handles GET /api/admin/notices?q=&category=&page=.
func (h *NoticeHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Svc.ListAll(r.Context(), parseNoticeListOptions(r))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// Public handles GET /api/notices?q=&category=&page=.
func (h *NoticeHandlers) Public(w http.ResponseWriter, r *http.Request) {
	page, err := h.Svc.ListPublished(r.Context(), parseNoticeListOptions(r))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// GetByID handles GET /api/admin/notices/{id}.
func (h *NoticeHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, n)
}

// Create handles POST /api/admin/notices.
func (h *NoticeHandlers) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := ProfileFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errors.New("authentication required")})
		return
	}
	var req model.CreateNoticeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	n, err := h.Svc.Create(r.Context(), actor, &req)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, n)
}

// Update handles PUT /api/admin/notices/{id}.
func (h *NoticeHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateNoticeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	n, err := h.Svc.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, n)
}

// Delete handles DELETE /api/admin/notices/{id}.
func (h *NoticeHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Svc.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("notice not found")})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
