package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/gpchangipur/portal/internal/core"
	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/domain/model"
	apperrors "github.com/gpchangipur/portal/internal/errors"
)

const (
	publishedGalleryKey     = "gallery:published"
	defaultGalleryPageSize  = 12
	defaultGalleryCacheTTL  = time.Minute
	galleryCacheCleanupTick = time.Minute
)

// GalleryServiceOptions groups dependencies for GalleryService.
type GalleryServiceOptions struct {
	Repo     core.GalleryRepository
	CacheTTL time.Duration
	PageSize int
	Logger   *slog.Logger
}

// GalleryService manages campus photos for admins and serves the public gallery.
type GalleryService struct {
	repo     core.GalleryRepository
	cache    *gocache.Cache
	pageSize int
	logger   *slog.Logger
}

// NewGalleryService constructs a new GalleryService.
func NewGalleryService(opts GalleryServiceOptions) *GalleryService {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultGalleryCacheTTL
	}
	size := opts.PageSize
	if size <= 0 {
		size = defaultGalleryPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GalleryService{
		repo:     opts.Repo,
		cache:    gocache.New(ttl, galleryCacheCleanupTick),
		pageSize: size,
		logger:   logger,
	}
}

// Create stores a photo uploaded by actor.
func (s *GalleryService) Create(ctx context.Context, actor domainauth.Profile, req *model.CreateGalleryItemRequest) (*model.GalleryItem, error) {
	if req == nil {
		return nil, errors.New("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	req.UploadedBy = actor.ID

	item, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "gallery item created", "gallery_item_id", item.ID, "uploaded_by", actor.ID)
	return item, nil
}

// Update applies a partial update.
func (s *GalleryService) Update(ctx context.Context, id string, req model.UpdateGalleryItemRequest) (*model.GalleryItem, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	item, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return item, nil
}

// Delete removes a gallery item and reports whether it existed.
func (s *GalleryService) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.invalidate()
		s.logger.InfoContext(ctx, "gallery item deleted", "gallery_item_id", id)
	}
	return ok, nil
}

// GetByID retrieves a gallery item by ID.
func (s *GalleryService) GetByID(ctx context.Context, id string) (*model.GalleryItem, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAll returns every gallery item matching opts, newest first, drafts included.
func (s *GalleryService) ListAll(ctx context.Context, opts model.GalleryListOptions) (*model.GalleryPage, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gallery items: %w", err)
	}
	return s.paginate(filterGallery(all, opts), opts), nil
}

// ListPublished returns the public gallery.
func (s *GalleryService) ListPublished(ctx context.Context, opts model.GalleryListOptions) (*model.GalleryPage, error) {
	if v, ok := s.cache.Get(publishedGalleryKey); ok {
		if list, ok := v.([]*model.GalleryItem); ok {
			return s.paginate(filterGallery(list, opts), opts), nil
		}
	}
	list, err := s.repo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published gallery items: %w", err)
	}
	s.cache.SetDefault(publishedGalleryKey, list)
	return s.paginate(filterGallery(list, opts), opts), nil
}

func (s *GalleryService) invalidate() { s.cache.Delete(publishedGalleryKey) }

func filterGallery(in []*model.GalleryItem, opts model.GalleryListOptions) []*model.GalleryItem {
	out := make([]*model.GalleryItem, 0, len(in))
	for _, g := range in {
		if opts.Category != "" && g.Category != opts.Category {
			continue
		}
		if !g.Matches(opts.Q) {
			continue
		}
		out = append(out, g)
	}
	return out
}

func (s *GalleryService) paginate(list []*model.GalleryItem, opts model.GalleryListOptions) *model.GalleryPage {
	size := opts.PageSize
	if size <= 0 {
		size = s.pageSize
	}
	total := len(list)
	page := max(opts.Page, 1)

	start, end := pageBounds(page, size, total)
	return &model.GalleryPage{
		Items:      list[start:end],
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pageCount(total, size),
	}
}
