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
	publishedNoticesKey     = "notices:published"
	defaultNoticesPageSize  = 10
	defaultNoticesCacheTTL  = 30 * time.Second
	noticesCacheCleanupTick = time.Minute
)

// NoticeServiceOptions groups dependencies for NoticeService.
type NoticeServiceOptions struct {
	Repo     core.NoticeRepository
	CacheTTL time.Duration
	PageSize int
	Logger   *slog.Logger
	Now      func() time.Time
}

// NoticeService manages notices for admins and serves the public board.
type NoticeService struct {
	repo     core.NoticeRepository
	cache    *gocache.Cache
	pageSize int
	logger   *slog.Logger
	now      func() time.Time
}

// NewNoticeService constructs a new NoticeService.
func NewNoticeService(opts NoticeServiceOptions) *NoticeService {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultNoticesCacheTTL
	}
	size := opts.PageSize
	if size <= 0 {
		size = defaultNoticesPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &NoticeService{
		repo:     opts.Repo,
		cache:    gocache.New(ttl, noticesCacheCleanupTick),
		pageSize: size,
		logger:   logger,
		now:      now,
	}
}

// Create stores a notice authored by actor. Notices written by admins are approved on creation.
func (s *NoticeService) Create(ctx context.Context, actor domainauth.Profile, req *model.CreateNoticeRequest) (*model.Notice, error) {
	if req == nil {
		return nil, errors.New("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	now := s.now().UTC()
	if req.PublishDate == nil {
		req.PublishDate = &now
	}
	req.CreatedBy = actor.ID
	req.IsApproved = false
	req.ApprovedBy = nil
	req.ApprovedAt = nil
	if actor.HasRole(domainauth.RoleAdmin) {
		id := actor.ID
		req.IsApproved = true
		req.ApprovedBy = &id
		req.ApprovedAt = &now
	}

	n, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "notice created", "notice_id", n.ID, "created_by", actor.ID)
	return n, nil
}

// Update applies a partial update.
func (s *NoticeService) Update(ctx context.Context, id string, req model.UpdateNoticeRequest) (*model.Notice, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	n, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return n, nil
}

// Delete removes a notice and reports whether it existed.
func (s *NoticeService) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.invalidate()
	}
	return ok, nil
}

// GetByID retrieves a notice by ID.
func (s *NoticeService) GetByID(ctx context.Context, id string) (*model.Notice, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAll returns every notice matching opts, newest first, for the admin console.
func (s *NoticeService) ListAll(ctx context.Context, opts model.NoticesListOptions) (*model.NoticePage, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	return s.paginate(filterNotices(all, opts), opts), nil
}

// ListPublished returns the public board: approved, published and unexpired notices.
func (s *NoticeService) ListPublished(ctx context.Context, opts model.NoticesListOptions) (*model.NoticePage, error) {
	published, err := s.published(ctx)
	if err != nil {
		return nil, err
	}
	return s.paginate(filterNotices(published, opts), opts), nil
}

func (s *NoticeService) published(ctx context.Context) ([]*model.Notice, error) {
	if v, ok := s.cache.Get(publishedNoticesKey); ok {
		if list, ok := v.([]*model.Notice); ok {
			return list, nil
		}
	}
	list, err := s.repo.ListPublished(ctx, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list published notices: %w", err)
	}
	s.cache.SetDefault(publishedNoticesKey, list)
	return list, nil
}

func (s *NoticeService) invalidate() { s.cache.Delete(publishedNoticesKey) }

func filterNotices(in []*model.Notice, opts model.NoticesListOptions) []*model.Notice {
	out := make([]*model.Notice, 0, len(in))
	for _, n := range in {
		if opts.Category != "" && n.Category != opts.Category {
			continue
		}
		if !n.Matches(opts.Q) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (s *NoticeService) paginate(list []*model.Notice, opts model.NoticesListOptions) *model.NoticePage {
	size := opts.PageSize
	if size <= 0 {
		size = s.pageSize
	}
	total := len(list)
	page := max(opts.Page, 1)

	start, end := pageBounds(page, size, total)
	return &model.NoticePage{
		Notices:    list[start:end],
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pageCount(total, size),
	}
}

func pageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total-1)/size + 1
}

// pageBounds returns the [start, end) slice window of a 1-based page.
// Pages past the end yield an empty window without multiplying page by size,
// so arbitrarily large page numbers cannot overflow.
func pageBounds(page, size, total int) (int, int) {
	if page < 1 || size < 1 || page-1 > total/size {
		return total, total
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := total
	if total-start > size {
		end = start + size
	}
	return start, end
}
