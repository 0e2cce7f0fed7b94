package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/domain/model"
	apperrors "github.com/gpchangipur/portal/internal/errors"
	"github.com/gpchangipur/portal/internal/mocks"
)

var noticeClock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newNoticeService(t *testing.T) (*mocks.MockNoticeRepository, *NoticeService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := mocks.NewMockNoticeRepository(ctrl)
	svc := NewNoticeService(NoticeServiceOptions{
		Repo:     repo,
		CacheTTL: time.Minute,
		Now:      func() time.Time { return noticeClock },
	})
	return repo, svc
}

func noticeFixtures(n int) []*model.Notice {
	out := make([]*model.Notice, 0, n)
	for i := range n {
		cat := model.NoticeCategoryGeneral
		if i%2 == 0 {
			cat = model.NoticeCategoryExamination
		}
		out = append(out, &model.Notice{
			ID:       fmt.Sprintf("n-%d", i),
			Title:    fmt.Sprintf("Notice %d", i),
			Content:  "Routine for semester " + fmt.Sprint(i),
			Category: cat,
		})
	}
	return out
}

func TestNoticeService_Create_AdminAutoApproves(t *testing.T) {
	t.Parallel()
	repo, svc := newNoticeService(t)
	ctx := context.Background()
	admin := domainauth.Profile{ID: "admin-1", Role: domainauth.RoleAdmin}

	repo.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateNoticeRequest) (*model.Notice, error) {
			assert.Equal(t, "admin-1", req.CreatedBy)
			assert.True(t, req.IsApproved)
			require.NotNil(t, req.ApprovedBy)
			assert.Equal(t, "admin-1", *req.ApprovedBy)
			require.NotNil(t, req.PublishDate)
			assert.Equal(t, noticeClock, *req.PublishDate)
			return &model.Notice{ID: "n-1", Title: req.Title, IsApproved: true}, nil
		}).
		Times(1)

	n, err := svc.Create(ctx, admin, &model.CreateNoticeRequest{
		Title:    "Admission test seat plan",
		Content:  "Seat plan is posted at the main gate",
		Category: "General",
	})

	require.NoError(t, err)
	assert.Equal(t, "n-1", n.ID)
}

func TestNoticeService_Create_NonAdminIsPending(t *testing.T) {
	t.Parallel()
	repo, svc := newNoticeService(t)
	ctx := context.Background()

	repo.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateNoticeRequest) (*model.Notice, error) {
			assert.False(t, req.IsApproved)
			assert.Nil(t, req.ApprovedBy)
			return &model.Notice{ID: "n-2"}, nil
		})

	_, err := svc.Create(ctx, domainauth.Profile{ID: "t-1", Role: domainauth.RoleTeacher}, &model.CreateNoticeRequest{
		Title:    "Lab schedule",
		Content:  "Physics lab moves to Thursday",
		Category: "Academic",
		// Request bodies cannot self-approve.
		IsApproved: true,
	})
	require.NoError(t, err)
}

func TestNoticeService_Create_ValidationError(t *testing.T) {
	t.Parallel()
	_, svc := newNoticeService(t)

	_, err := svc.Create(context.Background(), domainauth.Profile{ID: "admin-1", Role: domainauth.RoleAdmin},
		&model.CreateNoticeRequest{Title: "Hi", Content: "Too short", Category: "General"})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestNoticeService_ListPublished_CachesAndFilters(t *testing.T) {
	t.Parallel()
	repo, svc := newNoticeService(t)
	ctx := context.Background()

	repo.EXPECT().
		ListPublished(ctx, noticeClock).
		Return(noticeFixtures(25), nil).
		Times(1)

	page, err := svc.ListPublished(ctx, model.NoticesListOptions{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Notices, 10)

	page, err = svc.ListPublished(ctx, model.NoticesListOptions{Page: 3})
	require.NoError(t, err)
	assert.Len(t, page.Notices, 5)

	page, err = svc.ListPublished(ctx, model.NoticesListOptions{Category: model.NoticeCategoryExamination})
	require.NoError(t, err)
	assert.Equal(t, 13, page.Total)

	page, err = svc.ListPublished(ctx, model.NoticesListOptions{Q: "notice 2"})
	require.NoError(t, err)
	// Notice 2, 20..24
	assert.Equal(t, 6, page.Total)

	page, err = svc.ListPublished(ctx, model.NoticesListOptions{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Notices)
}

func TestNoticeService_WritesInvalidateCache(t *testing.T) {
	t.Parallel()
	repo, svc := newNoticeService(t)
	ctx := context.Background()

	gomock.InOrder(
		repo.EXPECT().ListPublished(ctx, noticeClock).Return(noticeFixtures(1), nil),
		repo.EXPECT().Delete(ctx, "n-0").Return(true, nil),
		repo.EXPECT().ListPublished(ctx, noticeClock).Return(nil, nil),
	)

	page, err := svc.ListPublished(ctx, model.NoticesListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	ok, err := svc.Delete(ctx, "n-0")
	require.NoError(t, err)
	assert.True(t, ok)

	page, err = svc.ListPublished(ctx, model.NoticesListOptions{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestNoticeService_ListAll_PropagatesError(t *testing.T) {
	t.Parallel()
	repo, svc := newNoticeService(t)
	ctx := context.Background()

	repo.EXPECT().List(ctx).Return(nil, errors.New("db down"))

	_, err := svc.ListAll(ctx, model.NoticesListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list notices")
}

func TestNoticeService_Update(t *testing.T) {
	t.Parallel()
	repo, svc := newNoticeService(t)
	ctx := context.Background()
	title := "Updated routine"

	repo.EXPECT().
		Update(ctx, "n-1", gomock.Any()).
		Return(&model.Notice{ID: "n-1", Title: title}, nil)

	n, err := svc.Update(ctx, "n-1", model.UpdateNoticeRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, n.Title)

	_, err = svc.Update(ctx, "n-1", model.UpdateNoticeRequest{})
	assert.Error(t, err)
}

func TestNoticeService_ListPublished_HugePageIsEmpty(t *testing.T) {
	t.Parallel()
	repo, svc := newNoticeService(t)
	ctx := context.Background()

	repo.EXPECT().ListPublished(ctx, noticeClock).Return(noticeFixtures(25), nil).Times(1)

	for _, opts := range []model.NoticesListOptions{
		{Page: math.MaxInt},
		{Page: math.MaxInt / 5},
		{Page: math.MaxInt, PageSize: math.MaxInt},
		{Page: 2, PageSize: math.MaxInt},
	} {
		page, err := svc.ListPublished(ctx, opts)
		require.NoError(t, err)
		assert.Empty(t, page.Notices, "page %d size %d", opts.Page, opts.PageSize)
		assert.Equal(t, 25, page.Total)
	}

	page, err := svc.ListPublished(ctx, model.NoticesListOptions{Page: 1, PageSize: math.MaxInt})
	require.NoError(t, err)
	assert.Len(t, page.Notices, 25)
	assert.Equal(t, 1, page.TotalPages)
}

func TestPageBounds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name              string
		page, size, total int
		start, end        int
	}{
		{name: "first", page: 1, size: 10, total: 25, start: 0, end: 10},
		{name: "last partial", page: 3, size: 10, total: 25, start: 20, end: 25},
		{name: "past end", page: 4, size: 10, total: 25, start: 25, end: 25},
		{name: "max page", page: math.MaxInt, size: 10, total: 25, start: 25, end: 25},
		{name: "max size", page: 1, size: math.MaxInt, total: 3, start: 0, end: 3},
		{name: "empty", page: 1, size: 10, total: 0, start: 0, end: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			start, end := pageBounds(tt.page, tt.size, tt.total)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}
