// Package devseed fills a development database with an admin profile for the
// dev account, a handful of notices and a few gallery photos so the public
// pages and dashboard have content.
package devseed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gpchangipur/portal/internal/core"
	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/domain/model"
)

// Options bundles the dependencies needed for development seeding.
type Options struct {
	Profiles core.ProfileAdminRepository
	Notices  core.NoticeRepository
	// Gallery is optional; photos are skipped when it is nil.
	Gallery core.GalleryRepository
	// Admin is the profile created for the development account. Its role is
	// always forced to admin.
	Admin  domainauth.Profile
	Logger *slog.Logger
	Now    func() time.Time
}

// Run executes the development seeding workflow. It is idempotent: the admin
// profile is upserted and notices are only created when no notice with the
// same title exists.
func Run(ctx context.Context, opts Options) error {
	if opts.Profiles == nil || opts.Notices == nil {
		return errors.New("devseed: profiles and notices repositories are required")
	}
	if opts.Admin.ID == "" {
		return errors.New("devseed: admin profile id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	admin := opts.Admin
	admin.Role = domainauth.RoleAdmin
	if _, err := opts.Profiles.Upsert(ctx, admin); err != nil {
		return fmt.Errorf("seed admin profile: %w", err)
	}
	logger.InfoContext(ctx, "seeded admin profile", "profile_id", admin.ID)

	failures := seedNotices(ctx, opts.Notices, admin.ID, now(), logger)
	if opts.Gallery != nil {
		failures += seedGallery(ctx, opts.Gallery, admin.ID, logger)
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedNotices(ctx context.Context, repo core.NoticeRepository, adminID string, now time.Time, logger *slog.Logger) int {
	existing, err := repo.List(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to list notices for seeding", "error", err)
		return 1
	}
	titles := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		titles[n.Title] = struct{}{}
	}

	failures := 0
	for _, req := range defaultNotices(now) {
		if _, ok := titles[req.Title]; ok {
			continue
		}
		req.CreatedBy = adminID
		req.IsApproved = true
		req.ApprovedBy = &adminID
		req.ApprovedAt = &now

		created, err := repo.Create(ctx, req)
		if err != nil {
			failures++
			logger.WarnContext(ctx, "failed to seed notice", "title", req.Title, "error", err)
			continue
		}
		logger.InfoContext(ctx, "seeded notice", "id", created.ID, "title", created.Title)
	}
	return failures
}

func seedGallery(ctx context.Context, repo core.GalleryRepository, adminID string, logger *slog.Logger) int {
	existing, err := repo.List(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to list gallery items for seeding", "error", err)
		return 1
	}
	titles := make(map[string]struct{}, len(existing))
	for _, g := range existing {
		titles[g.Title] = struct{}{}
	}

	failures := 0
	for _, req := range defaultGallery() {
		if _, ok := titles[req.Title]; ok {
			continue
		}
		req.UploadedBy = adminID
		created, err := repo.Create(ctx, req)
		if err != nil {
			failures++
			logger.WarnContext(ctx, "failed to seed gallery item", "title", req.Title, "error", err)
			continue
		}
		logger.InfoContext(ctx, "seeded gallery item", "id", created.ID, "title", created.Title)
	}
	return failures
}

func defaultGallery() []*model.CreateGalleryItemRequest {
	return []*model.CreateGalleryItemRequest{
		{
			Title:    "Main academic building",
			Category: model.GalleryCategoryCampus,
			ImageURL: "https://placehold.co/1200x800?text=Campus",
		},
		{
			Title:       "Annual sports week",
			Description: "Inter-department football final.",
			Category:    model.GalleryCategorySports,
			ImageURL:    "https://placehold.co/1200x800?text=Sports",
		},
		{
			Title:    "Computer lab",
			Category: model.GalleryCategoryFacilities,
			ImageURL: "https://placehold.co/1200x800?text=Lab",
		},
	}
}

func defaultNotices(now time.Time) []*model.CreateNoticeRequest {
	day := 24 * time.Hour
	return []*model.CreateNoticeRequest{
		{
			Title:       "Semester final examination routine",
			Content:     "The routine for the upcoming semester final examinations is now available at the academic office.",
			Category:    model.NoticeCategoryExamination,
			PublishDate: timePtr(now.Add(-2 * day)),
		},
		{
			Title:       "Annual sports week",
			Content:     "Registration for the annual sports week is open for all departments until the end of this month.",
			Category:    model.NoticeCategoryEvent,
			PublishDate: timePtr(now.Add(-1 * day)),
			ExpiryDate:  timePtr(now.Add(30 * day)),
		},
		{
			Title:       "Final year placement drive",
			Content:     "Final year students should submit their CVs to the placement cell before the drive next week.",
			Category:    model.NoticeCategoryPlacement,
			PublishDate: timePtr(now),
		},
		{
			Title:       "Library hours during holidays",
			Content:     "The central library will stay open from 10am to 4pm on weekdays during the holidays.",
			Category:    model.NoticeCategoryGeneral,
			PublishDate: timePtr(now.Add(7 * day)),
		},
	}
}

func timePtr(t time.Time) *time.Time { return &t }
