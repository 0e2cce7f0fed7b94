package testutil

import (
	"time"

	"github.com/gpchangipur/portal/internal/domain/model"
)

// NoticeRequestBuilder provides a fluent interface for building CreateNoticeRequest objects for testing.
type NoticeRequestBuilder struct {
	req *model.CreateNoticeRequest
}

// NewNoticeRequest creates a NoticeRequestBuilder that passes validation as-is.
func NewNoticeRequest(createdBy string) *NoticeRequestBuilder {
	return &NoticeRequestBuilder{
		req: &model.CreateNoticeRequest{
			Title:     "Mid-term examination routine",
			Content:   "The mid-term routine for all departments is attached.",
			Category:  model.NoticeCategoryExamination,
			CreatedBy: createdBy,
		},
	}
}

// WithTitle sets the title.
func (b *NoticeRequestBuilder) WithTitle(title string) *NoticeRequestBuilder {
	b.req.Title = title
	return b
}

// WithCategory sets the category.
func (b *NoticeRequestBuilder) WithCategory(c model.NoticeCategory) *NoticeRequestBuilder {
	b.req.Category = c
	return b
}

// PublishedAt sets the publish date.
func (b *NoticeRequestBuilder) PublishedAt(t time.Time) *NoticeRequestBuilder {
	b.req.PublishDate = &t
	return b
}

// ExpiresAt sets the expiry date.
func (b *NoticeRequestBuilder) ExpiresAt(t time.Time) *NoticeRequestBuilder {
	b.req.ExpiryDate = &t
	return b
}

// ApprovedBy marks the notice approved by the given profile at t.
func (b *NoticeRequestBuilder) ApprovedBy(id string, t time.Time) *NoticeRequestBuilder {
	b.req.IsApproved = true
	b.req.ApprovedBy = &id
	b.req.ApprovedAt = &t
	return b
}

// WithAttachments sets the attachment URLs.
func (b *NoticeRequestBuilder) WithAttachments(urls ...string) *NoticeRequestBuilder {
	b.req.Attachments = urls
	return b
}

// Build returns the request.
func (b *NoticeRequestBuilder) Build() *model.CreateNoticeRequest {
	return b.req
}

// GalleryItemRequestBuilder builds CreateGalleryItemRequest values for tests.
type GalleryItemRequestBuilder struct {
	req *model.CreateGalleryItemRequest
}

// NewGalleryItemRequest creates a published campus photo request that passes validation.
func NewGalleryItemRequest(uploadedBy string) *GalleryItemRequestBuilder {
	return &GalleryItemRequestBuilder{
		req: &model.CreateGalleryItemRequest{
			Title:      "Main academic building",
			Category:   model.GalleryCategoryCampus,
			ImageURL:   "https://files.gpc.edu.bd/gallery/main-building.jpg",
			UploadedBy: uploadedBy,
		},
	}
}

// WithTitle sets the title.
func (b *GalleryItemRequestBuilder) WithTitle(title string) *GalleryItemRequestBuilder {
	b.req.Title = title
	return b
}

// WithCategory sets the category.
func (b *GalleryItemRequestBuilder) WithCategory(c model.GalleryCategory) *GalleryItemRequestBuilder {
	b.req.Category = c
	return b
}

// Draft keeps the item off the public gallery.
func (b *GalleryItemRequestBuilder) Draft() *GalleryItemRequestBuilder {
	published := false
	b.req.IsPublished = &published
	return b
}

// Build returns the request.
func (b *GalleryItemRequestBuilder) Build() *model.CreateGalleryItemRequest {
	return b.req
}
