//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	minGalleryTitleLen = 2
	maxGalleryTitleLen = 255
)

// GalleryCategory groups photos on the public gallery.
type GalleryCategory string

const (
	GalleryCategoryCampus     GalleryCategory = "campus"
	GalleryCategoryEvents     GalleryCategory = "events"
	GalleryCategoryStudents   GalleryCategory = "students"
	GalleryCategorySports     GalleryCategory = "sports"
	GalleryCategoryCultural   GalleryCategory = "cultural"
	GalleryCategoryFacilities GalleryCategory = "facilities"
)

// GalleryCategories lists the supported categories in display order.
var GalleryCategories = []GalleryCategory{
	GalleryCategoryCampus,
	GalleryCategoryEvents,
	GalleryCategoryStudents,
	GalleryCategorySports,
	GalleryCategoryCultural,
	GalleryCategoryFacilities,
}

// ParseGalleryCategory matches a category case-insensitively.
func ParseGalleryCategory(value string) (GalleryCategory, bool) {
	v := strings.TrimSpace(value)
	for _, c := range GalleryCategories {
		if strings.EqualFold(v, string(c)) {
			return c, true
		}
	}
	return "", false
}

// GalleryItem is one photo shown in the campus gallery. The image itself lives
// elsewhere; the portal only keeps its URL.
type GalleryItem struct {
	ID          string          `json:"id"          db:"id"`
	Title       string          `json:"title"       db:"title"`
	Description string          `json:"description" db:"description"`
	Category    GalleryCategory `json:"category"    db:"category"`
	ImageURL    string          `json:"image_url"   db:"image_url"`
	IsPublished bool            `json:"is_published" db:"is_published"`
	UploadedBy  string          `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt   time.Time       `json:"created_at"  db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"  db:"updated_at"`
}

// Matches reports whether q appears in the title or description, ignoring case.
func (g *GalleryItem) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(g.Title), q) || strings.Contains(strings.ToLower(g.Description), q)
}

// CreateGalleryItemRequest represents parameters to create a GalleryItem.
// IsPublished defaults to true.
type CreateGalleryItemRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    GalleryCategory `json:"category"`
	ImageURL    string          `json:"image_url"`
	IsPublished *bool           `json:"is_published,omitempty"`

	// Set by the service from the acting profile.
	UploadedBy string `json:"-"`
}

// UpdateGalleryItemRequest represents parameters to update a GalleryItem.
type UpdateGalleryItemRequest struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *GalleryCategory `json:"category,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	IsPublished *bool            `json:"is_published,omitempty"`
}

// GalleryListOptions filters gallery listings. Zero values mean no filter.
type GalleryListOptions struct {
	Q        string
	Category GalleryCategory
	Page     int
	PageSize int
}

// GalleryPage is one page of a filtered gallery listing.
type GalleryPage struct {
	Items      []*GalleryItem `json:"items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

func validateGalleryTitle(title string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n < minGalleryTitleLen {
		return errors.New("title must be at least 2 characters")
	}
	if n > maxGalleryTitleLen {
		return errors.New("title cannot exceed 255 characters")
	}
	return nil
}

// validateImageURL accepts absolute http and https URLs only.
func validateImageURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("image_url must be an absolute http(s) URL")
	}
	return nil
}

// Validate validates CreateGalleryItemRequest and normalizes its fields.
func (r *CreateGalleryItemRequest) Validate() error {
	if err := validateGalleryTitle(r.Title); err != nil {
		return err
	}
	c, ok := ParseGalleryCategory(string(r.Category))
	if !ok {
		return errors.New("invalid category")
	}
	if err := validateImageURL(r.ImageURL); err != nil {
		return err
	}
	r.Category = c
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	if r.IsPublished == nil {
		published := true
		r.IsPublished = &published
	}
	return nil
}

// HasUpdates reports whether any field is set in UpdateGalleryItemRequest.
func (r *UpdateGalleryItemRequest) HasUpdates() bool {
	return r.Title != nil || r.Description != nil || r.Category != nil || r.ImageURL != nil || r.IsPublished != nil
}

// Validate validates UpdateGalleryItemRequest.
func (r *UpdateGalleryItemRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Title != nil {
		if err := validateGalleryTitle(*r.Title); err != nil {
			return err
		}
		t := strings.TrimSpace(*r.Title)
		r.Title = &t
	}
	if r.Description != nil {
		d := strings.TrimSpace(*r.Description)
		r.Description = &d
	}
	if r.Category != nil {
		c, ok := ParseGalleryCategory(string(*r.Category))
		if !ok {
			return errors.New("invalid category")
		}
		*r.Category = c
	}
	if r.ImageURL != nil {
		if err := validateImageURL(*r.ImageURL); err != nil {
			return err
		}
		u := strings.TrimSpace(*r.ImageURL)
		r.ImageURL = &u
	}
	return nil
}
