//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	minNoticeTitleLen   = 5
	maxNoticeTitleLen   = 255
	minNoticeContentLen = 10
)

// NoticeCategory classifies a notice on the public board.
type NoticeCategory string

const (
	NoticeCategoryAcademic    NoticeCategory = "Academic"
	NoticeCategoryExamination NoticeCategory = "Examination"
	NoticeCategoryEvent       NoticeCategory = "Event"
	NoticeCategoryPlacement   NoticeCategory = "Workshop/Placement"
	NoticeCategoryGeneral     NoticeCategory = "General"
)

// NoticeCategories lists the supported categories in display order.
var NoticeCategories = []NoticeCategory{
	NoticeCategoryAcademic,
	NoticeCategoryExamination,
	NoticeCategoryEvent,
	NoticeCategoryPlacement,
	NoticeCategoryGeneral,
}

// Valid reports whether the category is supported.
func (c NoticeCategory) Valid() bool {
	for _, v := range NoticeCategories {
		if c == v {
			return true
		}
	}
	return false
}

// ParseNoticeCategory matches a category case-insensitively.
func ParseNoticeCategory(value string) (NoticeCategory, bool) {
	v := strings.TrimSpace(value)
	for _, c := range NoticeCategories {
		if strings.EqualFold(v, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Notice is an announcement published on the portal.
type Notice struct {
	ID          string         `json:"id"                    db:"id"`
	Title       string         `json:"title"                 db:"title"`
	Content     string         `json:"content"               db:"content"`
	Category    NoticeCategory `json:"category"              db:"category"`
	PublishDate time.Time      `json:"publish_date"          db:"publish_date"`
	ExpiryDate  *time.Time     `json:"expiry_date,omitempty" db:"expiry_date"`
	IsApproved  bool           `json:"is_approved"           db:"is_approved"`
	ApprovedBy  *string        `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt  *time.Time     `json:"approved_at,omitempty" db:"approved_at"`
	Attachments []string       `json:"attachments"           db:"attachments"`
	CreatedBy   string         `json:"created_by"            db:"created_by"`
	CreatedAt   time.Time      `json:"created_at"            db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"            db:"updated_at"`
}

// VisibleAt reports whether the notice belongs on the public board at now.
func (n *Notice) VisibleAt(now time.Time) bool {
	if !n.IsApproved || n.PublishDate.After(now) {
		return false
	}
	return n.ExpiryDate == nil || n.ExpiryDate.After(now)
}

// Matches reports whether q appears in the title or content, ignoring case.
func (n *Notice) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Content), q)
}

// CreateNoticeRequest represents parameters to create a Notice.
type CreateNoticeRequest struct {
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Category    NoticeCategory `json:"category"`
	PublishDate *time.Time     `json:"publish_date,omitempty"`
	ExpiryDate  *time.Time     `json:"expiry_date,omitempty"`
	Attachments []string       `json:"attachments,omitempty"`

	// Set by the service from the acting profile, never from the request body.
	CreatedBy  string     `json:"-"`
	IsApproved bool       `json:"-"`
	ApprovedBy *string    `json:"-"`
	ApprovedAt *time.Time `json:"-"`
}

// UpdateNoticeRequest represents parameters to update a Notice.
type UpdateNoticeRequest struct {
	Title       *string         `json:"title,omitempty"`
	Content     *string         `json:"content,omitempty"`
	Category    *NoticeCategory `json:"category,omitempty"`
	PublishDate *time.Time      `json:"publish_date,omitempty"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty"`
	Attachments []string        `json:"attachments,omitempty"`
}

// NoticesListOptions filters notice listings. Zero values mean no filter.
type NoticesListOptions struct {
	Q        string
	Category NoticeCategory
	Page     int
	PageSize int
}

// NoticePage is one page of a filtered notice listing.
type NoticePage struct {
	Notices    []*Notice `json:"notices"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
}

func validateNoticeTitle(title string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n < minNoticeTitleLen {
		return errors.New("title must be at least 5 characters")
	}
	if n > maxNoticeTitleLen {
		return errors.New("title cannot exceed 255 characters")
	}
	return nil
}

func validateNoticeContent(content string) error {
	if utf8.RuneCountInString(strings.TrimSpace(content)) < minNoticeContentLen {
		return errors.New("content must be at least 10 characters")
	}
	return nil
}

// Validate validates CreateNoticeRequest.
func (r *CreateNoticeRequest) Validate() error {
	if err := validateNoticeTitle(r.Title); err != nil {
		return err
	}
	if err := validateNoticeContent(r.Content); err != nil {
		return err
	}
	c, ok := ParseNoticeCategory(string(r.Category))
	if !ok {
		return errors.New("invalid category")
	}
	r.Category = c
	r.Title = strings.TrimSpace(r.Title)
	if r.PublishDate != nil && r.ExpiryDate != nil && !r.ExpiryDate.After(*r.PublishDate) {
		return errors.New("expiry_date must be after publish_date")
	}
	return nil
}

// HasUpdates reports whether any field is set in UpdateNoticeRequest.
func (r *UpdateNoticeRequest) HasUpdates() bool {
	return r.Title != nil || r.Content != nil || r.Category != nil || r.PublishDate != nil ||
		r.ExpiryDate != nil || r.Attachments != nil
}

// Validate validates UpdateNoticeRequest, ensuring at least one field is set and values are sane.
func (r *UpdateNoticeRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Title != nil {
		if err := validateNoticeTitle(*r.Title); err != nil {
			return err
		}
		t := strings.TrimSpace(*r.Title)
		r.Title = &t
	}
	if r.Content != nil {
		if err := validateNoticeContent(*r.Content); err != nil {
			return err
		}
	}
	if r.Category != nil {
		c, ok := ParseNoticeCategory(string(*r.Category))
		if !ok {
			return errors.New("invalid category")
		}
		*r.Category = c
	}
	if r.PublishDate != nil && r.ExpiryDate != nil && !r.ExpiryDate.After(*r.PublishDate) {
		return errors.New("expiry_date must be after publish_date")
	}
	return nil
}
