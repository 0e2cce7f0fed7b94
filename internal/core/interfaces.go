// Package core holds repository contracts shared by the service and data layers.
package core

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// NoticeRepository defines the interface for notice data operations.
type NoticeRepository interface {
	Create(ctx context.Context, req *model.CreateNoticeRequest) (*model.Notice, error)
	GetByID(ctx context.Context, id string) (*model.Notice, error)
	// List returns every notice, newest first.
	List(ctx context.Context) ([]*model.Notice, error)
	// ListPublished returns approved notices visible at now, newest publish date first.
	ListPublished(ctx context.Context, now time.Time) ([]*model.Notice, error)
	Update(ctx context.Context, id string, req model.UpdateNoticeRequest) (*model.Notice, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// GalleryRepository defines the interface for gallery item data operations.
type GalleryRepository interface {
	Create(ctx context.Context, req *model.CreateGalleryItemRequest) (*model.GalleryItem, error)
	GetByID(ctx context.Context, id string) (*model.GalleryItem, error)
	// List returns every gallery item, newest first.
	List(ctx context.Context) ([]*model.GalleryItem, error)
	// ListPublished returns published gallery items, newest first.
	ListPublished(ctx context.Context) ([]*model.GalleryItem, error)
	Update(ctx context.Context, id string, req model.UpdateGalleryItemRequest) (*model.GalleryItem, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// User is a locally managed credential record.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ErrUserNotFound is returned by UserRepository lookups that match no row.
var ErrUserNotFound = errors.New("user not found")

// UserRepository stores local credentials.
type UserRepository interface {
	Create(ctx context.Context, email, passwordHash string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// ProfileAdminRepository is the operator-facing side of the profiles table.
type ProfileAdminRepository interface {
	Upsert(ctx context.Context, p domainauth.Profile) (*domainauth.Profile, error)
	SetRole(ctx context.Context, id string, role domainauth.Role) error
	Count(ctx context.Context) (map[domainauth.Role]int, error)
}
