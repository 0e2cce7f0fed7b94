package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/gpchangipur/portal/internal/data/pgxutil"
	"github.com/gpchangipur/portal/internal/domain/model"
	apperrors "github.com/gpchangipur/portal/internal/errors"
)

// GalleryRepo provides database operations for gallery items.
type GalleryRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewGalleryRepo creates a new GalleryRepo with real time provider.
func NewGalleryRepo(db *sql.DB) *GalleryRepo {
	return &GalleryRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewGalleryRepoWithTimeProvider creates a GalleryRepo with a custom time provider.
func NewGalleryRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *GalleryRepo {
	return &GalleryRepo{DB: db, timeProvider: tp}
}

const (
	galleryColumns = `id::text AS id, title, description, category, image_url, is_published,
		uploaded_by, created_at, updated_at`

	galleryGetByIDQuery = `SELECT ` + galleryColumns + ` FROM gallery_items WHERE id::text = $1`

	galleryListQuery = `SELECT ` + galleryColumns + ` FROM gallery_items ORDER BY created_at DESC`

	galleryListPublishedQuery = `SELECT ` + galleryColumns + `
		FROM gallery_items
		WHERE is_published
		ORDER BY created_at DESC`

	galleryInsertQuery = `
		INSERT INTO gallery_items (
			title, description, category, image_url, is_published, uploaded_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + galleryColumns
)

// Create inserts a gallery item uploaded by req.UploadedBy.
func (r *GalleryRepo) Create(ctx context.Context, req *model.CreateGalleryItemRequest) (*model.GalleryItem, error) {
	if req == nil {
		return nil, errors.New("create gallery item request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	list, err := r.query(ctx, galleryInsertQuery,
		req.Title,
		req.Description,
		string(req.Category),
		req.ImageURL,
		*req.IsPublished,
		req.UploadedBy,
		r.timeProvider.Now().UTC(),
	)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	if len(list) == 0 {
		return nil, errors.New("insert returned no gallery item")
	}
	return list[0], nil
}

// GetByID retrieves a gallery item by ID.
func (r *GalleryRepo) GetByID(ctx context.Context, id string) (*model.GalleryItem, error) {
	list, err := r.query(ctx, galleryGetByIDQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get gallery item by ID: %w", err)
	}
	if len(list) == 0 {
		return nil, ErrGalleryItemNotFound
	}
	return list[0], nil
}

// List returns every gallery item, newest first.
func (r *GalleryRepo) List(ctx context.Context) ([]*model.GalleryItem, error) {
	list, err := r.query(ctx, galleryListQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery items: %w", err)
	}
	return list, nil
}

// ListPublished returns published gallery items, newest first.
func (r *GalleryRepo) ListPublished(ctx context.Context) ([]*model.GalleryItem, error) {
	list, err := r.query(ctx, galleryListPublishedQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list published gallery items: %w", err)
	}
	return list, nil
}

// Update applies the set fields of req.
func (r *GalleryRepo) Update(ctx context.Context, id string, req model.UpdateGalleryItemRequest) (*model.GalleryItem, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	setClause, args := buildGalleryUpdateClause(req)
	args = append(args, id)
	q := "UPDATE gallery_items SET " + setClause + " WHERE id::text = $" + strconv.Itoa(len(args)) +
		" RETURNING " + galleryColumns

	list, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	if len(list) == 0 {
		return nil, ErrGalleryItemNotFound
	}
	return list[0], nil
}

func buildGalleryUpdateClause(req model.UpdateGalleryItemRequest) (string, []any) {
	setParts := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		args = append(args, v)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.Title != nil {
		add("title", *req.Title)
	}
	if req.Description != nil {
		add("description", *req.Description)
	}
	if req.Category != nil {
		add("category", string(*req.Category))
	}
	if req.ImageURL != nil {
		add("image_url", *req.ImageURL)
	}
	if req.IsPublished != nil {
		add("is_published", *req.IsPublished)
	}
	return strings.Join(setParts, ", "), args
}

// Delete deletes a gallery item by ID.
func (r *GalleryRepo) Delete(ctx context.Context, id string) (bool, error) {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM gallery_items WHERE id::text = $1`, id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete gallery item: %w", err)
	}
	return affected > 0, nil
}

func (r *GalleryRepo) query(ctx context.Context, q string, args ...any) ([]*model.GalleryItem, error) {
	var rowsOut []model.GalleryItem
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.GalleryItem])
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]*model.GalleryItem, len(rowsOut))
	for i := range rowsOut {
		out[i] = &rowsOut[i]
	}
	return out, nil
}
