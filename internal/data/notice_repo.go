package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gpchangipur/portal/internal/data/pgxutil"
	"github.com/gpchangipur/portal/internal/domain/model"
	apperrors "github.com/gpchangipur/portal/internal/errors"
)

// NoticeRepo provides database operations for notices.
type NoticeRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewNoticeRepo creates a new NoticeRepo with real time provider.
func NewNoticeRepo(db *sql.DB) *NoticeRepo {
	return &NoticeRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewNoticeRepoWithTimeProvider creates a new NoticeRepo with a custom time provider (useful for tests).
func NewNoticeRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *NoticeRepo {
	return &NoticeRepo{DB: db, timeProvider: tp}
}

const (
	noticeColumns = `id::text AS id, title, content, category, publish_date, expiry_date, is_approved,
		approved_by, approved_at, attachments, created_by, created_at, updated_at`

	noticeGetByIDQuery = `SELECT ` + noticeColumns + ` FROM notices WHERE id::text = $1`

	noticeListQuery = `SELECT ` + noticeColumns + ` FROM notices ORDER BY created_at DESC`

	noticeListPublishedQuery = `
		SELECT ` + noticeColumns + `
		FROM notices
		WHERE is_approved
		  AND publish_date <= $1
		  AND (expiry_date IS NULL OR expiry_date > $1)
		ORDER BY publish_date DESC`

	noticeInsertQuery = `
		INSERT INTO notices (
			title, content, category, publish_date, expiry_date, is_approved,
			approved_by, approved_at, attachments, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING ` + noticeColumns
)

// Create inserts a notice. The caller decides approval and authorship.
func (r *NoticeRepo) Create(ctx context.Context, req *model.CreateNoticeRequest) (*model.Notice, error) {
	if req == nil {
		return nil, errors.New("create notice request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	now := r.timeProvider.Now().UTC()
	publish := now
	if req.PublishDate != nil {
		publish = req.PublishDate.UTC()
	}
	attachments := req.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	var out model.Notice
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, noticeInsertQuery,
			req.Title,
			strings.TrimSpace(req.Content),
			string(req.Category),
			publish,
			req.ExpiryDate,
			req.IsApproved,
			req.ApprovedBy,
			req.ApprovedAt,
			attachments,
			req.CreatedBy,
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Notice])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves a notice by ID.
func (r *NoticeRepo) GetByID(ctx context.Context, id string) (*model.Notice, error) {
	list, err := r.query(ctx, noticeGetByIDQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get notice by ID: %w", err)
	}
	if len(list) == 0 {
		return nil, ErrNoticeNotFound
	}
	return list[0], nil
}

// List returns every notice, newest first.
func (r *NoticeRepo) List(ctx context.Context) ([]*model.Notice, error) {
	list, err := r.query(ctx, noticeListQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list notices: %w", err)
	}
	return list, nil
}

// ListPublished returns approved notices visible at now, newest publish date first.
func (r *NoticeRepo) ListPublished(ctx context.Context, now time.Time) ([]*model.Notice, error) {
	list, err := r.query(ctx, noticeListPublishedQuery, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list published notices: %w", err)
	}
	return list, nil
}

// Update applies the set fields of req.
func (r *NoticeRepo) Update(ctx context.Context, id string, req model.UpdateNoticeRequest) (*model.Notice, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	setClause, args := buildNoticeUpdateClause(req)
	args = append(args, id)
	q := "UPDATE notices SET " + setClause + " WHERE id::text = $" + strconv.Itoa(len(args)) +
		" RETURNING " + noticeColumns

	list, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	if len(list) == 0 {
		return nil, ErrNoticeNotFound
	}
	return list[0], nil
}

func buildNoticeUpdateClause(req model.UpdateNoticeRequest) (string, []any) {
	setParts := make([]string, 0, 6)
	args := make([]any, 0, 7)
	add := func(col string, v any) {
		args = append(args, v)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.Title != nil {
		add("title", *req.Title)
	}
	if req.Content != nil {
		add("content", strings.TrimSpace(*req.Content))
	}
	if req.Category != nil {
		add("category", string(*req.Category))
	}
	if req.PublishDate != nil {
		add("publish_date", req.PublishDate.UTC())
	}
	if req.ExpiryDate != nil {
		add("expiry_date", req.ExpiryDate.UTC())
	}
	if req.Attachments != nil {
		add("attachments", req.Attachments)
	}
	return strings.Join(setParts, ", "), args
}

// Delete deletes a notice by ID.
func (r *NoticeRepo) Delete(ctx context.Context, id string) (bool, error) {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM notices WHERE id::text = $1`, id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete notice: %w", err)
	}
	return affected > 0, nil
}

func (r *NoticeRepo) query(ctx context.Context, q string, args ...any) ([]*model.Notice, error) {
	var rowsOut []model.Notice
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Notice])
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]*model.Notice, len(rowsOut))
	for i := range rowsOut {
		out[i] = &rowsOut[i]
	}
	return out, nil
}
