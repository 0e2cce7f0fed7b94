package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/gpchangipur/portal/internal/core"
	"github.com/gpchangipur/portal/internal/data/pgxutil"
	apperrors "github.com/gpchangipur/portal/internal/errors"
)

// UserRepo provides database operations for local credentials.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewUserRepo creates a new UserRepo with real time provider.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewUserRepoWithTimeProvider creates a new UserRepo with a custom time provider (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp}
}

const (
	userColumns          = `id::text AS id, email, password_hash, created_at, updated_at`
	userGetByEmailQuery  = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	userGetByIDQuery     = `SELECT ` + userColumns + ` FROM users WHERE id::text = $1`
	userInsertQuery      = `INSERT INTO users (email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $3) RETURNING ` + userColumns
	userUpdateHashQuery  = `UPDATE users SET password_hash = $2 WHERE id::text = $1`
	emailNormalizeCutset = " \t\r\n"
)

// Create inserts a user. Emails are unique case-insensitively.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash string) (*core.User, error) {
	email = strings.Trim(email, emailNormalizeCutset)
	if email == "" {
		return nil, apperrors.ValidationField("email", "email is required")
	}
	if passwordHash == "" {
		return nil, apperrors.ValidationField("password", "password hash is required")
	}

	now := r.timeProvider.Now().UTC()
	var out core.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, userInsertQuery, email, passwordHash, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[core.User])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByEmail looks a user up by email, ignoring case.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	return r.getByQuery(ctx, userGetByEmailQuery, strings.Trim(email, emailNormalizeCutset))
}

// GetByID looks a user up by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*core.User, error) {
	return r.getByQuery(ctx, userGetByIDQuery, id)
}

// UpdatePasswordHash replaces the stored hash.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, userUpdateHashQuery, id, passwordHash)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) getByQuery(ctx context.Context, q string, arg string) (*core.User, error) {
	var u core.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, arg)
		if err != nil {
			return err
		}
		defer rows.Close()
		u, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[core.User])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
