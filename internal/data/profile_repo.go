package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gpchangipur/portal/internal/data/pgxutil"
	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	apperrors "github.com/gpchangipur/portal/internal/errors"
	"github.com/gpchangipur/portal/internal/ports"
)

// ProfileRepo provides database operations for authorization profiles.
type ProfileRepo struct {
	DB *sql.DB
}

// NewProfileRepo creates a new ProfileRepo.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db}
}

type profileRow struct {
	ID            string     `db:"id"`
	Email         string     `db:"email"`
	FullName      string     `db:"full_name"`
	ContactNumber string     `db:"contact_number"`
	Role          string     `db:"role"`
	LastLogin     *time.Time `db:"last_login"`
}

func (r profileRow) toDomain() domainauth.Profile {
	return domainauth.Profile{
		ID:            r.ID,
		Email:         r.Email,
		FullName:      r.FullName,
		ContactNumber: r.ContactNumber,
		Role:          domainauth.ParseRole(r.Role),
		LastLogin:     r.LastLogin,
	}
}

const (
	profileColumns = `id, email, full_name, contact_number, role, last_login`

	profileGetByIDQuery = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	profileUpsertQuery = `
		INSERT INTO profiles (id, email, full_name, contact_number, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			contact_number = EXCLUDED.contact_number,
			role = EXCLUDED.role
		RETURNING ` + profileColumns
)

// GetByID returns the profile for an identity. A missing row wraps ports.ErrProfileNotFound.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (domainauth.Profile, error) {
	var row profileRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, profileGetByIDQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[profileRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainauth.Profile{}, fmt.Errorf("profile %s: %w", id, ports.ErrProfileNotFound)
		}
		return domainauth.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return row.toDomain(), nil
}

// TouchLastLogin records the last successful sign-in time.
func (r *ProfileRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, `UPDATE profiles SET last_login = $2 WHERE id = $1`, id, at.UTC())
}

// UpdateDetails changes the user-editable profile fields.
func (r *ProfileRepo) UpdateDetails(ctx context.Context, id, fullName, contactNumber string) error {
	return r.execOne(ctx,
		`UPDATE profiles SET full_name = $2, contact_number = $3 WHERE id = $1`,
		id, strings.TrimSpace(fullName), strings.TrimSpace(contactNumber))
}

// Upsert creates or replaces a profile. last_login is left untouched.
func (r *ProfileRepo) Upsert(ctx context.Context, p domainauth.Profile) (*domainauth.Profile, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, apperrors.ValidationField("id", "profile id is required")
	}
	if p.Role != domainauth.RoleNone && !p.Role.Valid() {
		return nil, apperrors.ValidationField("role", "unknown role")
	}

	var row profileRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, profileUpsertQuery,
			strings.TrimSpace(p.ID),
			strings.ToLower(strings.TrimSpace(p.Email)),
			strings.TrimSpace(p.FullName),
			strings.TrimSpace(p.ContactNumber),
			string(p.Role),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[profileRow])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	out := row.toDomain()
	return &out, nil
}

// SetRole assigns a role. RoleNone revokes access.
func (r *ProfileRepo) SetRole(ctx context.Context, id string, role domainauth.Role) error {
	if role != domainauth.RoleNone && !role.Valid() {
		return apperrors.ValidationField("role", "unknown role")
	}
	return r.execOne(ctx, `UPDATE profiles SET role = $2 WHERE id = $1`, id, string(role))
}

// Count returns the number of profiles per role.
func (r *ProfileRepo) Count(ctx context.Context) (map[domainauth.Role]int, error) {
	out := make(map[domainauth.Role]int)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT role, count(*) FROM profiles GROUP BY role`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				role string
				n    int
			)
			if err := rows.Scan(&role, &n); err != nil {
				return err
			}
			out[domainauth.ParseRole(role)] += n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count profiles: %w", err)
	}
	return out, nil
}

// execOne runs a single-row update and maps a zero row count to not found.
func (r *ProfileRepo) execOne(ctx context.Context, q string, args ...any) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, q, args...)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return apperrors.MapDBError(err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %w", apperrors.NotFound("Profile not found"), ports.ErrProfileNotFound)
	}
	return nil
}
