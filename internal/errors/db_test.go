package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapDBError_Passthrough(t *testing.T) {
	assert.NoError(t, MapDBError(nil))

	plain := errors.New("driver: bad connection")
	assert.Same(t, plain, MapDBError(plain))
}

func TestMapDBError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeCanceled},
		{"no rows", pgx.ErrNoRows, ErrCodeNotFound},
		{"wrapped no rows", fmt.Errorf("get notice: %w", pgx.ErrNoRows), ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapDBError(tt.err)
			assert.Equal(t, tt.want, Code(mapped))
			assert.ErrorIs(t, mapped, tt.err)
		})
	}
}

func TestMapDBError_UniqueViolationField(t *testing.T) {
	tests := []struct {
		name  string
		pgErr *pgconn.PgError
		field string
	}{
		{
			name:  "column metadata",
			pgErr: &pgconn.PgError{Code: pgerrcode.UniqueViolation, ColumnName: "email"},
			field: "email",
		},
		{
			name:  "detail text",
			pgErr: &pgconn.PgError{Code: pgerrcode.UniqueViolation, Detail: "Key (email)=(admin@gpc.edu) already exists."},
			field: "email",
		},
		{
			name:  "constraint name",
			pgErr: &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "profiles_email_key"},
			field: "email",
		},
		{
			name:  "expression index",
			pgErr: &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_lower_key"},
			field: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapDBError(tt.pgErr)
			require.True(t, IsConflict(mapped))
			assert.Equal(t, tt.field, GetField(mapped))
		})
	}
}

func TestMapDBError_ForeignKeyMessages(t *testing.T) {
	tests := []struct {
		name  string
		pgErr *pgconn.PgError
		want  string
	}{
		{
			name:  "still referenced",
			pgErr: &pgconn.PgError{Detail: `Key (id)=(p-1) is still referenced from table "notices".`},
			want:  "Cannot delete because this item is in use by a notice.",
		},
		{
			name:  "missing parent",
			pgErr: &pgconn.PgError{Detail: `Key (created_by)=(p-9) is not present in table "profiles".`},
			want:  "Cannot complete operation because the referenced profile does not exist.",
		},
		{
			name:  "table metadata",
			pgErr: &pgconn.PgError{TableName: "users"},
			want:  "Cannot complete operation because this item is in use by a user account.",
		},
		{
			name:  "gallery table",
			pgErr: &pgconn.PgError{Detail: `Key (id)=(p-1) is still referenced from table "gallery_items".`},
			want:  "Cannot delete because this item is in use by a gallery item.",
		},
		{
			name:  "uploader constraint",
			pgErr: &pgconn.PgError{ConstraintName: "gallery_items_uploaded_by_fkey"},
			want:  "Cannot complete operation because the profile does not exist or is in use.",
		},
		{
			name:  "author constraint",
			pgErr: &pgconn.PgError{ConstraintName: "notices_approved_by_fkey"},
			want:  "Cannot complete operation because the profile does not exist or is in use.",
		},
		{
			name:  "unknown",
			pgErr: &pgconn.PgError{ConstraintName: "x_fkey"},
			want:  "Cannot complete operation because this item is in use.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.pgErr.Code = pgerrcode.ForeignKeyViolation
			mapped := MapDBError(tt.pgErr)
			require.True(t, IsForeignKey(mapped))

			var appErr *AppError
			require.ErrorAs(t, mapped, &appErr)
			assert.Equal(t, tt.want, appErr.Message)
		})
	}
}

func TestMapDBError_ConstraintValidation(t *testing.T) {
	notNull := MapDBError(&pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "title"})
	assert.True(t, IsValidation(notNull))
	assert.Equal(t, "title", GetField(notNull))

	check := MapDBError(&pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "notices_category_check"})
	assert.True(t, IsValidation(check))
	assert.Empty(t, GetField(check))
}

func TestMapDBError_OtherPgErrorIsInternal(t *testing.T) {
	mapped := MapDBError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	assert.Equal(t, ErrCodeInternal, Code(mapped))
}
