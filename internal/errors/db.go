package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// "Key (email)=(a@b.c) already exists."
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// "... is still referenced from table "notices"."
	reReferencedFrom = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
	// "... is not present in table "profiles"."
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// tableNouns names portal tables the way admins know them.
var tableNouns = map[string]string{
	"profiles":      "profile",
	"users":         "user account",
	"notices":       "notice",
	"gallery_items": "gallery item",
}

// MapDBError turns pgx and Postgres failures into AppErrors. Errors it does
// not recognize are returned unchanged.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	case errors.Is(err, context.Canceled):
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	case errors.Is(err, pgx.ErrNoRows):
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "This value already exists. Please choose a different one.",
			Field:   uniqueField(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.ForeignKeyViolation:
		return &AppError{Code: ErrCodeForeignKey, Message: foreignKeyMessage(pgErr), Cause: pgErr}
	case pgerrcode.NotNullViolation:
		return fieldValidation(pgErr, "This field is required.", "Required field is missing. Please check your input.")
	case pgerrcode.CheckViolation:
		return fieldValidation(pgErr, "This field has an invalid value.", "Invalid data. Please check your input.")
	default:
		return &AppError{Code: ErrCodeInternal, Message: "A database error occurred. Please try again.", Cause: pgErr}
	}
}

func fieldValidation(pgErr *pgconn.PgError, withField, withoutField string) *AppError {
	if pgErr.ColumnName != "" {
		return &AppError{Code: ErrCodeValidation, Message: withField, Field: pgErr.ColumnName, Cause: pgErr}
	}
	return &AppError{Code: ErrCodeValidation, Message: withoutField, Cause: pgErr}
}

// uniqueField finds the violated column from metadata, then the detail text,
// then a "<table>_<column>_key" constraint name.
func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	parts := strings.Split(pgErr.ConstraintName, "_")
	if len(parts) == 3 && !isIndexFunction(parts[1]) {
		return parts[1]
	}
	return ""
}

func foreignKeyMessage(pgErr *pgconn.PgError) string {
	if m := reReferencedFrom.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "Cannot delete because this item is in use by a " + tableNoun(m[1]) + "."
	}
	if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "Cannot complete operation because the referenced " + tableNoun(m[1]) + " does not exist."
	}
	if pgErr.TableName != "" {
		return "Cannot complete operation because this item is in use by a " + tableNoun(pgErr.TableName) + "."
	}

	// created_by, approved_by and uploaded_by all point at profiles.
	c := strings.ToLower(pgErr.ConstraintName)
	switch {
	case strings.Contains(c, "created_by"), strings.Contains(c, "approved_by"), strings.Contains(c, "uploaded_by"),
		strings.Contains(c, "profile"):
		return "Cannot complete operation because the profile does not exist or is in use."
	case strings.Contains(c, "notice"):
		return "Cannot delete because it is referenced by a notice."
	default:
		return "Cannot complete operation because this item is in use."
	}
}

func tableNoun(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	if n, ok := tableNouns[table]; ok {
		return n
	}
	return strings.ReplaceAll(table, "_", " ")
}

// isIndexFunction reports names that show up in expression index constraints,
// e.g. users_lower_key for UNIQUE (lower(email)).
func isIndexFunction(s string) bool {
	switch strings.ToLower(s) {
	case "lower", "upper", "trim", "md5":
		return true
	}
	return false
}
