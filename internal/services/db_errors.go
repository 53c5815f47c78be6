package services

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translateDBError maps a database error onto an AppError. Foreign-key
// violations become onForeignKey and unique violations become onUnique when
// those are set; everything else is an internal error carrying the cause.
func translateDBError(err error, onForeignKey, onUnique *apperrors.AppError) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if onForeignKey != nil && isForeignKeyViolation(err) {
		return apperrors.Wrap(onForeignKey, err)
	}
	if onUnique != nil && isUniqueViolation(err) {
		return apperrors.Wrap(onUnique, err)
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
