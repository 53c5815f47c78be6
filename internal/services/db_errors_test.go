package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
	"github.com/Bahdan321/Study-Practice-3-course/internal/testutil"
)

func TestTranslateDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"gorm_foreign_key", gorm.ErrForeignKeyViolated, "ACCOUNT_NOT_FOUND"},
		{"pg_foreign_key", &pgconn.PgError{Code: "23503"}, "ACCOUNT_NOT_FOUND"},
		{"sqlite_foreign_key", errors.New("FOREIGN KEY constraint failed"), "ACCOUNT_NOT_FOUND"},
		{"gorm_duplicate", gorm.ErrDuplicatedKey, "DUPLICATE_CATEGORY"},
		{"pg_duplicate", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), "DUPLICATE_CATEGORY"},
		{"other", errors.New("disk I/O error"), "INTERNAL_ERROR"},
		{"app_error_passthrough", apperrors.ErrCategoryTypeMismatch, "CATEGORY_TYPE_MISMATCH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateDBError(tt.err, apperrors.ErrAccountNotFound, apperrors.ErrDuplicateCategory)
			testutil.AssertAppError(t, err, tt.want)
		})
	}

	t.Run("nil", func(t *testing.T) {
		if err := translateDBError(nil, nil, nil); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("unmapped_foreign_key", func(t *testing.T) {
		err := translateDBError(gorm.ErrForeignKeyViolated, nil, nil)
		testutil.AssertAppError(t, err, "INTERNAL_ERROR")
		if !errors.Is(err, gorm.ErrForeignKeyViolated) {
			t.Error("expected cause to be kept")
		}
	})
}
