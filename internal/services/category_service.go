package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a category owned by userID.
func (s *categoryService) CreateCategory(userID, name string, categoryType models.CategoryType, icon, color string) (*models.Category, error) {
	owner := userID
	return s.create(&owner, name, categoryType, icon, color)
}

// CreateDefaultCategory creates a category shared by all users. Callers must
// have checked that the actor is an administrator.
func (s *categoryService) CreateDefaultCategory(name string, categoryType models.CategoryType, icon, color string) (*models.Category, error) {
	return s.create(nil, name, categoryType, icon, color)
}

func (s *categoryService) create(userID *string, name string, categoryType models.CategoryType, icon, color string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if !categoryType.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category type must be expense or income")
	}

	exists, err := s.nameTaken(userID, name, categoryType, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrDuplicateCategory
	}

	category := &models.Category{
		UserID: userID,
		Name:   name,
		Type:   categoryType,
		Icon:   icon,
		Color:  color,
	}
	if err := s.db.Create(category).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrUserNotFound, apperrors.ErrDuplicateCategory)
	}
	return category, nil
}

// nameTaken reports whether the owner already has a category with this name
// and type, ignoring the category excludeID.
func (s *categoryService) nameTaken(userID *string, name string, categoryType models.CategoryType, excludeID string) (bool, error) {
	q := s.db.Model(&models.Category{}).Where("name = ? AND type = ?", name, categoryType)
	if userID == nil {
		q = q.Where("user_id IS NULL")
	} else {
		q = q.Where("user_id = ?", *userID)
	}
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// GetUserCategories returns the user's own categories followed by the shared
// defaults, each group ordered by name.
func (s *categoryService) GetUserCategories(userID string, categoryType *models.CategoryType) ([]models.Category, error) {
	q := s.db.Where("(user_id = ? OR user_id IS NULL)", userID)
	if categoryType != nil {
		if !categoryType.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category type must be expense or income")
		}
		q = q.Where("type = ?", *categoryType)
	}

	var categories []models.Category
	if err := q.Order("CASE WHEN user_id IS NULL THEN 1 ELSE 0 END, name ASC, id ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// GetCategoryByID retrieves a category the user can see: one of their own or
// a default.
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	return findVisibleCategory(s.db, userID, categoryID)
}

// UpdateCategory changes name, icon or color. The type is fixed at creation
// so existing transactions keep matching their category.
func (s *categoryService) UpdateCategory(userID, categoryID string, fields CategoryUpdateFields) (*models.Category, error) {
	category, err := s.writableCategory(userID, categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
		}
		if name != category.Name {
			taken, err := s.nameTaken(category.UserID, name, category.Type, category.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, apperrors.ErrDuplicateCategory
			}
		}
		updates["name"] = name
	}
	if fields.Icon != nil {
		updates["icon"] = *fields.Icon
	}
	if fields.Color != nil {
		updates["color"] = *fields.Color
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Category{}).Where("id = ?", category.ID).Updates(updates).Error; err != nil {
			return nil, translateDBError(err, nil, apperrors.ErrDuplicateCategory)
		}
		return findVisibleCategory(s.db, userID, categoryID)
	}
	return category, nil
}

// DeleteCategory deletes a category. Transactions that used it are kept
// with their category cleared.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	category, err := s.writableCategory(userID, categoryID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Transaction{}).
			Where("category_id = ?", category.ID).
			Update("category_id", nil).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		res := tx.Delete(&models.Category{}, "id = ?", category.ID)
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrCategoryNotFound
		}
		return nil
	})
}

// writableCategory loads a category the user may modify. Defaults are
// read-only for everyone but administrators.
func (s *categoryService) writableCategory(userID, categoryID string) (*models.Category, error) {
	category, err := findVisibleCategory(s.db, userID, categoryID)
	if err != nil {
		return nil, err
	}
	if !category.IsDefault() {
		return category, nil
	}

	var user models.User
	if err := s.db.Select("id", "role").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryReadOnly
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !user.IsAdmin() {
		return nil, apperrors.ErrCategoryReadOnly
	}
	return category, nil
}

// findVisibleCategory loads a category owned by userID or shared by everyone.
func findVisibleCategory(db *gorm.DB, userID, categoryID string) (*models.Category, error) {
	if categoryID == "" {
		return nil, apperrors.ErrCategoryNotFound
	}
	var category models.Category
	err := db.Where("id = ? AND (user_id = ? OR user_id IS NULL)", categoryID, userID).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}
