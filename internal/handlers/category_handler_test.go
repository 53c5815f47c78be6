package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
	"github.com/Bahdan321/Study-Practice-3-course/internal/services"
)

const testCategoryID = "0190a1b2-0000-7000-8000-000000000020"

// --- mock category service ---

type mockCategoryService struct {
	createCategoryFn        func(userID, name string, categoryType models.CategoryType, icon, color string) (*models.Category, error)
	createDefaultCategoryFn func(name string, categoryType models.CategoryType, icon, color string) (*models.Category, error)
	getUserCategoriesFn     func(userID string, categoryType *models.CategoryType) ([]models.Category, error)
	getCategoryByIDFn       func(userID, categoryID string) (*models.Category, error)
	updateCategoryFn        func(userID, categoryID string, fields services.CategoryUpdateFields) (*models.Category, error)
	deleteCategoryFn        func(userID, categoryID string) error
}

func (m *mockCategoryService) CreateCategory(userID, name string, categoryType models.CategoryType, icon, color string) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(userID, name, categoryType, icon, color)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) CreateDefaultCategory(name string, categoryType models.CategoryType, icon, color string) (*models.Category, error) {
	if m.createDefaultCategoryFn != nil {
		return m.createDefaultCategoryFn(name, categoryType, icon, color)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) GetUserCategories(userID string, categoryType *models.CategoryType) ([]models.Category, error) {
	if m.getUserCategoriesFn != nil {
		return m.getUserCategoriesFn(userID, categoryType)
	}
	return []models.Category{}, nil
}

func (m *mockCategoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	if m.getCategoryByIDFn != nil {
		return m.getCategoryByIDFn(userID, categoryID)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) UpdateCategory(userID, categoryID string, fields services.CategoryUpdateFields) (*models.Category, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(userID, categoryID, fields)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) DeleteCategory(userID, categoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(userID, categoryID)
	}
	return nil
}

var _ services.CategoryServicer = (*mockCategoryService)(nil)

func setupCategoryRouter(handler *CategoryHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/categories", handler.CreateCategory)
	auth.POST("/categories/defaults", handler.CreateDefaultCategory)
	auth.GET("/categories", handler.GetUserCategories)
	auth.GET("/categories/:id", handler.GetCategoryByID)
	auth.PUT("/categories/:id", handler.UpdateCategory)
	auth.DELETE("/categories/:id", handler.DeleteCategory)
	return r
}

func TestCategoryHandler_CreateCategory(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		catSvc := &mockCategoryService{
			createCategoryFn: func(userID, name string, categoryType models.CategoryType, icon, color string) (*models.Category, error) {
				return &models.Category{
					Base:   models.Base{ID: testCategoryID},
					UserID: &userID,
					Name:   name,
					Type:   categoryType,
					Icon:   icon,
					Color:  color,
				}, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"name":"Books","type":"expense","color":"#ff8800"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		cat := parseJSON(t, rec)["category"].(map[string]interface{})
		if cat["name"] != "Books" || cat["type"] != "expense" {
			t.Errorf("unexpected category %v", cat)
		}
	})

	t.Run("returns 400 on invalid type", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"name":"Books","type":"transfer"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on invalid color", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"name":"Books","type":"expense","color":"orange"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 on duplicate", func(t *testing.T) {
		catSvc := &mockCategoryService{
			createCategoryFn: func(_, _ string, _ models.CategoryType, _, _ string) (*models.Category, error) {
				return nil, apperrors.ErrDuplicateCategory
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/categories", `{"name":"Books","type":"expense"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_CATEGORY")
	})
}

func TestCategoryHandler_CreateDefaultCategory(t *testing.T) {
	var called bool
	catSvc := &mockCategoryService{
		createDefaultCategoryFn: func(name string, categoryType models.CategoryType, _, _ string) (*models.Category, error) {
			called = true
			return &models.Category{Base: models.Base{ID: testCategoryID}, Name: name, Type: categoryType}, nil
		},
	}
	audit := &mockAuditService{}
	r := setupCategoryRouter(NewCategoryHandler(catSvc, audit))

	rec := doRequest(r, "POST", "/categories/defaults", `{"name":"Pets","type":"expense"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !called {
		t.Error("expected CreateDefaultCategory to be called")
	}
	cat := parseJSON(t, rec)["category"].(map[string]interface{})
	if cat["user_id"] != nil {
		t.Errorf("default category must have no owner, got %v", cat["user_id"])
	}
	if len(audit.actions) != 1 || audit.actions[0] != "CREATE_DEFAULT_CATEGORY" {
		t.Errorf("expected CREATE_DEFAULT_CATEGORY audit entry, got %v", audit.actions)
	}
}

func TestCategoryHandler_GetUserCategories(t *testing.T) {
	t.Run("returns all categories", func(t *testing.T) {
		catSvc := &mockCategoryService{
			getUserCategoriesFn: func(_ string, categoryType *models.CategoryType) ([]models.Category, error) {
				if categoryType != nil {
					t.Errorf("expected no type filter, got %v", *categoryType)
				}
				return []models.Category{{Name: "Books"}, {Name: "Groceries"}}, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/categories", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := len(parseJSON(t, rec)["categories"].([]interface{})); got != 2 {
			t.Errorf("expected 2 categories, got %d", got)
		}
	})

	t.Run("filters by type", func(t *testing.T) {
		var got models.CategoryType
		catSvc := &mockCategoryService{
			getUserCategoriesFn: func(_ string, categoryType *models.CategoryType) ([]models.Category, error) {
				got = *categoryType
				return []models.Category{}, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/categories?type=income", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got != models.CategoryTypeIncome {
			t.Errorf("expected income filter, got %q", got)
		}
	})

	t.Run("returns 400 on unknown type", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/categories?type=savings", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCategoryHandler_GetCategoryByID(t *testing.T) {
	catSvc := &mockCategoryService{
		getCategoryByIDFn: func(_, _ string) (*models.Category, error) {
			return nil, apperrors.ErrCategoryNotFound
		},
	}
	r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/categories/"+testCategoryID, "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	assertErrorCode(t, parseJSON(t, rec), "CATEGORY_NOT_FOUND")
}

func TestCategoryHandler_UpdateCategory(t *testing.T) {
	t.Run("returns 200", func(t *testing.T) {
		catSvc := &mockCategoryService{
			updateCategoryFn: func(_, categoryID string, fields services.CategoryUpdateFields) (*models.Category, error) {
				if fields.Color != nil {
					t.Errorf("expected color to stay nil, got %v", *fields.Color)
				}
				return &models.Category{Base: models.Base{ID: categoryID}, Name: *fields.Name}, nil
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/categories/"+testCategoryID, `{"name":"Reading"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 403 on default category", func(t *testing.T) {
		catSvc := &mockCategoryService{
			updateCategoryFn: func(_, _ string, _ services.CategoryUpdateFields) (*models.Category, error) {
				return nil, apperrors.ErrCategoryReadOnly
			},
		}
		r := setupCategoryRouter(NewCategoryHandler(catSvc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/categories/"+testCategoryID, `{"name":"Mine now"}`)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "FORBIDDEN")
	})
}

func TestCategoryHandler_DeleteCategory(t *testing.T) {
	t.Run("returns 200", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, audit))

		rec := doRequest(r, "DELETE", "/categories/"+testCategoryID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "DELETE_CATEGORY" {
			t.Errorf("expected DELETE_CATEGORY audit entry, got %v", audit.actions)
		}
	})

	t.Run("returns 400 on malformed id", func(t *testing.T) {
		r := setupCategoryRouter(NewCategoryHandler(&mockCategoryService{}, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/categories/not-a-uuid", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
