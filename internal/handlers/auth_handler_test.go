package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Bahdan321/Study-Practice-3-course/internal/config"
	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
	"github.com/Bahdan321/Study-Practice-3-course/internal/logger"
	"github.com/Bahdan321/Study-Practice-3-course/internal/middleware"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
	"github.com/Bahdan321/Study-Practice-3-course/internal/services"
	"github.com/Bahdan321/Study-Practice-3-course/internal/validator"
)

const (
	testUserID    = "0190a1b2-0000-7000-8000-000000000001"
	testSessionID = "0190a1b2-0000-7000-8000-0000000000aa"
	testToken     = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

// --- mock user service ---

type mockUserService struct {
	createUserFn     func(username, email, password string, role models.UserRole) (*models.User, error)
	getUserByIDFn    func(id string) (*models.User, error)
	getUserByLoginFn func(identifier string) (*models.User, error)
	attemptLoginFn   func(identifier, password string) (*models.User, error)
}

func (m *mockUserService) CreateUser(username, email, password string, role models.UserRole) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(username, email, password, role)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByID(id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByLogin(identifier string) (*models.User, error) {
	if m.getUserByLoginFn != nil {
		return m.getUserByLoginFn(identifier)
	}
	return &models.User{}, nil
}

func (m *mockUserService) VerifyPassword(_ *models.User, _ string) bool {
	return true
}

func (m *mockUserService) AttemptLogin(identifier, password string) (*models.User, error) {
	if m.attemptLoginFn != nil {
		return m.attemptLoginFn(identifier, password)
	}
	return &models.User{}, nil
}

var _ services.UserServicer = (*mockUserService)(nil)

// --- mock session service ---

type mockSessionService struct {
	createSessionFn         func(userID, userAgent, ipAddress string) (string, *models.Session, error)
	getUserBySessionTokenFn func(token string) (*models.User, *models.Session, error)
	deleteSessionFn         func(sessionID string) error
}

func (m *mockSessionService) CreateSession(userID, userAgent, ipAddress string) (string, *models.Session, error) {
	if m.createSessionFn != nil {
		return m.createSessionFn(userID, userAgent, ipAddress)
	}
	return testToken, &models.Session{Base: models.Base{ID: testSessionID}, UserID: userID}, nil
}

func (m *mockSessionService) GetUserBySessionToken(token string) (*models.User, *models.Session, error) {
	if m.getUserBySessionTokenFn != nil {
		return m.getUserBySessionTokenFn(token)
	}
	return nil, nil, apperrors.ErrInvalidSession
}

func (m *mockSessionService) GetActiveSession(sessionID string) (*models.Session, error) {
	return &models.Session{Base: models.Base{ID: sessionID}, UserID: testUserID, User: testUser()}, nil
}

func (m *mockSessionService) DeleteSession(sessionID string) error {
	if m.deleteSessionFn != nil {
		return m.deleteSessionFn(sessionID)
	}
	return nil
}

func (m *mockSessionService) PurgeExpiredSessions() (int64, error) {
	return 0, nil
}

var _ services.SessionServicer = (*mockSessionService)(nil)

// --- mock audit service ---

type mockAuditService struct {
	actions []string
}

func (m *mockAuditService) Log(_, action, _, _, _ string, _ map[string]any) {
	m.actions = append(m.actions, action)
}

var _ services.AuditServicer = (*mockAuditService)(nil)

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
	config.Set(&config.Config{JWTSecret: "test-secret", JWTExpirationDur: 15 * time.Minute})
}

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	r := gin.New()
	r.POST("/auth/register", handler.Register)
	r.POST("/auth/login", handler.Login)
	r.POST("/auth/refresh", handler.Refresh)
	r.POST("/auth/logout", injectUserID(testUserID), handler.Logout)
	r.GET("/profile", injectUserID(testUserID), handler.GetProfile)
	return r
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uid)
		c.Set(middleware.ContextRole, string(models.UserRoleUser))
		c.Set(middleware.ContextSessionID, testSessionID)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func testUser() *models.User {
	return &models.User{
		Base:     models.Base{ID: testUserID},
		Username: "ivan",
		Email:    "ivan@example.com",
		Role:     models.UserRoleUser,
	}
}

// --- tests ---

func TestAuthHandler_Register(t *testing.T) {
	t.Run("returns 201 with tokens", func(t *testing.T) {
		var gotRole models.UserRole
		userSvc := &mockUserService{
			createUserFn: func(username, email, _ string, role models.UserRole) (*models.User, error) {
				gotRole = role
				u := testUser()
				u.Username, u.Email = username, email
				return u, nil
			},
		}
		audit := &mockAuditService{}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockSessionService{}, audit))

		rec := doRequest(r, "POST", "/auth/register",
			`{"username":"ivan","email":"ivan@example.com","password":"password123"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotRole != models.UserRoleUser {
			t.Errorf("expected self-registration as user, got %q", gotRole)
		}
		result := parseJSON(t, rec)
		if result["session_token"] != testToken {
			t.Errorf("expected session token, got %v", result["session_token"])
		}
		accessToken, _ := result["access_token"].(string)
		claims, err := middleware.ParseAccessToken(accessToken)
		if err != nil {
			t.Fatalf("access token does not parse: %v", err)
		}
		if claims.SessionID != testSessionID || claims.UserID != testUserID {
			t.Errorf("unexpected claims %+v", claims)
		}
		if result["expires_in"] != float64(900) {
			t.Errorf("expected expires_in 900, got %v", result["expires_in"])
		}
		if len(audit.actions) != 1 || audit.actions[0] != "REGISTER" {
			t.Errorf("expected REGISTER audit entry, got %v", audit.actions)
		}
	})

	t.Run("returns 400 on short password", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockSessionService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/auth/register", `{"username":"ivan","email":"ivan@example.com","password":"short"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on invalid username", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockSessionService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/auth/register", `{"username":"a b","email":"ivan@example.com","password":"password123"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 on duplicate email", func(t *testing.T) {
		userSvc := &mockUserService{
			createUserFn: func(_, _, _ string, _ models.UserRole) (*models.User, error) {
				return nil, apperrors.ErrDuplicateEmail
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockSessionService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/auth/register", `{"username":"ivan","email":"ivan@example.com","password":"password123"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_EMAIL")
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("returns 200 with tokens", func(t *testing.T) {
		var gotLogin string
		userSvc := &mockUserService{
			attemptLoginFn: func(identifier, _ string) (*models.User, error) {
				gotLogin = identifier
				return testUser(), nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockSessionService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/auth/login", `{"login":"ivan@example.com","password":"password123"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotLogin != "ivan@example.com" {
			t.Errorf("expected login to be passed through, got %q", gotLogin)
		}
		result := parseJSON(t, rec)
		if result["access_token"] == "" || result["session_token"] != testToken {
			t.Errorf("expected both tokens, got %v", result)
		}
	})

	t.Run("returns 401 on invalid credentials", func(t *testing.T) {
		userSvc := &mockUserService{
			attemptLoginFn: func(_, _ string) (*models.User, error) {
				return nil, apperrors.ErrInvalidCredentials
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockSessionService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/auth/login", `{"login":"ivan","password":"wrong-password"}`)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_CREDENTIALS")
	})

	t.Run("returns 400 on missing login", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockSessionService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/auth/login", `{"password":"password123"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 500 when session cannot be created", func(t *testing.T) {
		userSvc := &mockUserService{
			attemptLoginFn: func(_, _ string) (*models.User, error) { return testUser(), nil },
		}
		sessionSvc := &mockSessionService{
			createSessionFn: func(_, _, _ string) (string, *models.Session, error) {
				return "", nil, apperrors.ErrInternalServer
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, sessionSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/auth/login", `{"login":"ivan","password":"password123"}`)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	t.Run("returns 200 with new access token", func(t *testing.T) {
		sessionSvc := &mockSessionService{
			getUserBySessionTokenFn: func(token string) (*models.User, *models.Session, error) {
				if token != testToken {
					return nil, nil, apperrors.ErrInvalidSession
				}
				return testUser(), &models.Session{Base: models.Base{ID: testSessionID}, UserID: testUserID}, nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, sessionSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/auth/refresh", `{"session_token":"`+testToken+`"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if _, ok := result["session_token"]; ok {
			t.Error("refresh must not hand out the session token again")
		}
		accessToken, _ := result["access_token"].(string)
		if _, err := middleware.ParseAccessToken(accessToken); err != nil {
			t.Errorf("access token does not parse: %v", err)
		}
	})

	t.Run("returns 401 on expired session", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockSessionService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/auth/refresh", `{"session_token":"`+testToken+`"}`)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_SESSION")
	})

	t.Run("returns 400 on malformed token", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockSessionService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/auth/refresh", `{"session_token":"abc"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Run("deletes the current session", func(t *testing.T) {
		var deleted string
		sessionSvc := &mockSessionService{
			deleteSessionFn: func(sessionID string) error {
				deleted = sessionID
				return nil
			},
		}
		audit := &mockAuditService{}
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, sessionSvc, audit))

		rec := doRequest(r, "POST", "/auth/logout", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if deleted != testSessionID {
			t.Errorf("expected session %s to be deleted, got %q", testSessionID, deleted)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "LOGOUT" {
			t.Errorf("expected LOGOUT audit entry, got %v", audit.actions)
		}
	})

	t.Run("returns 401 without auth", func(t *testing.T) {
		handler := NewAuthHandler(&mockUserService{}, &mockSessionService{}, &mockAuditService{})
		r := gin.New()
		r.POST("/auth/logout", handler.Logout)

		rec := doRequest(r, "POST", "/auth/logout", "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_GetProfile(t *testing.T) {
	t.Run("returns 200 with profile", func(t *testing.T) {
		userSvc := &mockUserService{
			getUserByIDFn: func(id string) (*models.User, error) {
				if id != testUserID {
					t.Errorf("unexpected user id %q", id)
				}
				return testUser(), nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockSessionService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/profile", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		user := parseJSON(t, rec)["user"].(map[string]interface{})
		if user["username"] != "ivan" || user["role"] != "user" {
			t.Errorf("unexpected profile %v", user)
		}
		if _, ok := user["password_hash"]; ok {
			t.Error("password hash must never be returned")
		}
	})

	t.Run("returns 404 when user is gone", func(t *testing.T) {
		userSvc := &mockUserService{
			getUserByIDFn: func(string) (*models.User, error) { return nil, apperrors.ErrUserNotFound },
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockSessionService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/profile", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
