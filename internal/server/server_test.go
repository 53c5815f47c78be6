package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Bahdan321/Study-Practice-3-course/internal/config"
	"github.com/Bahdan321/Study-Practice-3-course/internal/database"
	"github.com/Bahdan321/Study-Practice-3-course/internal/events"
	"github.com/Bahdan321/Study-Practice-3-course/internal/logger"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
	"github.com/Bahdan321/Study-Practice-3-course/internal/testutil"
	"github.com/Bahdan321/Study-Practice-3-course/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
	config.Set(&config.Config{JWTSecret: "test-secret", JWTExpirationDur: 15 * time.Minute})
}

// fixedRates serves rates from a constant table keyed by "FROM/TO".
type fixedRates map[string]float64

func (f fixedRates) Rate(_ context.Context, from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}
	rate, ok := f[from+"/"+to]
	if !ok {
		return 0, fmt.Errorf("no rate for %s/%s", from, to)
	}
	return rate, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LedgerEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testApp struct {
	router    *gin.Engine
	db        *gorm.DB
	publisher *recordingPublisher
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	if err := database.Seed(db); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	pub := &recordingPublisher{}
	svc := NewServices(db, time.Hour, pub, fixedRates{"USD/RUB": 90})
	return &testApp{router: NewRouter(svc, []string{"*"}), db: db, publisher: pub}
}

func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) map[string]any {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := parseJSON(t, rec)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// registerUser returns the access token, session token and user ID.
func (app *testApp) registerUser(t *testing.T, username string) (access, session, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"email":%q,"password":"password123"}`, username, username+"@test.com")
	result := expectStatus(t, app.request(http.MethodPost, "/api/v1/auth/register", body, ""), http.StatusCreated)
	user := result["user"].(map[string]any)
	return result["access_token"].(string), result["session_token"].(string), user["id"].(string)
}

func TestHealth(t *testing.T) {
	app := setupApp(t)
	result := expectStatus(t, app.request(http.MethodGet, "/api/health", "", ""), http.StatusOK)
	if result["status"] != "ok" {
		t.Errorf("expected status ok, got %v", result["status"])
	}
}

func TestAuthFlow(t *testing.T) {
	app := setupApp(t)
	access, session, _ := app.registerUser(t, "ivan")

	// duplicate username
	rec := app.request(http.MethodPost, "/api/v1/auth/register",
		`{"username":"ivan","email":"other@test.com","password":"password123"}`, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	// login by email, case-insensitively
	login := expectStatus(t, app.request(http.MethodPost, "/api/v1/auth/login",
		`{"login":"IVAN@test.com","password":"password123"}`, ""), http.StatusOK)
	if login["session_token"] == "" || login["access_token"] == "" {
		t.Fatalf("expected tokens in login response: %v", login)
	}

	rec = app.request(http.MethodPost, "/api/v1/auth/login", `{"login":"ivan","password":"wrong-password"}`, "")
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %d: %s", rec.Code, rec.Body.String())
	}

	profile := expectStatus(t, app.request(http.MethodGet, "/api/v1/profile", "", access), http.StatusOK)
	if profile["user"].(map[string]any)["username"] != "ivan" {
		t.Errorf("unexpected profile %v", profile)
	}

	// refresh with the session token from registration
	refreshed := expectStatus(t, app.request(http.MethodPost, "/api/v1/auth/refresh",
		fmt.Sprintf(`{"session_token":%q}`, session), ""), http.StatusOK)
	if _, ok := refreshed["session_token"]; ok {
		t.Error("refresh must not return a new session token")
	}

	// logout revokes every access token of that session
	expectStatus(t, app.request(http.MethodPost, "/api/v1/auth/logout", "", access), http.StatusOK)

	rec = app.request(http.MethodGet, "/api/v1/profile", "", access)
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "INVALID_SESSION" {
		t.Fatalf("expected INVALID_SESSION after logout, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = app.request(http.MethodGet, "/api/v1/profile", "", refreshed["access_token"].(string))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected refreshed token to be revoked too, got %d", rec.Code)
	}
	rec = app.request(http.MethodPost, "/api/v1/auth/refresh", fmt.Sprintf(`{"session_token":%q}`, session), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected refresh to fail after logout, got %d", rec.Code)
	}

	// the login session is still alive
	expectStatus(t, app.request(http.MethodGet, "/api/v1/profile", "", login["access_token"].(string)), http.StatusOK)
}

func TestLedgerFlow(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "maria")

	// account with an opening balance
	result := expectStatus(t, app.request(http.MethodPost, "/api/v1/accounts",
		`{"name":"Card","initial_balance":1000}`, token), http.StatusCreated)
	account := result["account"].(map[string]any)
	accountID := account["id"].(string)
	if account["balance"].(float64) != 1000 {
		t.Fatalf("expected opening balance 1000, got %v", account["balance"])
	}
	if account["currency"].(map[string]any)["code"] != "RUB" {
		t.Errorf("expected RUB default currency, got %v", account["currency"])
	}

	// own expense category
	result = expectStatus(t, app.request(http.MethodPost, "/api/v1/categories",
		`{"name":"Books","type":"expense","color":"#336699"}`, token), http.StatusCreated)
	categoryID := result["category"].(map[string]any)["id"].(string)

	// seeded defaults plus the new one are visible
	result = expectStatus(t, app.request(http.MethodGet, "/api/v1/categories?type=expense", "", token), http.StatusOK)
	if n := len(result["categories"].([]any)); n < 2 {
		t.Errorf("expected defaults and own category, got %d", n)
	}

	// expense
	body := fmt.Sprintf(`{"account_id":%q,"category_id":%q,"type":"expense","amount":250.5,"description":"Novel","date":"2026-03-01"}`, accountID, categoryID)
	result = expectStatus(t, app.request(http.MethodPost, "/api/v1/transactions", body, token), http.StatusCreated)
	txID := result["transaction"].(map[string]any)["id"].(string)

	result = expectStatus(t, app.request(http.MethodGet, "/api/v1/accounts/"+accountID, "", token), http.StatusOK)
	if got := result["account"].(map[string]any)["balance"].(float64); got != 749.5 {
		t.Fatalf("expected balance 749.5, got %v", got)
	}

	// category type must match the transaction type
	body = fmt.Sprintf(`{"account_id":%q,"category_id":%q,"type":"income","amount":10}`, accountID, categoryID)
	rec := app.request(http.MethodPost, "/api/v1/transactions", body, token)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "CATEGORY_TYPE_MISMATCH" {
		t.Fatalf("expected CATEGORY_TYPE_MISMATCH, got %d: %s", rec.Code, rec.Body.String())
	}

	// non-positive amounts never reach the ledger
	body = fmt.Sprintf(`{"account_id":%q,"category_id":%q,"type":"expense","amount":0}`, accountID, categoryID)
	rec = app.request(http.MethodPost, "/api/v1/transactions", body, token)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "INVALID_AMOUNT" {
		t.Fatalf("expected INVALID_AMOUNT, got %d: %s", rec.Code, rec.Body.String())
	}

	// update moves the balance effect
	expectStatus(t, app.request(http.MethodPut, "/api/v1/transactions/"+txID, `{"amount":100}`, token), http.StatusOK)
	result = expectStatus(t, app.request(http.MethodGet, "/api/v1/accounts/"+accountID, "", token), http.StatusOK)
	if got := result["account"].(map[string]any)["balance"].(float64); got != 900 {
		t.Fatalf("expected balance 900 after update, got %v", got)
	}

	// summary over the user's ledger
	result = expectStatus(t, app.request(http.MethodGet, "/api/v1/transactions/summary", "", token), http.StatusOK)
	summary := result["summary"].(map[string]any)
	if summary["income"].(float64) != 1000 || summary["expense"].(float64) != 100 {
		t.Errorf("unexpected summary %v", summary)
	}

	// deleting the category keeps the transaction without a category
	expectStatus(t, app.request(http.MethodDelete, "/api/v1/categories/"+categoryID, "", token), http.StatusOK)
	result = expectStatus(t, app.request(http.MethodGet, "/api/v1/transactions/"+txID, "", token), http.StatusOK)
	if result["transaction"].(map[string]any)["category_id"] != nil {
		t.Errorf("expected category_id to be cleared, got %v", result["transaction"])
	}

	// account listing is paginated
	result = expectStatus(t, app.request(http.MethodGet, "/api/v1/accounts/"+accountID+"/transactions?page_size=1", "", token), http.StatusOK)
	if result["total_items"].(float64) != 2 || len(result["data"].([]any)) != 1 {
		t.Errorf("unexpected page %v", result)
	}

	// delete reverses the effect
	expectStatus(t, app.request(http.MethodDelete, "/api/v1/transactions/"+txID, "", token), http.StatusOK)
	result = expectStatus(t, app.request(http.MethodGet, "/api/v1/accounts/"+accountID, "", token), http.StatusOK)
	if got := result["account"].(map[string]any)["balance"].(float64); got != 1000 {
		t.Fatalf("expected balance 1000 after delete, got %v", got)
	}

	got := app.publisher.types()
	want := []events.EventType{events.TransactionRecorded, events.TransactionUpdated, events.TransactionDeleted}
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestNetWorth(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "petr")

	expectStatus(t, app.request(http.MethodPost, "/api/v1/accounts",
		`{"name":"Cash","currency":"RUB","initial_balance":1000}`, token), http.StatusCreated)
	expectStatus(t, app.request(http.MethodPost, "/api/v1/accounts",
		`{"name":"Savings","currency":"USD","initial_balance":10}`, token), http.StatusCreated)

	result := expectStatus(t, app.request(http.MethodGet, "/api/v1/accounts/net-worth", "", token), http.StatusOK)
	netWorth := result["net_worth"].(map[string]any)
	if netWorth["currency"] != "RUB" || netWorth["total"].(float64) != 1900 {
		t.Errorf("unexpected net worth %v", netWorth)
	}

	rec := app.request(http.MethodGet, "/api/v1/accounts/net-worth?currency=EUR", "", token)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a EUR rate, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIsolationBetweenUsers(t *testing.T) {
	app := setupApp(t)
	alice, _, _ := app.registerUser(t, "alice")
	bob, _, _ := app.registerUser(t, "bob")

	result := expectStatus(t, app.request(http.MethodPost, "/api/v1/accounts", `{"name":"Alice"}`, alice), http.StatusCreated)
	accountID := result["account"].(map[string]any)["id"].(string)

	rec := app.request(http.MethodGet, "/api/v1/accounts/"+accountID, "", bob)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "ACCOUNT_NOT_FOUND" {
		t.Fatalf("expected ACCOUNT_NOT_FOUND for another user's account, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request(http.MethodGet, "/api/v1/accounts/not-a-uuid", "", alice)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "INVALID_INPUT" {
		t.Fatalf("expected INVALID_INPUT for malformed id, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminRoutes(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "regular")

	rec := app.request(http.MethodPost, "/api/v1/currencies", `{"code":"CHF","name":"Swiss franc","symbol":"Fr"}`, token)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = app.request(http.MethodPost, "/api/v1/categories/defaults", `{"name":"Taxes","type":"expense"}`, token)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for default category, got %d", rec.Code)
	}

	result := expectStatus(t, app.request(http.MethodGet, "/api/v1/currencies", "", token), http.StatusOK)
	if len(result["currencies"].([]any)) != len(models.DefaultCurrencies) {
		t.Errorf("expected seeded currencies, got %v", result["currencies"])
	}

	rec = app.request(http.MethodGet, "/api/v1/accounts", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestRoleChangeAppliesToLiveToken(t *testing.T) {
	app := setupApp(t)
	token, _, userID := app.registerUser(t, "marina")

	setRole := func(role models.UserRole) {
		t.Helper()
		if err := app.db.Model(&models.User{}).Where("id = ?", userID).Update("role", role).Error; err != nil {
			t.Fatalf("failed to set role: %v", err)
		}
	}

	setRole(models.UserRoleAdmin)
	expectStatus(t, app.request(http.MethodPost, "/api/v1/currencies", `{"code":"CHF","name":"Swiss franc","symbol":"Fr"}`, token), http.StatusCreated)

	setRole(models.UserRoleUser)
	rec := app.request(http.MethodPost, "/api/v1/currencies", `{"code":"SEK","name":"Swedish krona","symbol":"kr"}`, token)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN after demotion, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSummaryDateRange(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "olga")

	result := expectStatus(t, app.request(http.MethodPost, "/api/v1/accounts", `{"name":"Card"}`, token), http.StatusCreated)
	accountID := result["account"].(map[string]any)["id"].(string)
	result = expectStatus(t, app.request(http.MethodPost, "/api/v1/categories", `{"name":"Taxi","type":"expense"}`, token), http.StatusCreated)
	categoryID := result["category"].(map[string]any)["id"].(string)

	for _, date := range []string{"2026-03-01T15:00:00Z", "2026-03-01T23:30:00Z", "2026-03-02T00:00:00Z"} {
		body := fmt.Sprintf(`{"account_id":%q,"category_id":%q,"type":"expense","amount":100,"date":%q}`, accountID, categoryID, date)
		expectStatus(t, app.request(http.MethodPost, "/api/v1/transactions", body, token), http.StatusCreated)
	}

	tests := []struct {
		name      string
		query     string
		wantCount float64
	}{
		{"same day", "from_date=2026-03-01&to_date=2026-03-01", 2},
		{"two days", "from_date=2026-03-01&to_date=2026-03-02", 3},
		{"timestamp end is exact", "from_date=2026-03-01&to_date=2026-03-01T15:00:00Z", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expectStatus(t, app.request(http.MethodGet, "/api/v1/transactions/summary?"+tt.query, "", token), http.StatusOK)
			summary := result["summary"].(map[string]any)
			if summary["count"].(float64) != tt.wantCount {
				t.Errorf("expected %v transactions, got %v", tt.wantCount, summary["count"])
			}
		})
	}
}
