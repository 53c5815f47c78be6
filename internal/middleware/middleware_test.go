package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Bahdan321/Study-Practice-3-course/internal/config"
	"github.com/Bahdan321/Study-Practice-3-course/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	config.Set(&config.Config{
		JWTSecret:        "test-secret",
		JWTExpirationDur: 15 * time.Minute,
	})
}

func doRequest(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	body := parseBody(t, rec)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got %v", body)
	}
	if code, _ := errObj["code"].(string); code != want {
		t.Errorf("error code = %q, want %q", code, want)
	}
}
