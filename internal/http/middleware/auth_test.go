// README: Tests for bearer auth, role checks, cron secret and rate limiting middleware.
package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"taxifare/internal/http/middleware"
	"taxifare/internal/infra"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.AuthToken
	err   error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.AuthToken, error) {
	return s.token, s.err
}

func newTestRouter(auth gin.HandlerFunc, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(auth)
	r.Use(extra...)
	r.GET("/test", func(c *gin.Context) {
		uid := middleware.CallerUID(c)
		role := middleware.CallerRole(c)
		c.JSON(http.StatusOK, gin.H{"uid": uid, "role": role})
	})
	return r
}

func get(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(middleware.Auth(&stubVerifier{token: &infra.AuthToken{UID: "user1"}}))
	w := get(r, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(middleware.Auth(&stubVerifier{token: &infra.AuthToken{UID: "user1"}}))
	w := get(r, map[string]string{"Authorization": "Token sometoken"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(middleware.Auth(&stubVerifier{err: errors.New("bad token")}))
	w := get(r, map[string]string{"Authorization": "Bearer invalidtoken"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ValidToken_UIDAndRolePopulated(t *testing.T) {
	token := &infra.AuthToken{
		UID:    "driver123",
		Claims: map[string]interface{}{"role": "admin"},
	}
	r := newTestRouter(middleware.Auth(&stubVerifier{token: token}))
	w := get(r, map[string]string{"Authorization": "Bearer validtoken"})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "driver123") {
		t.Errorf("expected uid driver123 in body, got %s", body)
	}
	if !strings.Contains(body, `"role":"admin"`) {
		t.Errorf("expected role admin in body, got %s", body)
	}
}

func TestOptionalAuth(t *testing.T) {
	token := &infra.AuthToken{UID: "driver9", Claims: map[string]interface{}{}}

	r := newTestRouter(middleware.OptionalAuth(&stubVerifier{token: token}))
	w := get(r, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"uid":""`) {
		t.Errorf("anonymous request: got %d %s", w.Code, w.Body.String())
	}

	w = get(r, map[string]string{"Authorization": "Bearer tok"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "driver9") {
		t.Errorf("authenticated request: got %d %s", w.Code, w.Body.String())
	}

	r = newTestRouter(middleware.OptionalAuth(&stubVerifier{err: errors.New("expired")}))
	w = get(r, map[string]string{"Authorization": "Bearer expired"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: expected 401, got %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	driver := &infra.AuthToken{UID: "d1", Claims: map[string]interface{}{"role": "driver"}}
	r := newTestRouter(middleware.Auth(&stubVerifier{token: driver}), middleware.RequireRole("admin"))
	w := get(r, map[string]string{"Authorization": "Bearer tok"})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}

	admin := &infra.AuthToken{UID: "a1", Claims: map[string]interface{}{"role": "admin"}}
	r = newTestRouter(middleware.Auth(&stubVerifier{token: admin}), middleware.RequireRole("admin"))
	w = get(r, map[string]string{"Authorization": "Bearer tok"})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestCronSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		headers map[string]string
		want    int
	}{
		{"bearer", "s3cret", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
		{"header", "s3cret", map[string]string{"X-Cron-Secret": "s3cret"}, http.StatusOK},
		{"wrong", "s3cret", map[string]string{"X-Cron-Secret": "nope"}, http.StatusUnauthorized},
		{"missing", "s3cret", nil, http.StatusUnauthorized},
		{"unconfigured", "", map[string]string{"X-Cron-Secret": ""}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(middleware.CronSecret(tt.secret))
			if w := get(r, tt.headers); w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(middleware.RateLimit(0.001, 2))
	for i := 0; i < 2; i++ {
		if w := get(r, nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	if w := get(r, nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}

	r = newTestRouter(middleware.RateLimit(0, 0))
	for i := 0; i < 5; i++ {
		if w := get(r, nil); w.Code != http.StatusOK {
			t.Fatalf("disabled limiter rejected request %d", i)
		}
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
