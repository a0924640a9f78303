package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/phillip/levy-collector-go/config"
	"github.com/phillip/levy-collector-go/metrics"
	"github.com/phillip/levy-collector-go/models"
	"github.com/phillip/levy-collector-go/utils"
)

var secret = []byte("middleware-secret")

func testRouter(m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWTSecret: secret}

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/whoami", AuthMiddleware(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": CurrentEmail(c), "role": CurrentRole(c), "id": CurrentUserID(c)})
	})
	r.GET("/admin", AuthMiddleware(cfg), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func token(t *testing.T, role models.Role, kind string, ttl time.Duration) string {
	t.Helper()
	u := models.User{ID: "u-1", Email: "amaka@example.com", Role: role}
	tok, _, err := utils.GenerateToken(secret, u, kind, ttl, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func get(r *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := testRouter(nil)
	access := token(t, models.RoleCollector, utils.TokenAccess, time.Minute)

	tests := []struct {
		name, path, header string
		want               int
	}{
		{"no token", "/whoami", "", http.StatusUnauthorized},
		{"wrong scheme", "/whoami", "Basic " + access, http.StatusUnauthorized},
		{"garbage", "/whoami", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "/whoami", "Bearer " + token(t, models.RoleCollector, utils.TokenRefresh, time.Minute), http.StatusUnauthorized},
		{"expired", "/whoami", "Bearer " + token(t, models.RoleCollector, utils.TokenAccess, -time.Minute), http.StatusUnauthorized},
		{"bearer", "/whoami", "Bearer " + access, http.StatusOK},
		{"lowercase scheme", "/whoami", "bearer " + access, http.StatusOK},
		{"query token", "/whoami?access_token=" + access, "", http.StatusOK},
	}
	for _, tt := range tests {
		if w := get(r, tt.path, tt.header); w.Code != tt.want {
			t.Errorf("%s: status %d, want %d: %s", tt.name, w.Code, tt.want, w.Body.String())
		}
	}

	w := get(r, "/whoami", "Bearer "+access)
	if body := w.Body.String(); !strings.Contains(body, `"email":"amaka@example.com"`) || !strings.Contains(body, `"role":"collector"`) {
		t.Fatalf("context values %s", body)
	}
}

func TestRequireRole(t *testing.T) {
	r := testRouter(nil)

	w := get(r, "/admin", "Bearer "+token(t, models.RoleCollector, utils.TokenAccess, time.Minute))
	if w.Code != http.StatusForbidden || !strings.Contains(w.Body.String(), `"error":"forbidden"`) {
		t.Fatalf("collector got %d %s", w.Code, w.Body.String())
	}
	if w := get(r, "/admin", "Bearer "+token(t, models.RoleAdmin, utils.TokenAccess, time.Minute)); w.Code != http.StatusNoContent {
		t.Fatalf("admin got %d", w.Code)
	}
}

func TestRevocationWithoutRedis(t *testing.T) {
	claims := &utils.Claims{}
	claims.ID = "jti-1"
	if err := RevokeToken(context.Background(), nil, claims); err != nil {
		t.Fatal(err)
	}
	revoked, err := IsRevoked(context.Background(), nil, "jti-1")
	if err != nil || revoked {
		t.Fatalf("revoked=%v err=%v", revoked, err)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	r := testRouter(m)
	get(r, "/whoami", "")
	get(r, "/nowhere", "")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{`route="/whoami"`, `route="unmatched"`, `status="401"`} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
