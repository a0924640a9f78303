package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/phillip/levy-collector-go/config"
	"github.com/phillip/levy-collector-go/models"
	"github.com/phillip/levy-collector-go/routes"
	"github.com/phillip/levy-collector-go/store"
	"github.com/phillip/levy-collector-go/utils"
)

var wat = time.FixedZone("WAT", 3600)

const (
	adminEmail = "admin@example.com"
	colA       = "amaka@example.com"
	colB       = "bello@example.com"
)

type harness struct {
	t   *testing.T
	cfg *config.Config
	mem *store.Memory
	r   *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	cfg := &config.Config{
		DBDriver:   config.DriverMemory,
		JWTSecret:  []byte("test-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		Timezone:   "WAT",
		Location:   wat,
		Store:      mem,
		Now:        time.Now,
	}
	r := gin.New()
	routes.SetupRoutes(r, cfg)
	return &harness{t: t, cfg: cfg, mem: mem, r: r}
}

// login creates an account directly in the store and returns an access token.
func (h *harness) login(email string, role models.Role) string {
	h.t.Helper()
	u := &models.User{Name: email, Email: email, Role: role}
	if err := h.mem.CreateUser(context.Background(), u); err != nil {
		h.t.Fatalf("create %s: %v", email, err)
	}
	tok, _, err := utils.GenerateToken(h.cfg.JWTSecret, *u, utils.TokenAccess, time.Minute, time.Now())
	if err != nil {
		h.t.Fatal(err)
	}
	return tok
}

func (h *harness) seed(collector, name, phone, amount string, pt models.PaymentType, at time.Time) models.Transaction {
	h.t.Helper()
	tx := models.Transaction{
		PayerName:   name,
		PayerPhone:  phone,
		Amount:      decimal.RequireFromString(amount),
		PaymentType: pt,
		Collector:   collector,
		CreatedAt:   at.UTC(),
	}
	if err := h.mem.InsertTransaction(context.Background(), &tx); err != nil {
		h.t.Fatal(err)
	}
	return tx
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			h.t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d: %s", w.Code, want, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/health", "", nil)
	expectStatus(t, w, http.StatusOK)

	var body struct {
		Status string `json:"status"`
		Store  string `json:"store"`
	}
	decode(t, w, &body)
	if body.Status != "ok" || body.Store != "memory" {
		t.Fatalf("health %+v", body)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.do(http.MethodGet, "/transactions", "", nil), http.StatusUnauthorized)
	expectStatus(t, h.do(http.MethodGet, "/transactions", "not-a-jwt", nil), http.StatusUnauthorized)
	expectStatus(t, h.do(http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized)
}

func TestAdminOnlyRoutes(t *testing.T) {
	h := newHarness(t)
	tok := h.login(colA, models.RoleCollector)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/fraud/scan"},
		{http.MethodGet, "/compliance/unpaid"},
		{http.MethodPost, "/compliance/reminders/quote"},
		{http.MethodPost, "/compliance/reminders/send"},
		{http.MethodGet, "/reports/export.csv"},
		{http.MethodGet, "/reports/export.xlsx"},
		{http.MethodPost, "/transactions/import"},
		{http.MethodGet, "/users"},
	} {
		w := h.do(tc.method, tc.path, tok, nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s %s = %d, want 403", tc.method, tc.path, w.Code)
		}
	}
}
