package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/lostfound/internal/lostfound/handler"
)

func TestStartSession_201(t *testing.T) {
	s := setupRouter(t)

	w := s.do(http.MethodPost, "/api/v1/session", "", map[string]string{
		"owner_id":      "ana",
		"owner_contact": "ana@example.com",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[map[string]any](t, w)
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatal("expected token")
	}
	if resp["token_type"] != "Bearer" {
		t.Errorf("token_type: got %v", resp["token_type"])
	}

	me := s.do(http.MethodGet, "/api/v1/session", token, nil)
	if me.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", me.Code)
	}
	if got := decode[map[string]any](t, me); got["owner_id"] != "ana" || got["owner_contact"] != "ana@example.com" {
		t.Errorf("unexpected session: %v", got)
	}
}

func TestStartSession_400(t *testing.T) {
	s := setupRouter(t)

	for _, body := range []map[string]string{{}, {"owner_id": "   "}} {
		if w := s.do(http.MethodPost, "/api/v1/session", "", body); w.Code != http.StatusBadRequest {
			t.Errorf("%v: expected 400, got %d", body, w.Code)
		}
	}
}

func TestCurrentSession_401(t *testing.T) {
	s := setupRouter(t)

	if w := s.do(http.MethodGet, "/api/v1/session", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.RateLimiter(ctx, 1, 2))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("burst should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %v", codes)
	}

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other client: expected 200, got %d", w.Code)
	}
}

func TestRateLimiter_disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.RateLimiter(context.Background(), 0, 0))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}
