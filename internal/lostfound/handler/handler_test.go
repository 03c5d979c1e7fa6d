package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/lostfound/internal/identity"
	"github.com/jmerrifield20/lostfound/internal/itemledger"
	"github.com/jmerrifield20/lostfound/internal/kvstore"
	"github.com/jmerrifield20/lostfound/internal/lostfound/handler"
	"github.com/jmerrifield20/lostfound/internal/lostfound/service"
	"go.uber.org/zap"
)

const (
	testAdminSecret = "admin-secret"
	testBodyLimit   = 64 << 10
)

type testServer struct {
	router   *gin.Engine
	store    *itemledger.Store
	backend  *kvstore.Memory
	sessions *identity.SessionIssuer
}

func setupRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := kvstore.NewMemory()
	store, err := itemledger.Open(context.Background(), backend,
		itemledger.WithMutationHook(handler.RecordLedgerMutation))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	sessions, err := identity.NewSessionIssuer("test-secret", "http://lostfound.test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	svc := service.NewItemService(store, zap.NewNop())

	r := gin.New()
	r.Use(handler.BodyLimit(testBodyLimit))
	r.Use(handler.PrometheusMiddleware())
	v1 := r.Group("/api/v1")
	handler.NewSessionHandler(sessions, zap.NewNop()).Register(v1)
	handler.NewItemsHandler(svc, sessions, zap.NewNop()).Register(v1)
	lh := handler.NewLedgerHandler(store, zap.NewNop())
	lh.SetRechainer(svc, testAdminSecret)
	lh.Register(v1)
	r.GET("/metrics", handler.MetricsHandler())

	return &testServer{router: r, store: store, backend: backend, sessions: sessions}
}

func (s *testServer) token(t *testing.T, owner string) string {
	t.Helper()
	tok, err := s.sessions.Issue(owner, owner+"@example.com")
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doHeader(method, path, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(header, value)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func wallet() map[string]any {
	return map[string]any{
		"id":          "1",
		"kind":        "lost",
		"title":       "Wallet",
		"description": "Brown leather",
		"location":    "Library",
		"date":        "2024-03-01",
	}
}
