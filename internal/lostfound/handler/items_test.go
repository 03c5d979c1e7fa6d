package handler_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmerrifield20/lostfound/internal/itemledger"
)

// pngPixel is a 1x1 transparent PNG.
var pngPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func TestReportItem_201(t *testing.T) {
	s := setupRouter(t)

	w := s.do(http.MethodPost, "/api/v1/items", s.token(t, "ana"), wallet())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	e := decode[itemledger.Entry](t, w)
	if e.Record.Title != "Wallet" || e.Record.OwnerID != "ana" {
		t.Errorf("unexpected record: %+v", e.Record)
	}
	if e.Record.OwnerContact != "ana@example.com" {
		t.Errorf("contact should come from the session, got %q", e.Record.OwnerContact)
	}
	if e.Fingerprint == "" || e.PreviousFingerprint == "" {
		t.Error("expected chained fingerprints")
	}
}

func TestReportItem_400_validation(t *testing.T) {
	s := setupRouter(t)
	item := wallet()
	item["kind"] = "stolen"

	w := s.do(http.MethodPost, "/api/v1/items", s.token(t, "ana"), item)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp := decode[map[string]any](t, w); resp["field"] != "kind" {
		t.Errorf("expected field=kind, got %v", resp["field"])
	}
}

func TestReportItem_400_anonymousWithoutOwner(t *testing.T) {
	s := setupRouter(t)

	w := s.do(http.MethodPost, "/api/v1/items", "", wallet())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestReportItem_400_badJSON(t *testing.T) {
	s := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestReportItem_503_persistenceFailure(t *testing.T) {
	s := setupRouter(t)
	s.backend.FailPuts(errors.New("disk full"))

	w := s.do(http.MethodPost, "/api/v1/items", s.token(t, "ana"), wallet())
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "disk full") {
		t.Error("storage error details must not leak")
	}

	list := s.do(http.MethodGet, "/api/v1/items", "", nil)
	if resp := decode[map[string]any](t, list); int(resp["count"].(float64)) != 0 {
		t.Errorf("failed report must not be listed: %s", list.Body.String())
	}
}

func TestReportItem_jsonBodyTooLarge(t *testing.T) {
	s := setupRouter(t)

	item := wallet()
	item["description"] = strings.Repeat("x", testBodyLimit)
	w := s.do(http.MethodPost, "/api/v1/items", s.token(t, "ana"), item)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "http: request body too large") {
		t.Errorf("reader error leaked: %s", w.Body.String())
	}
	if n, _ := s.store.Len(context.Background()); n != 1 {
		t.Errorf("nothing should be appended, ledger has %d entries", n)
	}
}

func multipartItem(t *testing.T, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"id": "7", "kind": "found", "title": "Keys", "location": "Cafe", "date": "2024-03-02",
	} {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "keys.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(image)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestReportItem_multipartImage(t *testing.T) {
	s := setupRouter(t)
	body, ctype := multipartItem(t, pngPixel)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("Authorization", "Bearer "+s.token(t, "bob"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	e := decode[itemledger.Entry](t, w)
	if !strings.HasPrefix(e.Record.ImageURL, "data:image/png;base64,") {
		t.Errorf("expected png data URI, got %.40q", e.Record.ImageURL)
	}
	if e.Record.Kind != itemledger.KindFound {
		t.Errorf("Kind: got %q", e.Record.Kind)
	}
}

func TestReportItem_multipartRejectsNonImage(t *testing.T) {
	s := setupRouter(t)
	body, ctype := multipartItem(t, []byte("plain text, not a picture"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("Authorization", "Bearer "+s.token(t, "bob"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListItems_excludesGenesis(t *testing.T) {
	s := setupRouter(t)

	w := s.do(http.MethodGet, "/api/v1/items", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := decode[map[string]any](t, w); int(resp["count"].(float64)) != 0 {
		t.Errorf("expected no items on a fresh ledger, got %v", resp["count"])
	}

	s.do(http.MethodPost, "/api/v1/items", s.token(t, "ana"), wallet())
	w = s.do(http.MethodGet, "/api/v1/items", "", nil)
	resp := decode[struct {
		Items []itemledger.Entry `json:"items"`
	}](t, w)
	if len(resp.Items) != 1 || resp.Items[0].Record.ID != "1" {
		t.Errorf("expected the wallet only, got %+v", resp.Items)
	}
}

func TestEditItem(t *testing.T) {
	s := setupRouter(t)
	ana := s.token(t, "ana")
	s.do(http.MethodPost, "/api/v1/items", ana, wallet())

	changed := wallet()
	changed["title"] = "Black wallet"

	if w := s.do(http.MethodPut, "/api/v1/items/1", s.token(t, "bob"), changed); w.Code != http.StatusForbidden {
		t.Errorf("other owner: expected 403, got %d", w.Code)
	}
	if w := s.do(http.MethodPut, "/api/v1/items/1", "", changed); w.Code != http.StatusForbidden {
		t.Errorf("anonymous: expected 403, got %d", w.Code)
	}
	if w := s.do(http.MethodPut, "/api/v1/items/missing", ana, changed); w.Code != http.StatusNotFound {
		t.Errorf("missing: expected 404, got %d", w.Code)
	}
	if w := s.do(http.MethodPut, "/api/v1/items/0", ana, changed); w.Code != http.StatusNotFound {
		t.Errorf("genesis: expected 404, got %d", w.Code)
	}

	w := s.do(http.MethodPut, "/api/v1/items/1", ana, changed)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if e := decode[itemledger.Entry](t, w); e.Record.Title != "Black wallet" {
		t.Errorf("Title: got %q", e.Record.Title)
	}
}

func TestWithdrawItem(t *testing.T) {
	s := setupRouter(t)
	ana := s.token(t, "ana")
	s.do(http.MethodPost, "/api/v1/items", ana, wallet())

	if w := s.do(http.MethodDelete, "/api/v1/items/1", s.token(t, "bob"), nil); w.Code != http.StatusForbidden {
		t.Errorf("other owner: expected 403, got %d", w.Code)
	}
	if w := s.do(http.MethodDelete, "/api/v1/items/1", ana, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodDelete, "/api/v1/items/1", ana, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}

	// Removing the last entry keeps the chain valid.
	verify := s.do(http.MethodGet, "/api/v1/ledger/verify", "", nil)
	if decode[map[string]any](t, verify)["valid"] != true {
		t.Errorf("expected valid chain: %s", verify.Body.String())
	}
}
