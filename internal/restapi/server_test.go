package restapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lumos-db/lumosdb/internal/testutil"
	"github.com/lumos-db/lumosdb/pkg/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	row, column := testutil.OpenEngines(t)
	cfg := config.DefaultConfig()
	return NewServer(row, column, cfg)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestCreateListAndDeleteCollection(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/collections", createCollectionRequest{Name: "docs", Dimension: 3, Metric: "cosine"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/collections", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var listResp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	items, ok := listResp.Data.([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected 1 collection listed, got %v", listResp.Data)
	}

	rec = doJSON(t, s, http.MethodDelete, "/collections/docs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodDelete, "/collections/docs", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestCreateCollectionRejectsDuplicateName(t *testing.T) {
	s := newTestServer(t)
	req := createCollectionRequest{Name: "docs", Dimension: 2, Metric: "cosine"}

	rec := doJSON(t, s, http.MethodPost, "/collections", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/collections", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate create: expected 400, got %d", rec.Code)
	}
}

func TestSearchCollectionOrdersByScore(t *testing.T) {
	s := newTestServer(t)
	doJSON(t, s, http.MethodPost, "/collections", createCollectionRequest{Name: "docs", Dimension: 3, Metric: "cosine"})

	store := s.collections["docs"]
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	store.Insert(ctx, "v1", []float32{1, 0, 0}, "")
	store.Insert(ctx, "v2", []float32{0, 1, 0}, "")
	store.Insert(ctx, "v3", []float32{0.9, 0.1, 0}, "")

	rec := doJSON(t, s, http.MethodPost, "/collections/docs/search", searchRequest{Vector: []float32{1, 0, 0}, K: 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("remarshal data: %v", err)
	}
	var hits []searchHit
	if err := json.Unmarshal(raw, &hits); err != nil {
		t.Fatalf("decode hits: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "v1" {
		t.Fatalf("expected v1 first of 2 hits, got %+v", hits)
	}
}

func TestSearchCollectionNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/collections/missing/search", searchRequest{Vector: []float32{1, 0}, K: 1})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRunQueryAgainstRowEngine(t *testing.T) {
	s := newTestServer(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	if _, err := s.row.Exec(ctx, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := s.row.Exec(ctx, "INSERT INTO widgets (id, name) VALUES (1, 'a')"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec := doJSON(t, s, http.MethodPost, "/query", queryRequest{SQL: "SELECT * FROM widgets"})
	if rec.Code != http.StatusOK {
		t.Fatalf("query: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data shape: %#v", resp.Data)
	}
	rows, ok := data["rows"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("expected 1 row, got %v", data["rows"])
	}
}

func TestRunQueryRejectsBadJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
