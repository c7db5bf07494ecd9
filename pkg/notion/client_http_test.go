package notion_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garnizeh/leavesync/internal/config"
	"github.com/garnizeh/leavesync/pkg/notion"
)

func testConfig(baseURL string) config.NotionConfig {
	return config.NotionConfig{
		Token:   "secret_test",
		BaseURL: baseURL,
		Version: "2022-06-28",
		Timeout: 2 * time.Second,
		Backoff: time.Millisecond,
	}
}

func newClient(t *testing.T, srv *httptest.Server, mutate func(*config.NotionConfig)) *notion.Client {
	t.Helper()
	cfg := testConfig(srv.URL)
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := notion.NewClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_QueryDatabase_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/databases/vac-db/query" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret_test" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := r.Header.Get("Notion-Version"); got != "2022-06-28" {
			t.Errorf("unexpected Notion-Version header %q", got)
		}
		var body notion.QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.PageSize != 50 {
			t.Errorf("expected page_size 50, got %d", body.PageSize)
		}
		if body.Filter == nil || body.Filter.RichText == nil || body.Filter.RichText.Equals != "123" {
			t.Errorf("unexpected filter: %+v", body.Filter)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","has_more":false,"next_cursor":null,"results":[
			{"object":"page","id":"p1","properties":{
				"Name":{"type":"title","title":[{"plain_text":"Mona"}]},
				"Days":{"type":"number","number":3},
				"Status":{"type":"select","select":{"name":"Approved"}},
				"Start":{"type":"date","date":{"start":"2025-03-01"}}
			}}]}`))
	}))
	defer srv.Close()

	client := newClient(t, srv, nil)
	f, err := notion.Equals("National ID", "rich_text", "123")
	if err != nil {
		t.Fatalf("Equals: %v", err)
	}
	resp, err := client.QueryDatabase(context.Background(), "vac-db", notion.QueryRequest{Filter: &f, PageSize: 50})
	if err != nil {
		t.Fatalf("QueryDatabase failed: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	p := resp.Results[0]
	if p.Properties["Name"].Text() != "Mona" {
		t.Fatalf("unexpected title: %q", p.Properties["Name"].Text())
	}
	if v, ok := p.Properties["Days"].Float(); !ok || v != 3 {
		t.Fatalf("unexpected number: %v %v", v, ok)
	}
	if p.Properties["Status"].Text() != "Approved" {
		t.Fatalf("unexpected select: %q", p.Properties["Status"].Text())
	}
	if d, ok := p.Properties["Start"].Time(); !ok || d.Format("2006-01-02") != "2025-03-01" {
		t.Fatalf("unexpected date: %v %v", d, ok)
	}
}

func TestClient_QueryAll_FollowsCursor(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		var body notion.QueryRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			if body.StartCursor != "" {
				t.Errorf("first call should not carry a cursor")
			}
			_, _ = w.Write([]byte(`{"has_more":true,"next_cursor":"c2","results":[{"id":"a","properties":{}}]}`))
			return
		}
		if body.StartCursor != "c2" {
			t.Errorf("expected cursor c2, got %q", body.StartCursor)
		}
		_, _ = w.Write([]byte(`{"has_more":false,"next_cursor":null,"results":[{"id":"b","properties":{}}]}`))
	}))
	defer srv.Close()

	client := newClient(t, srv, nil)
	pages, err := client.QueryAll(context.Background(), "db", notion.QueryRequest{}, 0)
	if err != nil {
		t.Fatalf("QueryAll failed: %v", err)
	}
	if len(pages) != 2 || pages[0].ID != "a" || pages[1].ID != "b" {
		t.Fatalf("unexpected pages: %+v", pages)
	}

	atomic.StoreInt32(&calls, 0)
	first, err := client.QueryAll(context.Background(), "db", notion.QueryRequest{}, 1)
	if err != nil {
		t.Fatalf("QueryAll(1) failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected maxPages=1 to stop after first page, got %d", len(first))
	}
}

func TestClient_QueryDatabase_SchemaMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"properties":{}}]}`))
	}))
	defer srv.Close()

	client := newClient(t, srv, nil)
	if _, err := client.QueryDatabase(context.Background(), "db", notion.QueryRequest{}); err == nil {
		t.Fatalf("expected schema validation error")
	}
}

func TestClient_UpdatePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/v1/pages/page-1" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		body := string(b)
		for _, want := range []string{`"Email Sent":{"rich_text":[{"type":"text","text":{"content":"Approved"}}]}`, `"Remaining Balance":{"number":12}`, `"Status":{"select":{"name":"Under Review"}}`} {
			if !strings.Contains(body, want) {
				t.Errorf("request body %s missing %s", body, want)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"page","id":"page-1","properties":{}}`))
	}))
	defer srv.Close()

	client := newClient(t, srv, nil)
	page, err := client.UpdatePage(context.Background(), "page-1", map[string]notion.PropertyValue{
		"Email Sent":        notion.RichTextValue("Approved"),
		"Remaining Balance": notion.NumberValue(12),
		"Status":            notion.OptionValue("select", "Under Review"),
	})
	if err != nil {
		t.Fatalf("UpdatePage failed: %v", err)
	}
	if page.ID != "page-1" {
		t.Fatalf("unexpected page id %q", page.ID)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"bad filter"}`))
	}))
	defer srv.Close()

	client := newClient(t, srv, func(c *config.NotionConfig) { c.Retries = 3 })
	_, err := client.QueryDatabase(context.Background(), "db", notion.QueryRequest{})
	var apiErr *notion.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "validation_error" || apiErr.Message != "bad filter" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one call, got %d", got)
	}
}

func TestClient_ServerErrorRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"has_more":false,"results":[]}`))
	}))
	defer srv.Close()

	client := newClient(t, srv, func(c *config.NotionConfig) { c.Retries = 2 })
	if _, err := client.QueryDatabase(context.Background(), "db", notion.QueryRequest{}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected two calls, got %d", got)
	}
}

func TestClient_NegativeRetriesStillSends(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"has_more":false,"results":[]}`))
	}))
	defer srv.Close()

	client := newClient(t, srv, func(c *config.NotionConfig) { c.Retries = -1 })
	if _, err := client.QueryDatabase(context.Background(), "db", notion.QueryRequest{}); err != nil {
		t.Fatalf("QueryDatabase error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one call, got %d", got)
	}
}

func TestClient_CircuitOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newClient(t, srv, func(c *config.NotionConfig) {
		c.CircuitFailureThreshold = 2
		c.CircuitReset = time.Minute
	})
	ctx := context.Background()
	if _, err := client.QueryDatabase(ctx, "db", notion.QueryRequest{}); err == nil {
		t.Fatalf("expected first query to fail")
	}
	if _, err := client.QueryDatabase(ctx, "db", notion.QueryRequest{}); err == nil {
		t.Fatalf("expected second query to fail")
	}
	before := atomic.LoadInt32(&calls)
	if _, err := client.QueryDatabase(ctx, "db", notion.QueryRequest{}); !errors.Is(err, notion.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if atomic.LoadInt32(&calls) != before {
		t.Fatalf("open circuit should not reach the server")
	}
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/users/me" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"user","id":"bot-1"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newClient(t, srv, nil)
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
}

func TestEquals_NumberProperty(t *testing.T) {
	f, err := notion.Equals("National ID", "number", "29001011234567")
	if err != nil {
		t.Fatalf("Equals: %v", err)
	}
	if f.Number == nil || f.Number.Equals == nil || *f.Number.Equals != 29001011234567 {
		t.Fatalf("expected number condition, got %+v", f)
	}

	if _, err := notion.Equals("National ID", "number", "A-123"); !errors.Is(err, notion.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}
