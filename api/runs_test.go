package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/leavesync/api"
	"github.com/garnizeh/leavesync/internal/config"
	"github.com/garnizeh/leavesync/internal/jobs"
	"github.com/garnizeh/leavesync/pkg/models"
	"github.com/garnizeh/leavesync/pkg/repository/mock"
)

type fakeTrigger struct {
	calls []string
	err   error
}

func (f *fakeTrigger) Trigger(ctx context.Context, trigger string) (int64, error) {
	f.calls = append(f.calls, trigger)
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.calls)), nil
}

type testServer struct {
	srv     *httptest.Server
	mocks   *mock.Mocks
	trigger *fakeTrigger
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := &config.Config{
		JWTSecret:     "routes-secret",
		TokenDuration: time.Hour,
		Admin:         config.AdminConfig{Username: "admin", PasswordHash: string(hash)},
	}
	ts := &testServer{mocks: mock.NewMocks(), trigger: &fakeTrigger{}}
	r := api.SetupRoutes(cfg, "1.0.0", "now", api.Deps{
		Runs:    ts.mocks.Runs,
		Ledger:  ts.mocks.Ledger,
		Trigger: ts.trigger,
	})
	ts.srv = httptest.NewServer(r)
	t.Cleanup(ts.srv.Close)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "hunter2"})
	res, err := http.Post(ts.srv.URL+"/v1/auth/signin", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("signin: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("signin: status %d", res.StatusCode)
	}
	var ar struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&ar); err != nil {
		t.Fatalf("decode signin: %v", err)
	}
	ts.token = ar.Token
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, auth bool) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, b
}

func TestRoutes_RunsRequireToken(t *testing.T) {
	ts := newTestServer(t)
	if code, _ := ts.do(t, http.MethodGet, "/v1/runs", false); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code, _ := ts.do(t, http.MethodPost, "/v1/runs", false); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if len(ts.trigger.calls) != 0 {
		t.Fatalf("trigger must not run without auth")
	}
}

func TestRoutes_ListAndGetRuns(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	_ = ts.mocks.Runs.StartRun(ctx, &models.SyncRun{ID: "run-1", Trigger: "cli", Started: 1000})
	_ = ts.mocks.Runs.FinishRun(ctx, &models.SyncRun{ID: "run-2", Trigger: "api", Started: 2000, Notified: 3})

	code, body := ts.do(t, http.MethodGet, "/v1/runs?limit=1", true)
	if code != http.StatusOK {
		t.Fatalf("list runs: %d %s", code, body)
	}
	var runs []models.SyncRun
	if err := json.Unmarshal(body, &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-2" || runs[0].Notified != 3 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	if code, _ := ts.do(t, http.MethodGet, "/v1/runs?limit=abc", true); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", code)
	}

	code, body = ts.do(t, http.MethodGet, "/v1/runs/run-1", true)
	if code != http.StatusOK || !strings.Contains(string(body), `"id":"run-1"`) {
		t.Fatalf("get run: %d %s", code, body)
	}
	if code, _ := ts.do(t, http.MethodGet, "/v1/runs/missing", true); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}

	ts.mocks.Runs.ListErr = errors.New("db locked")
	if code, _ := ts.do(t, http.MethodGet, "/v1/runs", true); code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
}

func TestRoutes_TriggerRun(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodPost, "/v1/runs", true)
	if code != http.StatusAccepted {
		t.Fatalf("trigger: %d %s", code, body)
	}
	if !strings.Contains(string(body), `"job_id":1`) {
		t.Fatalf("unexpected body %s", body)
	}
	if len(ts.trigger.calls) != 1 || ts.trigger.calls[0] != "api" {
		t.Fatalf("unexpected trigger calls %v", ts.trigger.calls)
	}

	ts.trigger.err = jobs.ErrSyncPending
	if code, _ := ts.do(t, http.MethodPost, "/v1/runs", true); code != http.StatusConflict {
		t.Fatalf("expected 409 while pending, got %d", code)
	}
	ts.trigger.err = errors.New("disk full")
	if code, _ := ts.do(t, http.MethodPost, "/v1/runs", true); code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
}

func TestRoutes_ListNotifications(t *testing.T) {
	ts := newTestServer(t)
	_ = ts.mocks.Ledger.RecordSent(context.Background(), &models.Notification{RequestID: "req-1", Status: "Approved", Recipient: "mona@example.com"})

	code, body := ts.do(t, http.MethodGet, "/v1/notifications/req-1", true)
	if code != http.StatusOK {
		t.Fatalf("list notifications: %d %s", code, body)
	}
	var list []models.Notification
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Status != "Approved" {
		t.Fatalf("unexpected list %+v", list)
	}

	code, body = ts.do(t, http.MethodGet, "/v1/notifications/none", true)
	if code != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("expected empty list, got %d %s", code, body)
	}
}

func TestRoutes_OpenEndpoints(t *testing.T) {
	ts := newTestServer(t)
	if code, _ := ts.do(t, http.MethodGet, "/health", false); code != http.StatusOK {
		t.Fatalf("health: %d", code)
	}
	if code, body := ts.do(t, http.MethodGet, "/version", false); code != http.StatusOK || !strings.Contains(string(body), "1.0.0") {
		t.Fatalf("version: %d %s", code, body)
	}
	code, body := ts.do(t, http.MethodGet, "/metrics", false)
	if code != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("metrics: %d", code)
	}
}
