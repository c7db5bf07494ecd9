package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/garnizeh/leavesync/internal/config"
)

// MaxPageSize is the largest page the query endpoint accepts.
const MaxPageSize = 100

var ErrCircuitOpen = errors.New("notion circuit open")

// APIError is the error object returned by the record store for non-2xx responses.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion: %d %s: %s", e.Status, e.Code, e.Message)
}

// Temporary reports whether the request may succeed if sent again.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Client talks to the record store HTTP API and adds retries, timeout, and a
// circuit breaker.
type Client struct {
	cfg    config.NotionConfig
	base   *url.URL
	client *http.Client

	// simple circuit breaker state
	failures  int32
	openUntil int64 // unix nano
	closed    int32
}

// NewClient creates a new client. httpClient may be nil.
func NewClient(cfg config.NotionConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		cfg:    cfg,
		base:   u,
		client: httpClient,
	}
	logger.Info("notion: NewClient created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

func NewDefaultClient(cfg config.NotionConfig) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient)
}

func (c *Client) isCircuitOpen() bool {
	if c.cfg.CircuitFailureThreshold <= 0 {
		return false
	}
	if atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}

	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}

	// half-open: reset failures and allow a request
	atomic.StoreInt32(&c.failures, 0)
	return false
}

// Close releases idle connections held by the underlying transport. Close is
// idempotent and safe to call multiple times.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
			logger.Info("notion: client Close() called - CloseIdleConnections invoked")
		}
	}
	return nil
}

// package-level logger for pkg/notion; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/notion. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if c.cfg.CircuitFailureThreshold > 0 && v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

// Health checks that the token is accepted by asking who the bot user is.
func (c *Client) Health(ctx context.Context) error {
	var me struct {
		Object string `json:"object"`
		ID     string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/users/me", nil, &me); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if me.ID == "" {
		return fmt.Errorf("health check failed: empty user id")
	}
	return nil
}

// QueryDatabase fetches one page of results from a database.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) (*QueryResponse, error) {
	if databaseID == "" {
		return nil, fmt.Errorf("database id is required")
	}
	if req.PageSize <= 0 || req.PageSize > MaxPageSize {
		req.PageSize = MaxPageSize
	}

	var raw json.RawMessage
	path := "/v1/databases/" + url.PathEscape(databaseID) + "/query"
	if err := c.do(ctx, http.MethodPost, path, req, &raw); err != nil {
		return nil, err
	}
	if err := validateQueryResponse(ctx, raw); err != nil {
		return nil, err
	}

	var out QueryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return &out, nil
}

// QueryAll follows next_cursor until the database has no more results or
// maxPages pages were read. maxPages <= 0 means no limit.
func (c *Client) QueryAll(ctx context.Context, databaseID string, req QueryRequest, maxPages int) ([]Page, error) {
	var out []Page
	for n := 0; maxPages <= 0 || n < maxPages; n++ {
		resp, err := c.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return out, err
		}
		out = append(out, resp.Results...)
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		req.StartCursor = *resp.NextCursor
	}
	return out, nil
}

// UpdatePage patches the given properties of a page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, props map[string]PropertyValue) (*Page, error) {
	if pageID == "" {
		return nil, fmt.Errorf("page id is required")
	}
	body := struct {
		Properties map[string]PropertyValue `json:"properties"`
	}{Properties: props}

	var out Page
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+url.PathEscape(pageID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one API call with retries. Only transport errors, 429 and 5xx
// responses are retried.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}
	u := c.base.ResolveReference(&url.URL{Path: path})

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.Backoff * time.Duration(attempt)):
			}
			if c.isCircuitOpen() {
				return ErrCircuitOpen
			}
		}

		start := time.Now()
		err := c.send(ctx, method, u.String(), payload, out)
		if err == nil {
			atomic.StoreInt32(&c.failures, 0)
			logger.Debug("notion: request ok", slog.String("method", method), slog.String("path", path), slog.Duration("latency", time.Since(start)))
			return nil
		}

		lastErr = err
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		c.recordFailure()
		logger.Warn("notion: request failed", slog.String("method", method), slog.String("path", path), slog.Int("attempt", attempt+1), slog.Any("err", err))
	}

	return fmt.Errorf("%s %s failed after retries: %w", method, path, lastErr)
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte, out any) error {
	ctxReq, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctxReq, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Notion-Version", c.cfg.Version)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if jerr := json.Unmarshal(b, apiErr); jerr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
