package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError is returned for any other non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// Entry mirrors a ledger entry as served by the API.
type Entry struct {
	Index      int       `json:"sequence_index"`
	CreatedAt  time.Time `json:"created_at"`
	Label      string    `json:"label"`
	ContentID  string    `json:"content_id"`
	PrevDigest string    `json:"prev_digest"`
	Digest     string    `json:"digest"`
}

// Overview is the chain summary returned by GET /api/v1/ledger.
type Overview struct {
	Entries int    `json:"entries"`
	Root    string `json:"root"`
}

// Client is the filechain SDK entry point.
type Client struct {
	base       string
	httpClient *http.Client
	cache      *contentCache
	maxFetch   int64
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// WithCacheTTL enables in-memory caching of fetched content with the given TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		c.cache = newContentCache(ttl)
		return nil
	}
}

// WithMaxFetchBytes caps how much Fetch will read from a response body.
func WithMaxFetchBytes(n int64) Option {
	return func(c *Client) error {
		c.maxFetch = n
		return nil
	}
}

// New creates a new Client for the server at base, e.g. "http://localhost:5000".
func New(base string, opts ...Option) (*Client, error) {
	if base == "" {
		return nil, errors.New("server URL is required")
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxFetch:   64 << 20,
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Upload posts data as a multipart file named filename and returns the
// ledger entry the server recorded.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (*Entry, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/files", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Entry *Entry `json:"entry"`
	}
	if err := json.Unmarshal(respBody, &wrapper); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if wrapper.Entry == nil {
		return nil, errors.New("upload response carried no entry")
	}
	return wrapper.Entry, nil
}

// Entries returns every ledger entry in chain order.
func (c *Client) Entries(ctx context.Context) ([]Entry, error) {
	body, err := c.get(ctx, "/api/v1/ledger/entries")
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Entries []Entry `json:"entries"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Entries, nil
}

// Entry returns the ledger entry at idx.
func (c *Client) Entry(ctx context.Context, idx int) (*Entry, error) {
	body, err := c.get(ctx, "/api/v1/ledger/entries/"+strconv.Itoa(idx))
	if err != nil {
		return nil, err
	}

	var e Entry
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("decode entry response: %w", err)
	}
	return &e, nil
}

// Overview returns the chain length and root digest.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	body, err := c.get(ctx, "/api/v1/ledger")
	if err != nil {
		return nil, err
	}

	var o Overview
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, fmt.Errorf("decode overview response: %w", err)
	}
	return &o, nil
}

// Verify asks the server to verify the ledger. A broken chain (409) is
// reported as false with a nil error.
func (c *Client) Verify(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/ledger/verify", nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	status, body, err := c.doStatusBody(req, 1<<16)
	if err != nil {
		return false, err
	}

	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusConflict:
		return false, nil
	default:
		return false, apiError(status, body)
	}
}

// Fetch returns the content stored under cid.
func (c *Client) Fetch(ctx context.Context, cid string) ([]byte, error) {
	if c.cache != nil {
		if data, ok := c.cache.get(cid); ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/files/"+cid, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	status, body, err := c.doStatusBody(req, c.maxFetch)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cid)
	}
	if status >= 300 {
		return nil, apiError(status, body)
	}

	if c.cache != nil {
		c.cache.set(cid, body)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// do executes an HTTP request and fails on any non-2xx status.
func (c *Client) do(req *http.Request) ([]byte, error) {
	status, body, err := c.doStatusBody(req, 4<<20)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	}
	if status >= 300 {
		return nil, apiError(status, body)
	}
	return body, nil
}

// doStatusBody is a lower-level HTTP call that returns (statusCode, body, error)
// without failing on 4xx responses. The caller interprets the status code.
func (c *Client) doStatusBody(req *http.Request, limit int64) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// apiError extracts the server's {"error": ...} message when present.
func apiError(status int, body []byte) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	}
	return &APIError{StatusCode: status, Message: msg}
}

// --- simple in-memory content cache ---

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

type contentCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func newContentCache(ttl time.Duration) *contentCache {
	return &contentCache{entries: make(map[string]*cacheEntry), ttl: ttl}
}

func (cc *contentCache) get(key string) ([]byte, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	e, ok := cc.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

func (cc *contentCache) set(key string, data []byte) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.entries[key] = &cacheEntry{data: data, expiresAt: time.Now().Add(cc.ttl)}
}
