package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Filebase defaults for the IPFS pinning API and public gateway.
const (
	DefaultIPFSAPIURL     = "https://api.filebase.io/v1/ipfs/add"
	DefaultIPFSGatewayURL = "https://ipfs.filebase.io"
)

// IPFSConfig configures an IPFSStore.
type IPFSConfig struct {
	APIURL     string        // add endpoint, multipart "file" field
	GatewayURL string        // base for GET {gateway}/ipfs/{cid}
	APIKey     string        // sent as a bearer token
	Timeout    time.Duration // per request; default 30s
	MaxBytes   int64         // largest object Get will read; default 64 MiB
}

// IPFSStore implements Store against a Filebase-compatible IPFS HTTP API.
type IPFSStore struct {
	cfg        IPFSConfig
	httpClient *http.Client
	backoff    []time.Duration
	logger     *zap.Logger
}

// Compile-time interface check.
var _ Store = (*IPFSStore)(nil)

// NewIPFSStore creates an IPFSStore. An empty API key is allowed for
// gateways that do not authenticate reads, but Put will fail with
// ErrPermanentAuth against Filebase.
func NewIPFSStore(cfg IPFSConfig, logger *zap.Logger) *IPFSStore {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultIPFSAPIURL
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = DefaultIPFSGatewayURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 64 << 20
	}
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")

	return &IPFSStore{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		// Retry transient failures after 500ms and 2s.
		backoff: []time.Duration{0, 500 * time.Millisecond, 2 * time.Second},
		logger:  logger,
	}
}

// GatewayURL returns the public download URL for cid.
func (s *IPFSStore) GatewayURL(cid string) string {
	return s.cfg.GatewayURL + "/ipfs/" + cid
}

// addResponse is the JSON body returned by the add endpoint.
type addResponse struct {
	CID string `json:"cid"`
}

// Put implements Store.
func (s *IPFSStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}

	var cid string
	err := s.retry(ctx, "put", func() error {
		body, contentType, err := multipartBody(data)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, body)
		if err != nil {
			return fmt.Errorf("%w: build request: %w", ErrUnavailable, err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
		defer resp.Body.Close()

		if err := statusError(resp); err != nil {
			return err
		}

		var out addResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
			return fmt.Errorf("%w: decode add response: %w", ErrUnavailable, err)
		}
		if out.CID == "" {
			return fmt.Errorf("%w: no cid returned", ErrUnavailable)
		}
		cid = out.CID
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("uploaded to ipfs", zap.String("cid", cid), zap.Int("bytes", len(data)))
	return cid, nil
}

// Get implements Store. Content is fetched through the gateway.
func (s *IPFSStore) Get(ctx context.Context, cid string) ([]byte, error) {
	if !ValidCID(cid) {
		return nil, fmt.Errorf("%w: invalid cid %q", ErrNotFound, cid)
	}

	var data []byte
	err := s.retry(ctx, "get", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.GatewayURL(cid), nil)
		if err != nil {
			return fmt.Errorf("%w: build request: %w", ErrUnavailable, err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
		defer resp.Body.Close()

		if err := statusError(resp); err != nil {
			return err
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBytes+1))
		if err != nil {
			return fmt.Errorf("%w: read body: %w", ErrTransient, err)
		}
		if int64(len(data)) > s.cfg.MaxBytes {
			return fmt.Errorf("%w: object exceeds %d bytes", ErrUnavailable, s.cfg.MaxBytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// retry runs fn until it succeeds, fails with a non-transient error, the
// backoff schedule is exhausted, or ctx is done.
func (s *IPFSStore) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt, delay := range s.backoff {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrTransient, ctx.Err())
			}
		}

		err = fn()
		if err == nil || !errors.Is(err, ErrTransient) {
			return err
		}
		s.logger.Warn("ipfs request failed",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return err
}

// statusError maps an HTTP response status to a store error.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrPermanentAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

func multipartBody(data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "blob")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
