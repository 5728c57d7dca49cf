// Package catalog talks to the remote photo catalog (an Immich server)
// and provides an in-memory stand-in for tests and dry experiments.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"photosync/internal/photosync"
)

// Config holds the connection settings for Client.
type Config struct {
	BaseURL  string // server root; API paths live under <BaseURL>/api/
	APIKey   string
	DeviceID string // sent with every upload

	RetryDelay     time.Duration // pause between attempts after a transport failure
	MaxRetries     uint64        // 0 retries forever
	RequestTimeout time.Duration // per attempt; 0 means no timeout

	HTTPClient *http.Client // overrides RequestTimeout when set
}

// Client is the HTTP implementation of photosync.Catalog.
// It is safe for concurrent use.
type Client struct {
	apiURL     string
	apiKey     string
	deviceID   string
	retryDelay time.Duration
	maxRetries uint64
	http       *http.Client
	logger     photosync.Logger

	// albumMu serialises find-or-create so that concurrent callers in this
	// process never create the same album twice.
	albumMu sync.Mutex
}

// NewClient validates cfg and returns a ready Client.
func NewClient(cfg Config, logger photosync.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("catalog url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog url %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("catalog url must be http or https, got %q", cfg.BaseURL)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("catalog api key is required")
	}

	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = "photosync"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if logger == nil {
		logger = photosync.NewNopLogger()
	}

	return &Client{
		apiURL:     strings.TrimRight(cfg.BaseURL, "/") + "/api/",
		apiKey:     cfg.APIKey,
		deviceID:   cfg.DeviceID,
		retryDelay: cfg.RetryDelay,
		maxRetries: cfg.MaxRetries,
		http:       httpClient,
		logger:     logger,
	}, nil
}

// response is a fully read HTTP response.
type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// requestBuilder creates a fresh request for each attempt, since a request
// body cannot be replayed.
type requestBuilder func(ctx context.Context) (*http.Request, error)

// send performs a request, retrying transport failures with a fixed delay.
// Any HTTP response, whatever its status, ends the loop.
func (c *Client) send(ctx context.Context, build requestBuilder) (*response, error) {
	var resp *response
	attempt := 0

	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		req, err := build(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Accept", "application/json")

		r, err := c.http.Do(req)
		if err != nil {
			return c.retryable(ctx, req, attempt, err)
		}
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			return c.retryable(ctx, req, attempt, fmt.Errorf("reading response: %w", err))
		}
		resp = &response{status: r.StatusCode, body: body}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) retryable(ctx context.Context, req *http.Request, attempt int, err error) error {
	if !isTransient(ctx, err) {
		return err
	}
	c.logger.Warn("catalog unreachable, retrying",
		"method", req.Method,
		"path", req.URL.Path,
		"attempt", attempt,
		"delay", c.retryDelay.String(),
		"error", err,
	)
	return retry.RetryableError(err)
}

// do sends a JSON request to the API path and returns the raw response.
// in is encoded as the body when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in any) (*response, error) {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
	}

	return c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("building %s %s: %w", method, path, err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
}

// call is do for endpoints where any non-2xx status is fatal. The response
// body is decoded into out when out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.ok() {
		return newStatusError(method, path, resp.status, resp.body)
	}
	if out == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

// Compile-time check that Client implements photosync.Catalog interface
var _ photosync.Catalog = (*Client)(nil)
