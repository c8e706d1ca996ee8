// Package transport provides the thin HTTP collaborator consumed by the
// call orchestrator. It performs plain requests against the ViCare API and
// returns the status, body and headers without interpreting them; all
// classification and retry policy lives in pkg/client.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Response is the transport-level result of an upstream call.
type Response struct {
	// Status is the upstream HTTP status code.
	Status int

	// Data is the response body.
	Data []byte

	// Headers are the response headers.
	Headers http.Header

	// Cached marks synthetic responses served from the cache.
	Cached bool
}

// TokenSource supplies and refreshes the OAuth access token. The PKCE flow
// itself lives outside this module.
type TokenSource interface {
	// AccessToken returns the current access token, or an error when none
	// is available.
	AccessToken(ctx context.Context) (string, error)

	// RefreshToken obtains a fresh access token.
	RefreshToken(ctx context.Context) error
}

// Doer is the transport contract the orchestrator consumes.
type Doer interface {
	Get(ctx context.Context, path string, params url.Values, extra http.Header) (*Response, error)
	Post(ctx context.Context, path string, body []byte, extra http.Header) (*Response, error)
	Put(ctx context.Context, path string, body []byte, extra http.Header) (*Response, error)
	Delete(ctx context.Context, path string, extra http.Header) (*Response, error)
}

// Config holds the HTTP transport configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.viessmann.com/iot/v1".
	BaseURL string

	// UserAgent identifies this client upstream.
	UserAgent string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Tokens supplies bearer tokens. Nil disables the Authorization
	// header (useful against mocks).
	Tokens TokenSource
}

// HTTPTransport implements Doer over net/http.
type HTTPTransport struct {
	client    *http.Client
	baseURL   string
	userAgent string
	tokens    TokenSource
	logger    zerolog.Logger
}

// NewHTTPTransport creates an HTTP transport.
func NewHTTPTransport(cfg Config, logger zerolog.Logger) (*HTTPTransport, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HTTPTransport{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		tokens:    cfg.Tokens,
		logger:    logger,
	}, nil
}

// Get performs a GET request.
func (t *HTTPTransport) Get(ctx context.Context, path string, params url.Values, extra http.Header) (*Response, error) {
	u := t.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return t.do(ctx, http.MethodGet, u, nil, extra)
}

// Post performs a POST request with a JSON body.
func (t *HTTPTransport) Post(ctx context.Context, path string, body []byte, extra http.Header) (*Response, error) {
	return t.do(ctx, http.MethodPost, t.baseURL+path, body, extra)
}

// Put performs a PUT request with a JSON body.
func (t *HTTPTransport) Put(ctx context.Context, path string, body []byte, extra http.Header) (*Response, error) {
	return t.do(ctx, http.MethodPut, t.baseURL+path, body, extra)
}

// Delete performs a DELETE request.
func (t *HTTPTransport) Delete(ctx context.Context, path string, extra http.Header) (*Response, error) {
	return t.do(ctx, http.MethodDelete, t.baseURL+path, nil, extra)
}

func (t *HTTPTransport) do(ctx context.Context, method, url string, body []byte, extra http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for name, values := range extra {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	if t.tokens != nil {
		token, err := t.tokens.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	t.logger.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("bytes", len(data)).
		Msg("Upstream request")

	return &Response{
		Status:  resp.StatusCode,
		Data:    data,
		Headers: resp.Header.Clone(),
	}, nil
}
