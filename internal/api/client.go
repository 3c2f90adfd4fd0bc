// Package api implements the HTTP client for the remote movie API. Every
// domain operation is a thin named wrapper over a single request primitive
// that normalizes transport failures, error bodies, and session expiry.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cinemate/cinemate-web/internal/logging"
	"github.com/cinemate/cinemate-web/internal/metrics"
)

// ErrSessionExpired is returned when the upstream rejects the session with a
// 401 outside the auth endpoints. The configured hook fires before it is
// returned so the caller can redirect to the login page.
var ErrSessionExpired = errors.New("api: session expired")

// RequestError describes a non-2xx upstream response. Message comes from the
// JSON error body when one is present, otherwise from the HTTP status text.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

// IsNotFound reports whether err is a 404 upstream response.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound
}

// Client talks to the movie API. Session credentials are cookies held in the
// client's jar, attached automatically to every request going to the API host.
type Client struct {
	baseURL *url.URL
	httpc   *http.Client
	logger  zerolog.Logger

	// OnSessionExpired is invoked when a 401 arrives outside the auth
	// endpoints, before ErrSessionExpired is returned. Optional.
	OnSessionExpired func()
}

// New constructs a Client for the API at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("init cookie jar: %w", err)
	}

	return &Client{
		baseURL: parsed,
		httpc: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logging.L().With().Str("component", "api").Logger(),
	}, nil
}

// request performs one API call. endpoint is the path under /api, optionally
// carrying a query string. A nil payload and a nil body are both legal; 204
// and blank responses return a nil payload rather than a decode error.
func (c *Client) request(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	rel, err := url.Parse("/api" + endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	target := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Debug().Str("request_id", requestID).Str("method", method).
			Str("endpoint", endpoint).Err(err).Msg("upstream request failed")
		return nil, fmt.Errorf("api: request failed: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	metrics.ObserveUpstream(sanitizeEndpoint(endpoint), method, resp.StatusCode, elapsed)
	c.logger.Debug().Str("request_id", requestID).Str("method", method).
		Str("endpoint", endpoint).Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).Msg("upstream request")

	if resp.StatusCode == http.StatusUnauthorized && !isAuthEndpoint(endpoint) {
		if c.OnSessionExpired != nil {
			c.OnSessionExpired()
		}
		return nil, ErrSessionExpired
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			Status:  resp.StatusCode,
			Message: extractErrorMessage(resp.StatusCode, raw),
		}
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// extractErrorMessage pulls the message out of an {error: string} body,
// falling back to the HTTP status text.
func extractErrorMessage(status int, raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return http.StatusText(status)
}

// isAuthEndpoint reports whether the endpoint belongs to the login/register
// flow, where a 401 is a normal outcome rather than an expired session.
func isAuthEndpoint(endpoint string) bool {
	return strings.HasPrefix(endpoint, "/auth/")
}

// sanitizeEndpoint strips the query string and collapses numeric path
// segments so metric labels keep bounded cardinality.
func sanitizeEndpoint(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	segments := strings.Split(endpoint, "/")
	for i, seg := range segments {
		if seg != "" && isDigits(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Health probes the upstream health endpoint, which lives outside the /api
// prefix.
func (c *Client) Health(ctx context.Context) error {
	target := c.baseURL.ResolveReference(&url.URL{Path: "/health/"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("api: health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &RequestError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}
