// ABOUTME: Credentialed HTTP client with single-flight session renewal
// ABOUTME: Suspends concurrent 401s behind one refresh call and retries each exactly once

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	refreshPath = "/auth/refresh"

	// defaultHTTPTimeout bounds a single request attempt. The coordinator's
	// response timeout governs the turn; this only prevents an attempt from
	// hanging forever.
	defaultHTTPTimeout = 30 * time.Second
)

// Client issues JSON requests against the backend with cookie credentials
// attached. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	httpc   *http.Client
	logger  *slog.Logger

	// refresh collapses concurrent renewal attempts into one flight
	refresh singleflight.Group

	// signOut guards the sign-out side effect so concurrent renewal
	// failures fire it once
	mu        sync.Mutex
	signedOut bool
	onSignOut func()
}

// New creates a Client for the given API base URL, e.g.
// "https://neora.example.com/api". Pass nil httpc to use a default client
// with a fresh cookie jar. Pass nil logger for the default logger.
func New(baseURL string, httpc *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	if httpc == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		httpc = &http.Client{
			Jar:     jar,
			Timeout: defaultHTTPTimeout,
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: u,
		httpc:   httpc,
		logger:  logger.With("component", "api"),
	}, nil
}

// SetSignOutHook registers the side effect fired exactly once when session
// renewal fails. Typically wired to session.Clear plus a stream disconnect.
func (c *Client) SetSignOutHook(fn func()) {
	c.mu.Lock()
	c.onSignOut = fn
	c.mu.Unlock()
}

// HTTPClient exposes the underlying HTTP client so the stream channel can
// share the same cookie jar.
func (c *Client) HTTPClient() *http.Client {
	return c.httpc
}

// do issues one request with the renewal flow applied: on 401 for any path
// other than the refresh endpoint, join the single renewal flight and retry
// the request exactly once after it succeeds.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	status, respBody, err := c.attempt(ctx, method, path, contentType, body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if status == http.StatusUnauthorized && path != refreshPath {
		if !c.hasCredential() {
			// A renewal call without a refresh cookie is guaranteed to
			// fail; surface the 401 directly.
			return nil, ErrUnauthorized
		}

		if err := c.renew(ctx); err != nil {
			return nil, err
		}

		// One retry after a successful renewal; a second 401 is final.
		status, respBody, err = c.attempt(ctx, method, path, contentType, body)
		if err != nil {
			return nil, &NetworkError{Err: err}
		}
		if status == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
	}

	return checkStatus(status, respBody)
}

// attempt executes a single HTTP round trip and reads the full response body.
func (c *Client) attempt(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, respBody, nil
}

// renew joins (or starts) the single renewal flight. Every caller observes the
// same outcome. On failure the session is invalidated and the sign-out hook
// fires exactly once.
func (c *Client) renew(ctx context.Context) error {
	// The flight is shared by all suspended requests, so one caller's
	// cancellation must not fail the others.
	flightCtx := context.WithoutCancel(ctx)

	_, err, shared := c.refresh.Do("refresh", func() (interface{}, error) {
		c.logger.Debug("starting session renewal")
		return nil, c.refreshOnce(flightCtx)
	})
	if err != nil {
		c.logger.Warn("session renewal failed", "error", err, "shared", shared)
		c.failAuth()
		return err
	}

	c.logger.Debug("session renewed", "shared", shared)
	return nil
}

// refreshOnce performs the actual renewal call. Never recursive: the refresh
// endpoint goes through attempt, not do.
func (c *Client) refreshOnce(ctx context.Context) error {
	status, body, err := c.attempt(ctx, http.MethodPost, refreshPath, "application/json", nil)
	if err != nil {
		return &NetworkError{Err: err}
	}
	if status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if _, err := checkStatus(status, body); err != nil {
		return err
	}
	return nil
}

// failAuth fires the sign-out hook at most once per signed-in period.
func (c *Client) failAuth() {
	c.mu.Lock()
	already := c.signedOut
	c.signedOut = true
	hook := c.onSignOut
	c.mu.Unlock()

	if already || hook == nil {
		return
	}
	hook()
}

// resetAuth re-arms the sign-out guard after a successful login.
func (c *Client) resetAuth() {
	c.mu.Lock()
	c.signedOut = false
	c.mu.Unlock()
}

// checkStatus maps a completed response to the error taxonomy.
func checkStatus(status int, body []byte) ([]byte, error) {
	switch {
	case status >= 200 && status < 300:
		return body, nil
	case status == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, &ServerError{Status: status, Body: string(body)}
	}
}
