// Package api is the outbound request pipeline to the store's backend API
// (authentication service and payment gateway share one origin). It owns the
// direct/proxied base URLs, attaches bearer tokens to authenticated calls,
// converts failures into explicitly-kinded errors and funnels 401 responses
// through a single invalidation pass.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Paths that must never carry a bearer token. Login and refresh authenticate
// with the shared application key instead; the status probe is anonymous.
var noBearerPaths = []string{"/login", "/jwt/refresh", "/status"}

// Paths authenticated with the shared application key.
var appKeyPaths = []string{"/login", "/jwt/refresh"}

// Client is the single pipeline for every call to the backend API.
type Client struct {
	directBase string
	proxyBase  string
	appKey     string

	mu       sync.Mutex
	useProxy bool

	// TokenSource supplies the current bearer token ("" when logged out).
	TokenSource func() string
	// OnUnauthorized runs (at most once per concurrent burst) when an
	// authenticated call comes back 401. The caller resubmits if needed;
	// the pipeline never retries on its own.
	OnUnauthorized func()
	// OnBaseSwitch observes proxy-mode changes, including the automatic
	// fallback after a connection failure on the direct base.
	OnBaseSwitch func(useProxy bool)

	handling401 atomic.Bool

	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

// New builds a Client for the given direct and proxied base URLs.
// The proxied base is active by default.
func New(directBase, proxyBase, appKey string) *Client {
	c := &Client{
		directBase: strings.TrimRight(directBase, "/"),
		proxyBase:  strings.TrimRight(proxyBase, "/"),
		appKey:     appKey,
		useProxy:   true,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "store-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("API circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// BaseURL returns the currently active API origin.
func (c *Client) BaseURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.useProxy {
		return c.proxyBase
	}
	return c.directBase
}

// UseProxy reports whether the proxied base is active.
func (c *Client) UseProxy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.useProxy
}

// SetUseProxy switches between the direct and proxied base URLs.
func (c *Client) SetUseProxy(useProxy bool) {
	c.mu.Lock()
	changed := c.useProxy != useProxy
	c.useProxy = useProxy
	c.mu.Unlock()

	slog.Info("API base switched", "base", c.BaseURL(), "proxy", useProxy)
	if changed && c.OnBaseSwitch != nil {
		c.OnBaseSwitch(useProxy)
	}
}

// fallbackToProxy reacts to a connection failure on the direct base by
// switching future requests to the proxy. The failed request is not retried.
func (c *Client) fallbackToProxy() {
	if !c.UseProxy() {
		slog.Warn("Connection failure on direct API base, falling back to proxy mode")
		c.SetUseProxy(true)
	}
}

func pathMatches(path string, list []string) bool {
	for _, p := range list {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Do performs an API call. body (when non-nil) is JSON-encoded; a 2xx
// response is decoded into out (when non-nil). Every failure is an *Error
// with an explicit kind.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	authenticated := !pathMatches(path, noBearerPaths)
	switch {
	case pathMatches(path, appKeyPaths):
		req.Header.Set("Authorization", c.appKey)
	case authenticated:
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.send(req, authenticated)
	if err != nil {
		// A cancelled or timed-out caller context says nothing about the
		// backend, so it must not flip the proxy mode.
		if ctx.Err() == nil {
			c.fallbackToProxy()
		}
		slog.Error("API request failed before reaching the server", "method", method, "path", path, "error", err)
		return connectionError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return connectionError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("decode response body: %w", err)
			}
		}
		return nil
	}

	apiErr := &Error{Status: resp.StatusCode, Message: messageFromBody(raw, resp.StatusCode)}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		apiErr.Kind = KindUnauthorized
		if authenticated {
			c.invalidateSession()
		}
	case resp.StatusCode == http.StatusForbidden:
		apiErr.Kind = KindForbidden
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusConflict:
		apiErr.Kind = KindRejected
	case resp.StatusCode >= 500:
		apiErr.Kind = KindServer
	default:
		apiErr.Kind = KindStatus
	}
	slog.Warn("API request rejected", "method", method, "path", path, "status", resp.StatusCode, "kind", apiErr.Kind.String())
	return apiErr
}

// send executes the request. Authenticated calls run through the circuit
// breaker; login, refresh and the status probe stay outside it so the user
// can always re-authenticate and diagnose connectivity.
func (c *Client) send(req *http.Request, authenticated bool) (*http.Response, error) {
	if !authenticated {
		return c.httpClient.Do(req)
	}
	return c.breaker.Execute(func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
}

// invalidateSession runs the OnUnauthorized hook, guaranteeing a single
// in-flight pass when several authenticated requests fail concurrently.
// It does not queue or retry the failed requests.
func (c *Client) invalidateSession() {
	if c.OnUnauthorized == nil {
		return
	}
	if !c.handling401.CompareAndSwap(false, true) {
		return
	}
	defer c.handling401.Store(false)
	slog.Info("401 received on an authenticated call, invalidating session")
	c.OnUnauthorized()
}

func (c *Client) token() string {
	if c.TokenSource == nil {
		return ""
	}
	return c.TokenSource()
}

// messageFromBody extracts the most specific human-readable message from a
// gateway error body: message, then responseMessage, then error.
func messageFromBody(raw []byte, status int) string {
	var body struct {
		Message         string `json:"message"`
		ResponseMessage string `json:"responseMessage"`
		Error           string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.ResponseMessage != "":
			return body.ResponseMessage
		case body.Error != "":
			return body.Error
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}
