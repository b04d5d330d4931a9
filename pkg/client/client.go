package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vexaai/vexa/pkg/auth"
	"github.com/vexaai/vexa/pkg/errors"
	"github.com/vexaai/vexa/pkg/logging"
)

const (
	defaultTimeout = 30 * time.Second

	// Client-side pacing: generous for an interactive client, but keeps a
	// runaway caller from hammering the API.
	defaultRateLimit = rate.Limit(10)
	defaultBurstSize = 20

	maxErrorBodyBytes int64 = 64 << 10
)

// DefaultTransport returns an http.Transport with tuned connection pool settings.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// Client issues authenticated requests to the Vexa API. Every call borrows
// the credential from the auth store read-only; a 401 from any endpoint
// clears the store and fires the expiry callback, with no retry.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	store       auth.Store
	limiter     *rate.Limiter
	logger      *logging.Logger
	expiredMu   sync.Mutex
	authExpired func()
}

// Options configures optional client behavior.
type Options struct {
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    *logging.Logger
	// OnAuthExpired runs after a 401 has cleared the auth store, once per
	// failing response. The presentation layer uses it to redirect to login.
	OnAuthExpired func()
}

// New creates a client rooted at baseURL.
func New(baseURL string, store auth.Store, opts Options) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	// url.Parse treats scheme-less hosts as paths; prefix http:// for convenience.
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid base url")
	}
	if parsed.Host == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "base url missing host").
			WithContext("base_url", baseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = DefaultTransport()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		store:       store,
		limiter:     rate.NewLimiter(defaultRateLimit, defaultBurstSize),
		logger:      logger,
		authExpired: opts.OnAuthExpired,
	}, nil
}

// apiURL joins p onto the configured base path.
func (c *Client) apiURL(p string) string {
	u := *c.baseURL
	u.Path = path.Join(strings.TrimSuffix(u.Path, "/"), p)
	return u.String()
}

// newRequest builds a request with the standard headers: JSON content type,
// a correlation ID, and the bearer credential when one is present.
func (c *Client) newRequest(ctx context.Context, method, p string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL(p), body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTransport, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.setCommonHeaders(req)
	return req, nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.store != nil {
		if _, token := c.store.GetAuth(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// doJSON sends a request with an optional JSON payload and decodes a JSON
// response into out (when out is non-nil).
func (c *Client) doJSON(ctx context.Context, method, p string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "encode request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, p, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// do executes the request and decodes the response. All non-2xx statuses
// are turned into structured errors; a 401 additionally triggers the
// global session-expiry policy.
func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return errors.Wrap(err, errors.ErrCodeTransport, "rate limiter interrupted")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(logging.CategoryTransport, "request_failed", req.Method+" "+req.URL.Path, map[string]any{
			"error": err.Error(),
		})
		return errors.Wrap(err, errors.ErrCodeTransport, fmt.Sprintf("%s %s", req.Method, req.URL.Path)).
			WithUserMessage("Could not reach the Vexa server")
	}
	defer resp.Body.Close()

	c.logger.Debug(logging.CategoryTransport, "request_done", req.Method+" "+req.URL.Path, map[string]any{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode == http.StatusUnauthorized {
		return c.handleAuthExpired(req, resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseError(req, resp)
	}

	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeServer, fmt.Sprintf("decode %s %s response", req.Method, req.URL.Path)).
			WithHTTPStatus(resp.StatusCode)
	}
	return nil
}

// handleAuthExpired implements the cross-cutting 401 policy: clear the
// session store and hand control back to the presentation layer. Fires at
// most once per failing response; never retries.
func (c *Client) handleAuthExpired(req *http.Request, resp *http.Response) error {
	detail := decodeErrorDetail(resp.Body)

	if c.store != nil {
		if err := c.store.ClearAuth(); err != nil {
			c.logger.Error(logging.CategoryAuth, "clear_failed", "clearing expired session", map[string]any{
				"error": err.Error(),
			})
		}
	}
	c.logger.Warn(logging.CategoryAuth, "session_expired", req.Method+" "+req.URL.Path, nil)

	c.expiredMu.Lock()
	cb := c.authExpired
	c.expiredMu.Unlock()
	if cb != nil {
		cb()
	}

	msg := detail
	if msg == "" {
		msg = "authentication expired"
	}
	return errors.New(errors.ErrCodeAuthExpired, msg).
		WithHTTPStatus(http.StatusUnauthorized).
		WithUserMessage("Your session has expired. Please log in again.")
}

// errorEnvelope matches the server's error body. FastAPI-style services
// use "detail"; "message" and "error" are accepted as fallbacks.
type errorEnvelope struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func decodeErrorDetail(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if len(bytes.TrimSpace(data)) == 0 {
		return ""
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil {
		for _, msg := range []string{envelope.Detail, envelope.Message, envelope.Error} {
			if strings.TrimSpace(msg) != "" {
				return strings.TrimSpace(msg)
			}
		}
	}
	return strings.TrimSpace(string(data))
}

// parseError maps a non-2xx, non-401 response to a structured error with
// the server-provided message when one is available.
func (c *Client) parseError(req *http.Request, resp *http.Response) error {
	detail := decodeErrorDetail(resp.Body)

	code := errors.ErrCodeServer
	userMsg := "The Vexa server reported an error"
	switch {
	case resp.StatusCode == http.StatusNotFound:
		code = errors.ErrCodeNotFound
		userMsg = "Not found"
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		code = errors.ErrCodeValidation
		userMsg = "The request was rejected"
	}
	if detail != "" {
		userMsg = detail
	}

	msg := detail
	if msg == "" {
		msg = resp.Status
	}

	c.logger.Warn(logging.CategoryTransport, "request_rejected", req.Method+" "+req.URL.Path, map[string]any{
		"status": resp.StatusCode,
		"detail": detail,
	})

	return errors.New(code, fmt.Sprintf("%s %s: %s", req.Method, req.URL.Path, msg)).
		WithHTTPStatus(resp.StatusCode).
		WithUserMessage(userMsg)
}

// SetOnAuthExpired replaces the expiry callback. Used by the orchestration
// layer after construction when wiring is circular.
func (c *Client) SetOnAuthExpired(cb func()) {
	c.expiredMu.Lock()
	c.authExpired = cb
	c.expiredMu.Unlock()
}
