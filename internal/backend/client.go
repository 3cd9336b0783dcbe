// Package backend is the HTTP client for the asset-hierarchy REST service.
// Every call goes through one rate limiter and one circuit breaker, and every
// failure comes back as a *model.TransportError or *model.ServerRejectedError.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"asset-console/internal/model"
)

const maxResponseBytes = 64 << 20

// Credentials attach session authentication to an outgoing request.
type Credentials interface {
	Apply(req *http.Request)
}

// BearerToken sends a static Authorization header.
type BearerToken string

func (t BearerToken) Apply(req *http.Request) {
	if t != "" {
		req.Header.Set("Authorization", "Bearer "+string(t))
	}
}

// Observer receives one call per finished request. outcome is "ok",
// "rejected" or "transport".
type Observer func(op string, outcome string, elapsed time.Duration)

type BreakerSettings struct {
	FailureRatio float64
	MinRequests  uint32
	OpenTimeout  time.Duration
}

type Options struct {
	BaseURL     string
	Timeout     time.Duration
	RPS         float64
	Burst       int
	InsecureTLS bool
	Breaker     BreakerSettings
	Logger      *slog.Logger
	Observer    Observer

	// HTTPClient replaces the default transport. Its Jar is kept if set.
	HTTPClient *http.Client
}

type Client struct {
	baseURL  string
	http     *http.Client
	jar      *sessionJar
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
	observer Observer

	mu    sync.RWMutex
	creds Credentials
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if _, err := url.Parse(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid backend url %q", opts.BaseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureTLS {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local dev certificates
		}
		httpClient = &http.Client{Transport: transport, Timeout: opts.Timeout}
	}
	var jar *sessionJar
	if httpClient.Jar == nil {
		jar = &sessionJar{}
		if err := jar.Reset(); err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:  base,
		http:     httpClient,
		jar:      jar,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger.With("component", "backend"),
		observer: opts.Observer,
	}
	c.breaker = newBreaker(opts.Breaker, c.logger)
	return c, nil
}

func newBreaker(settings BreakerSettings, logger *slog.Logger) *gobreaker.CircuitBreaker {
	ratio := settings.FailureRatio
	if ratio <= 0 {
		ratio = 0.8
	}
	minRequests := settings.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	openTimeout := settings.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: countsAsSuccess,
	})
}

// countsAsSuccess keeps caller cancellations and 4xx answers from tripping
// the breaker: only an unreachable or failing backend counts.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var rejected *model.ServerRejectedError
	if errors.As(err, &rejected) {
		return rejected.Status < http.StatusInternalServerError
	}
	return false
}

// SetCredentials replaces the credentials used for subsequent requests.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

// ResetSession drops credentials and cookies.
func (c *Client) ResetSession() {
	c.mu.Lock()
	c.creds = nil
	c.mu.Unlock()

	if c.jar != nil {
		if err := c.jar.Reset(); err != nil {
			c.logger.Warn("cookie jar reset failed", "error", err)
		}
	}
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authorize applies the current session credentials and cookies to a request
// built outside the client, such as the push negotiate call.
func (c *Client) Authorize(req *http.Request) {
	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()

	if creds != nil {
		creds.Apply(req)
	}
	for _, cookie := range c.http.Jar.Cookies(req.URL) {
		req.AddCookie(cookie)
	}
}

// HTTPClient exposes the underlying client so the push transport shares TLS
// settings and cookies.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func jsonRequest(op string, method string, path string, payload any) (request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("%s: encode body: %w", op, err)
	}
	return request{op: op, method: method, path: path, body: body, contentType: "application/json"}, nil
}

func (c *Client) do(ctx context.Context, req request) (*response, error) {
	started := time.Now()
	resp, err := c.execute(ctx, req)
	c.observe(req.op, err, time.Since(started))
	return resp, err
}

func (c *Client) execute(ctx context.Context, req request) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &model.TransportError{Op: req.op, Err: err}
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &model.TransportError{Op: req.op, Err: err}
		}
		return nil, err
	}

	return out.(*response), nil
}

func (c *Client) roundTrip(ctx context.Context, req request) (*response, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, &model.TransportError{Op: req.op, Err: err}
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json, */*")

	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()
	if creds != nil {
		creds.Apply(httpReq)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &model.TransportError{Op: req.op, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &model.TransportError{Op: req.op, Err: fmt.Errorf("read body: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logger.Debug("backend rejected request", "op", req.op, "status", httpResp.StatusCode)
		return nil, &model.ServerRejectedError{Status: httpResp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}, nil
}

func (c *Client) observe(op string, err error, elapsed time.Duration) {
	if c.observer == nil {
		return
	}

	outcome := "ok"
	switch {
	case errors.Is(err, model.ErrTransportFailure):
		outcome = "transport"
	case err != nil:
		outcome = "rejected"
	}
	c.observer(op, outcome, elapsed)
}

func decodeJSON(op string, data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return &model.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// sessionJar is a cookie jar that can be emptied on logout while requests
// are in flight.
type sessionJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func (j *sessionJar) Reset() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
	return nil
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
