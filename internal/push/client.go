// Package push keeps the connection to the backend notification hub alive
// and turns hub invocations into model.PushEvent values.
package push

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"asset-console/internal/model"
)

const (
	defaultPingInterval     = 15 * time.Second
	defaultServerTimeout    = 30 * time.Second
	defaultHandshakeTimeout = 15 * time.Second
	writeWait               = 10 * time.Second
	maxMessageSize          = 1 << 20
)

// DefaultReconnectDelays is the retry schedule after a dropped connection.
// The last delay repeats.
var DefaultReconnectDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

var errServerClosed = errors.New("hub closed the connection")

type Options struct {
	HubURL           string
	HTTPClient       *http.Client
	Authorize        func(*http.Request)
	ReconnectDelays  []time.Duration
	PingInterval     time.Duration
	ServerTimeout    time.Duration
	HandshakeTimeout time.Duration
	InsecureTLS      bool
	Logger           *slog.Logger

	// OnState and OnEvent run on the connection goroutine and must not block.
	OnState func(State)
	OnEvent func(model.PushEvent)
}

type Client struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	state State
}

func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if len(opts.ReconnectDelays) == 0 {
		opts.ReconnectDelays = DefaultReconnectDelays
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.ServerTimeout <= 0 {
		opts.ServerTimeout = defaultServerTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		opts:   opts,
		logger: logger.With("component", "push"),
		now:    time.Now,
		state:  StateDisconnected,
	}
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(next State) {
	c.mu.Lock()
	if c.state == next {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = next
	c.mu.Unlock()

	c.logger.Info("push state changed", "from", prev, "to", next)
	if c.opts.OnState != nil {
		c.opts.OnState(next)
	}
}

// Run connects and reconnects until ctx is cancelled. It always returns nil
// after cancellation; connection failures are retried, never returned.
func (c *Client) Run(ctx context.Context) error {
	defer c.setState(StateDisconnected)

	attempt := 0
	for {
		c.setState(StateConnecting)
		conn, err := c.connect(ctx)
		if err == nil {
			attempt = 0
			c.setState(StateConnected)
			err = c.serve(ctx, conn)
		}

		if ctx.Err() != nil {
			return nil
		}

		c.setState(StateDisconnected)
		delay := c.delay(attempt)
		attempt++
		c.logger.Warn("push connection lost", "error", err, "retry_in", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (c *Client) delay(attempt int) time.Duration {
	delays := c.opts.ReconnectDelays
	if attempt >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempt]
}

type negotiateResponse struct {
	ConnectionToken string `json:"connectionToken"`
	ConnectionID    string `json:"connectionId"`
	Error           string `json:"error"`
}

func (c *Client) negotiate(ctx context.Context) (string, error) {
	endpoint := strings.TrimRight(c.opts.HubURL, "/") + "/negotiate?negotiateVersion=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("negotiate: %w", err)
	}
	if c.opts.Authorize != nil {
		c.opts.Authorize(req)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return "", &model.TransportError{Op: "negotiate", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMessageSize))
	if err != nil {
		return "", &model.TransportError{Op: "negotiate", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &model.ServerRejectedError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var out negotiateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("negotiate: decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("negotiate: %s", out.Error)
	}

	token := out.ConnectionToken
	if token == "" {
		token = out.ConnectionID
	}
	if token == "" {
		return "", errors.New("negotiate: no connection token")
	}
	return token, nil
}

func (c *Client) socketURL(token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.opts.HubURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse hub url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("id", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	token, err := c.negotiate(ctx)
	if err != nil {
		return nil, err
	}

	target, err := c.socketURL(token)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.opts.Authorize != nil {
		probe, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.HubURL, nil)
		if err == nil {
			c.opts.Authorize(probe)
			for _, key := range []string{"Authorization", "Cookie"} {
				if v := probe.Header.Get(key); v != "" {
					header.Set(key, v)
				}
			}
		}
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.opts.HandshakeTimeout,
	}
	if c.opts.InsecureTLS {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local dev certificates
	}

	conn, _, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		return nil, &model.TransportError{Op: "dial hub", Err: err}
	}

	if err := c.handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) handshake(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, handshakeRequest); err != nil {
		return &model.TransportError{Op: "hub handshake", Err: err}
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.opts.HandshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return &model.TransportError{Op: "hub handshake", Err: err}
	}

	frames := splitFrames(data)
	if len(frames) == 0 {
		return errors.New("hub handshake: empty response")
	}
	var resp handshakeResponse
	if err := json.Unmarshal(frames[0], &resp); err != nil {
		return fmt.Errorf("hub handshake: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("hub handshake: %s", resp.Error)
	}

	for _, frame := range frames[1:] {
		if err := c.handleFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

// serve reads frames until the connection drops or ctx is cancelled, while a
// second goroutine keeps the server side alive with pings.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.keepAlive(ctx, conn, done)
	}()

	err := c.readLoop(conn)
	close(done)
	conn.Close()
	wg.Wait()
	return err
}

func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, pingFrame); err != nil {
				c.logger.Debug("push ping failed", "error", err)
				conn.Close()
				return
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.ServerTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return &model.TransportError{Op: "read hub", Err: err}
		}

		for _, frame := range splitFrames(data) {
			if err := c.handleFrame(frame); err != nil {
				return err
			}
		}
	}
}

func (c *Client) handleFrame(frame []byte) error {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Warn("push frame ignored", "error", err)
		return nil
	}

	switch env.Type {
	case messageInvocation:
		event, err := decodeInvocation(env.Target, env.Arguments, c.now())
		if err != nil {
			c.logger.Warn("push invocation ignored", "target", env.Target, "error", err)
			return nil
		}
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(event)
		}
	case messagePing:
	case messageClose:
		if env.Error != "" {
			return fmt.Errorf("%w: %s", errServerClosed, env.Error)
		}
		return errServerClosed
	default:
		c.logger.Debug("push frame type ignored", "type", env.Type)
	}
	return nil
}
