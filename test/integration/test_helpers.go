//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"asset-console/internal/app"
	"asset-console/internal/backend/backendtest"
	"asset-console/internal/config"
)

var admin = backendtest.User{ID: 7, Username: "ada", Password: "secret1", Email: "ada@example.com", Role: "Admin"}

type console struct {
	baseURL string
	backend *backendtest.Server
	app     *app.App
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// startConsole serves the full console against a fresh fake backend until
// the test ends.
func startConsole(t *testing.T, user backendtest.User) *console {
	t.Helper()

	backend := backendtest.New(t, user)
	port := freePort(t)

	cfg := &config.Config{
		ServerPort:          strconv.Itoa(port),
		ServerReadTimeout:   5 * time.Second,
		ServerWriteTimeout:  10 * time.Second,
		ServerIdleTimeout:   30 * time.Second,
		RequestTimeout:      5 * time.Second,
		CORSOrigins:         []string{"*"},
		RateLimitRPM:        6000,
		MaxUploadSize:       1 << 20,
		BackendURL:          backend.APIURL(),
		PushHubURL:          backend.HubURL(),
		BackendUsername:     user.Username,
		BackendPassword:     user.Password,
		BackendTimeout:      5 * time.Second,
		BackendRPS:          1000,
		BackendBurst:        100,
		BreakerFailureRatio: 1,
		BreakerMinRequests:  100,
		BreakerOpenTimeout:  time.Second,
		RefreshDebounce:     10 * time.Millisecond,
		PushReconnectDelays: []time.Duration{0, 50 * time.Millisecond},
		PushEventBuffer:     16,
	}

	a, err := app.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("console did not shut down")
		}
	})

	c := &console{baseURL: "http://127.0.0.1:" + strconv.Itoa(port), backend: backend, app: a}
	require.Eventually(t, func() bool {
		resp, err := http.Get(c.baseURL + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		return backend.HubClients() == 1
	}, 5*time.Second, 20*time.Millisecond)

	return c
}

func (c *console) do(t *testing.T, method string, path string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}
