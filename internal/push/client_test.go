package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-console/internal/model"
)

// fakeHub speaks enough of the hub protocol to drive the client. Each
// accepted connection receives the frames of one script entry, then the hub
// either closes the socket or holds it open.
type fakeHub struct {
	t       *testing.T
	mu      sync.Mutex
	scripts [][]string
	conns   int
	auth    []string
}

func (h *fakeHub) handler() http.Handler {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /Notification/negotiate", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(h.t, "1", r.URL.Query().Get("negotiateVersion"))
		h.mu.Lock()
		h.auth = append(h.auth, r.Header.Get("Authorization"))
		h.mu.Unlock()
		_, _ = w.Write([]byte(`{"connectionToken":"tok-1","availableTransports":[{"transport":"WebSockets"}]}`))
	})
	mux.HandleFunc("GET /Notification", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(h.t, "tok-1", r.URL.Query().Get("id"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, hello, err := conn.ReadMessage()
		if err != nil {
			return
		}
		assert.Equal(h.t, string(handshakeRequest), string(hello))

		h.mu.Lock()
		idx := h.conns
		h.conns++
		var script []string
		if idx < len(h.scripts) {
			script = h.scripts[idx]
		}
		h.mu.Unlock()

		_ = conn.WriteMessage(websocket.TextMessage, []byte("{}\x1e"))
		for _, frame := range script {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	return mux
}

type recorder struct {
	mu     sync.Mutex
	states []State
	events []model.PushEvent
}

func (r *recorder) onState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) onEvent(e model.PushEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() ([]State, []model.PushEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...), append([]model.PushEvent(nil), r.events...)
}

func startClient(t *testing.T, hub *fakeHub, rec *recorder) (*Client, func()) {
	t.Helper()

	srv := httptest.NewServer(hub.handler())
	httpClient := &http.Client{Transport: &http.Transport{}}

	client := New(Options{
		HubURL:          srv.URL + "/Notification",
		HTTPClient:      httpClient,
		Authorize:       func(r *http.Request) { r.Header.Set("Authorization", "Bearer t") },
		ReconnectDelays: []time.Duration{0, 10 * time.Millisecond},
		PingInterval:    20 * time.Millisecond,
		OnState:         rec.onState,
		OnEvent:         rec.onEvent,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Run(ctx)
	}()

	return client, func() {
		cancel()
		<-done
		srv.Close()
		httpClient.CloseIdleConnections()
	}
}

func TestClientDeliversEvents(t *testing.T) {
	hub := &fakeHub{t: t, scripts: [][]string{{
		`{"type":1,"target":"RecieveAssetNotification","arguments":[{"type":"AssetAdded","actor":"bob","assetName":"Pump9"}]}` + "\x1e" +
			`{"type":6}` + "\x1e" +
			`{"type":1,"target":"RecieveSignalNotification","arguments":["bob","added signal"]}` + "\x1e",
	}}}
	rec := &recorder{}
	client, stop := startClient(t, hub, rec)

	require.Eventually(t, func() bool {
		_, events := rec.snapshot()
		return len(events) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateConnected, client.State())

	stop()

	states, events := rec.snapshot()
	assert.Equal(t, model.NotificationAssetAdded, events[0].Type)
	assert.Equal(t, "Pump9", events[0].AssetName)
	assert.Equal(t, model.NotificationSignalUpdated, events[1].Type)
	assert.Equal(t, []State{StateConnecting, StateConnected, StateDisconnected}, states)
	assert.Equal(t, StateDisconnected, client.State())

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Equal(t, "Bearer t", hub.auth[0])
}

func TestClientReconnectsAfterServerClose(t *testing.T) {
	hub := &fakeHub{t: t, scripts: [][]string{
		{`{"type":7,"error":"server restarting"}` + "\x1e"},
		{`{"type":1,"target":"RecieveStatsNotification","arguments":[{"assetName":"Pump1","detail":"avg 3"}]}` + "\x1e"},
	}}
	rec := &recorder{}
	_, stop := startClient(t, hub, rec)

	require.Eventually(t, func() bool {
		_, events := rec.snapshot()
		return len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)
	stop()

	states, events := rec.snapshot()
	assert.Equal(t, "stats for Pump1: avg 3", events[0].Message())
	assert.Equal(t, []State{
		StateConnecting, StateConnected,
		StateDisconnected,
		StateConnecting, StateConnected,
		StateDisconnected,
	}, states)
}

func TestClientRetriesFailedNegotiate(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		http.Error(w, "hub offline", http.StatusServiceUnavailable)
	}))
	httpClient := &http.Client{Transport: &http.Transport{}}

	client := New(Options{
		HubURL:          srv.URL + "/Notification",
		HTTPClient:      httpClient,
		ReconnectDelays: []time.Duration{time.Millisecond},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	srv.Close()
	httpClient.CloseIdleConnections()
	assert.Equal(t, StateDisconnected, client.State())
}

func TestDelaySchedule(t *testing.T) {
	t.Parallel()

	client := New(Options{HubURL: "http://localhost/Notification"})
	got := make([]time.Duration, 0, 6)
	for attempt := range 6 {
		got = append(got, client.delay(attempt))
	}
	assert.Equal(t, []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second}, got)
}

func TestSocketURL(t *testing.T) {
	t.Parallel()

	client := New(Options{HubURL: "https://localhost:7242/Notification/"})
	got, err := client.socketURL("a b")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "wss://localhost:7242/Notification?id="))
	assert.Contains(t, got, "id=a+b")
}
