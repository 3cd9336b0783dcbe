package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-console/internal/backend/backendtest"
	"asset-console/internal/config"
	"asset-console/internal/model"
	"asset-console/internal/push"
)

var admin = backendtest.User{ID: 7, Username: "ada", Password: "secret1", Email: "ada@example.com", Role: "Admin"}

func testConfig(backend *backendtest.Server) *config.Config {
	return &config.Config{
		ServerPort:          "0",
		RequestTimeout:      5 * time.Second,
		CORSOrigins:         []string{"*"},
		RateLimitRPM:        6000,
		MaxUploadSize:       1 << 20,
		BackendURL:          backend.APIURL(),
		PushHubURL:          backend.HubURL(),
		BackendUsername:     admin.Username,
		BackendPassword:     admin.Password,
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
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()

	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(a.Logout)
	return a
}

func TestStartLogsInAndLoadsHierarchy(t *testing.T) {
	t.Parallel()

	backend := backendtest.New(t, admin)
	a := newApp(t, testConfig(backend))

	session, snap, err := a.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ada", session.User.Username)
	assert.Equal(t, model.RoleAdmin, session.User.Role)
	assert.True(t, session.Capabilities.MutateHierarchy)

	require.NoError(t, snap.Err)
	assert.Equal(t, model.HierarchyStatusReady, snap.Status)
	assert.Equal(t, 4, snap.Total)
	assert.True(t, snap.Tree.IsDescendant("3", "4"))
}

func TestStartRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	backend := backendtest.New(t, admin)
	cfg := testConfig(backend)
	cfg.BackendPassword = "wrong"
	a := newApp(t, cfg)

	_, _, err := a.Start(context.Background())
	require.Error(t, err)

	var rejected *model.ServerRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusUnauthorized, rejected.Status)
}

func TestHandlerMovesNodeAgainstBackend(t *testing.T) {
	t.Parallel()

	backend := backendtest.New(t, admin)
	a := newApp(t, testConfig(backend))

	session, _, err := a.Start(context.Background())
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler(session.Capabilities))
	t.Cleanup(srv.Close)

	move := func(target string, confirmed bool) *http.Response {
		body, err := json.Marshal(model.MoveNodeRequest{TargetID: target, Confirmed: confirmed})
		require.NoError(t, err)
		resp, err := http.Post(srv.URL+"/api/v1/assets/2/move", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusPreconditionRequired, move("4", false).StatusCode)
	assert.Empty(t, backend.Calls())

	resp := move("4", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"POST /AssetHierarchy/ReorderAsset/2/4"}, backend.Calls())

	assert.True(t, a.Hierarchy.Current().Tree.IsDescendant("4", "2"))

	cyclic := func() *http.Response {
		body, err := json.Marshal(model.MoveNodeRequest{TargetID: "2", Confirmed: true})
		require.NoError(t, err)
		resp, err := http.Post(srv.URL+"/api/v1/assets/3/move", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}()
	assert.Equal(t, http.StatusUnprocessableEntity, cyclic.StatusCode)
	assert.Len(t, backend.Calls(), 1)
}

func TestViewerHasNoMutationRoutes(t *testing.T) {
	t.Parallel()

	viewer := admin
	viewer.Role = "Viewer"
	backend := backendtest.New(t, viewer)
	a := newApp(t, testConfig(backend))

	session, _, err := a.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, session.Capabilities.MutateHierarchy)

	srv := httptest.NewServer(a.Handler(session.Capabilities))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/v1/assets/2/move", "application/json", bytes.NewReader([]byte(`{"targetId":"4","confirmed":true}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, backend.Calls())
}

func TestPushEventRefreshesProjection(t *testing.T) {
	t.Parallel()

	backend := backendtest.New(t, admin)
	a := newApp(t, testConfig(backend))

	_, snap, err := a.Start(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.debouncer.Run(ctx)
	go a.Notifications.Run(ctx)
	a.startPush(ctx)

	require.Eventually(t, func() bool {
		return a.push.State() == push.StateConnected && backend.HubClients() == 1
	}, 5*time.Second, 10*time.Millisecond)

	backend.Rename("2", "Pump1-B")
	backend.Broadcast("RecieveAssetNotification", map[string]any{
		"type":     "AssetUpdated",
		"userName": "grace",
		"oldName":  "Pump1",
		"newName":  "Pump1-B",
	})

	require.Eventually(t, func() bool {
		current := a.Hierarchy.Current()
		if current.Version <= snap.Version {
			return false
		}
		node, err := current.Tree.FindByID("2")
		return err == nil && node.Name == "Pump1-B"
	}, 5*time.Second, 10*time.Millisecond)

	log := a.Notifications.Log()
	require.Len(t, log.Items, 1)
	assert.Equal(t, model.NotificationAssetUpdated, log.Items[0].Type)
	assert.Equal(t, "grace", log.Items[0].Actor)
	assert.Equal(t, 1, log.UnreadCount)

	a.stopPush()
	assert.Equal(t, push.StateDisconnected, a.push.State())
}

func TestLogoutClearsSessionState(t *testing.T) {
	t.Parallel()

	backend := backendtest.New(t, admin)
	a := newApp(t, testConfig(backend))

	_, _, err := a.Start(context.Background())
	require.NoError(t, err)

	a.Logout()

	_, ok := a.Sessions.Current()
	assert.False(t, ok)
	assert.Equal(t, model.HierarchyStatusEmpty, a.Hierarchy.Current().Status)
	assert.Empty(t, a.Notifications.Log().Items)
}
