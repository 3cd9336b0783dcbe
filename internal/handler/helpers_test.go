package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"asset-console/internal/model"
	"asset-console/internal/service"
)

const scenarioPayload = `{"id":"1","name":"Plant","children":[
	{"id":"A","name":"Pump1","parentId":"1","children":[]},
	{"id":"B","name":"Valve2","parentId":"1","children":[
		{"id":"C","name":"Pump3","parentId":"B","children":[]}
	]}
]}`

// stubBackend serves the scenario tree and records every other call.
type stubBackend struct {
	mock.Mock
}

func (b *stubBackend) FetchHierarchy(context.Context) ([]byte, error) {
	return []byte(scenarioPayload), nil
}

func (b *stubBackend) TotalAssets(context.Context) (int, error) {
	return 4, nil
}

func (b *stubBackend) AddRootAsset(_ context.Context, name string) error {
	return b.Called(name).Error(0)
}

func (b *stubBackend) CreateNode(_ context.Context, node model.CreateNodeRequest) error {
	return b.Called(node).Error(0)
}

func (b *stubBackend) RenameNode(_ context.Context, id string, name string) error {
	return b.Called(id, name).Error(0)
}

func (b *stubBackend) DeleteNode(_ context.Context, id string) error {
	return b.Called(id).Error(0)
}

func (b *stubBackend) ReorderNode(_ context.Context, assetID string, newParentID string) error {
	return b.Called(assetID, newParentID).Error(0)
}

func (b *stubBackend) RequestStats(_ context.Context, assetID string) error {
	return b.Called(assetID).Error(0)
}

func (b *stubBackend) Download(_ context.Context, format string) (model.ExportFile, error) {
	args := b.Called(format)
	return args.Get(0).(model.ExportFile), args.Error(1)
}

func (b *stubBackend) Upload(_ context.Context, mode model.ImportMode, filename string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	return b.Called(mode, filename, string(data)).Error(0)
}

func (b *stubBackend) ImportLogs(context.Context) ([]model.ImportLogEntry, error) {
	args := b.Called()
	logs, _ := args.Get(0).([]model.ImportLogEntry)
	return logs, args.Error(1)
}

func (b *stubBackend) ListNotifications(_ context.Context, userID string) ([]model.NotificationRecord, error) {
	args := b.Called(userID)
	records, _ := args.Get(0).([]model.NotificationRecord)
	return records, args.Error(1)
}

func (b *stubBackend) MarkNotificationsRead(_ context.Context, ids []string) error {
	return b.Called(ids).Error(0)
}

func (b *stubBackend) MarkAllNotificationsRead(_ context.Context, userID string) error {
	return b.Called(userID).Error(0)
}

func (b *stubBackend) ClearNotifications(_ context.Context, userID string) error {
	return b.Called(userID).Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadedHierarchy(t *testing.T, backend *stubBackend) *service.HierarchyService {
	t.Helper()

	svc := service.NewHierarchyService(backend, nil, nil, quietLogger(), 0)
	require.Equal(t, model.HierarchyStatusReady, svc.Refresh(context.Background()).Status)
	return svc
}

// envelope mirrors model.APIResponse with a raw data field.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

func serve(t *testing.T, routes func(chi.Router), method string, target string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	r := chi.NewRouter()
	routes(r)

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

