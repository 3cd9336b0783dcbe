package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"asset-console/internal/backend"
	"asset-console/internal/event"
	"asset-console/internal/model"
)

const scenarioPayload = `{"id":"1","name":"Plant","children":[
	{"id":"A","name":"Pump1","parentId":"1","children":[]},
	{"id":"B","name":"Valve2","parentId":"1","children":[
		{"id":"C","name":"Pump3","parentId":"B","children":[]}
	]}
]}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeHierarchyBackend serves a fixed payload. When gate is set every fetch
// blocks until the gate is closed.
type fakeHierarchyBackend struct {
	mu       sync.Mutex
	payload  []byte
	total    int
	fetchErr error
	countErr error
	gate     chan struct{}
	fetches  atomic.Int32
}

func (f *fakeHierarchyBackend) set(payload string, total int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payload = []byte(payload)
	f.total = total
	f.fetchErr = err
}

func (f *fakeHierarchyBackend) FetchHierarchy(ctx context.Context) ([]byte, error) {
	f.fetches.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payload, f.fetchErr
}

func (f *fakeHierarchyBackend) TotalAssets(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total, f.countErr
}

func newLoadedHierarchy(t *testing.T) (*HierarchyService, *fakeHierarchyBackend) {
	t.Helper()

	fake := &fakeHierarchyBackend{}
	fake.set(scenarioPayload, 4, nil)
	svc := NewHierarchyService(fake, nil, nil, quietLogger(), 0)
	snap := svc.Refresh(context.Background())
	require.Equal(t, model.HierarchyStatusReady, snap.Status)
	return svc, fake
}

// collect drains bus events of the given type into a channel.
func collect(t *testing.T, bus event.Bus, types ...event.Type) <-chan event.Event {
	t.Helper()

	events, unsubscribe := bus.Subscribe()
	out := make(chan event.Event, 100)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range events {
			for _, tp := range types {
				if e.Type == tp {
					out <- e
				}
			}
		}
	}()
	t.Cleanup(func() {
		unsubscribe()
		<-done
	})
	return out
}

type mockMutationBackend struct {
	mock.Mock
}

func (m *mockMutationBackend) AddRootAsset(ctx context.Context, name string) error {
	return m.Called(name).Error(0)
}

func (m *mockMutationBackend) CreateNode(ctx context.Context, node model.CreateNodeRequest) error {
	return m.Called(node).Error(0)
}

func (m *mockMutationBackend) RenameNode(ctx context.Context, id string, name string) error {
	return m.Called(id, name).Error(0)
}

func (m *mockMutationBackend) DeleteNode(ctx context.Context, id string) error {
	return m.Called(id).Error(0)
}

func (m *mockMutationBackend) ReorderNode(ctx context.Context, assetID string, newParentID string) error {
	return m.Called(assetID, newParentID).Error(0)
}

func (m *mockMutationBackend) RequestStats(ctx context.Context, assetID string) error {
	return m.Called(assetID).Error(0)
}

type mockNotificationBackend struct {
	mock.Mock
}

func (m *mockNotificationBackend) ListNotifications(ctx context.Context, userID string) ([]model.NotificationRecord, error) {
	args := m.Called(userID)
	records, _ := args.Get(0).([]model.NotificationRecord)
	return records, args.Error(1)
}

func (m *mockNotificationBackend) MarkNotificationsRead(ctx context.Context, ids []string) error {
	return m.Called(ids).Error(0)
}

func (m *mockNotificationBackend) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return m.Called(userID).Error(0)
}

func (m *mockNotificationBackend) ClearNotifications(ctx context.Context, userID string) error {
	return m.Called(userID).Error(0)
}

type mockSignalBackend struct {
	mock.Mock
}

func (m *mockSignalBackend) ListSignals(ctx context.Context, assetID string) ([]model.Signal, error) {
	args := m.Called(assetID)
	signals, _ := args.Get(0).([]model.Signal)
	return signals, args.Error(1)
}

func (m *mockSignalBackend) AddSignal(ctx context.Context, assetID string, in model.SignalRequest) error {
	return m.Called(assetID, in).Error(0)
}

func (m *mockSignalBackend) UpdateSignal(ctx context.Context, assetID string, signalID string, in model.SignalRequest) error {
	return m.Called(assetID, signalID, in).Error(0)
}

func (m *mockSignalBackend) DeleteSignal(ctx context.Context, assetID string, signalID string) error {
	return m.Called(assetID, signalID).Error(0)
}

type mockTransferBackend struct {
	mock.Mock
}

func (m *mockTransferBackend) Download(ctx context.Context, format string) (model.ExportFile, error) {
	args := m.Called(format)
	return args.Get(0).(model.ExportFile), args.Error(1)
}

func (m *mockTransferBackend) Upload(ctx context.Context, mode model.ImportMode, filename string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	return m.Called(mode, filename, string(data)).Error(0)
}

func (m *mockTransferBackend) ImportLogs(ctx context.Context) ([]model.ImportLogEntry, error) {
	args := m.Called()
	logs, _ := args.Get(0).([]model.ImportLogEntry)
	return logs, args.Error(1)
}

type mockSessionBackend struct {
	mock.Mock
}

func (m *mockSessionBackend) Login(ctx context.Context, in model.LoginRequest) error {
	return m.Called(in).Error(0)
}

func (m *mockSessionBackend) UserInfo(ctx context.Context) (model.User, error) {
	args := m.Called()
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockSessionBackend) Register(ctx context.Context, in model.RegisterRequest) error {
	return m.Called(in).Error(0)
}

func (m *mockSessionBackend) SetCredentials(creds backend.Credentials) {
	m.Called(creds)
}

func (m *mockSessionBackend) ResetSession() {
	m.Called()
}
