package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"asset-console/internal/event"
	"asset-console/internal/model"
)

var (
	adminSession  = model.SessionData{User: model.User{ID: "u1", Username: "admin", Role: model.RoleAdmin}, Capabilities: model.CapabilitiesFor(model.RoleAdmin)}
	viewerSession = model.SessionData{User: model.User{ID: "u2", Username: "viewer", Role: model.RoleViewer}, Capabilities: model.CapabilitiesFor(model.RoleViewer)}
)

type reconcilerHarness struct {
	svc       *NotificationService
	backend   *mockNotificationBackend
	bus       *event.InMemoryBus
	timers    *manualTimers
	refreshes *atomic.Int32
}

func newReconciler(t *testing.T, session model.SessionData) *reconcilerHarness {
	t.Helper()

	h := &reconcilerHarness{
		backend:   &mockNotificationBackend{},
		bus:       event.NewBus(quietLogger()),
		timers:    newManualTimers(),
		refreshes: &atomic.Int32{},
	}

	debouncer := NewDebouncer(750*time.Millisecond, func(context.Context) { h.refreshes.Add(1) })
	debouncer.after = h.timers.after
	h.svc = NewNotificationService(h.backend, h.bus, debouncer.Trigger, nil, quietLogger(), 8)
	h.svc.SetSession(session)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { debouncer.Run(ctx); done <- struct{}{} }()
	go func() { h.svc.Run(ctx); done <- struct{}{} }()
	t.Cleanup(func() {
		cancel()
		<-done
		<-done
	})
	return h
}

func deleted(name string, at time.Time) model.PushEvent {
	return model.PushEvent{Type: model.NotificationAssetDeleted, Actor: "bob", AssetName: name, ReceivedAt: at}
}

func TestNotificationService_PrivilegedBurst(t *testing.T) {
	t.Parallel()

	h := newReconciler(t, adminSession)
	toasts := collect(t, h.bus, event.TypeToast)
	durable := []model.NotificationRecord{{ID: "9", Type: model.NotificationSignalAdded, Message: "older", IsRead: true, CreatedAt: time.Unix(100, 0)}}
	var reloads atomic.Int32
	h.backend.On("ListNotifications", "u1").Return(durable, nil).Run(func(mock.Arguments) { reloads.Add(1) })

	base := time.Unix(1_000, 0)
	require.True(t, h.svc.Enqueue(deleted("Pump1", base)))

	first := <-toasts
	assert.Equal(t, event.ToastPayload{Kind: model.NotificationAssetDeleted, Actor: "bob", Message: "bob deleted asset Pump1"}, first.Payload)
	require.Eventually(t, func() bool { return len(h.svc.Log().Items) == 2 }, time.Second, time.Millisecond)

	log := h.svc.Log()
	assert.Equal(t, "bob deleted asset Pump1", log.Items[0].Message)
	assert.Equal(t, model.SourcePush, log.Items[0].Source)
	assert.Equal(t, model.SourceDurable, log.Items[1].Source)
	assert.Equal(t, 1, log.UnreadCount)

	require.True(t, h.svc.Enqueue(deleted("Pump2", base.Add(time.Second))))
	require.True(t, h.svc.Enqueue(model.PushEvent{Type: model.NotificationSignalAdded, Actor: "bob", SignalName: "Temp", AssetName: "Pump3", ReceivedAt: base.Add(2 * time.Second)}))
	<-toasts
	<-toasts

	var last chan time.Time
	for range 3 {
		last = h.timers.next(t)
	}
	assert.Zero(t, h.refreshes.Load())
	last <- time.Now()
	require.Eventually(t, func() bool { return h.refreshes.Load() == 1 }, time.Second, time.Millisecond)

	require.Eventually(t, func() bool { return len(h.svc.Log().Items) == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, "bob added signal Temp to Pump3", h.svc.Log().Items[0].Message)
	require.Eventually(t, func() bool { return reloads.Load() == 3 }, time.Second, time.Millisecond)
}

func TestNotificationService_ViewerKeepsNoLog(t *testing.T) {
	t.Parallel()

	h := newReconciler(t, viewerSession)
	toasts := collect(t, h.bus, event.TypeToast)
	logged := collect(t, h.bus, event.TypeNotificationLogged)

	require.True(t, h.svc.Enqueue(deleted("Pump1", time.Now())))
	<-toasts
	h.timers.next(t) <- time.Now()
	require.Eventually(t, func() bool { return h.refreshes.Load() == 1 }, time.Second, time.Millisecond)

	assert.Empty(t, h.svc.Log().Items)
	assert.Zero(t, h.svc.UnreadCount())
	assert.Empty(t, logged)
	h.backend.AssertNotCalled(t, "ListNotifications", mock.Anything)
	assert.ErrorIs(t, h.svc.MarkAllRead(context.Background()), model.ErrForbidden)
}

func TestNotificationService_StatsDoNotRefresh(t *testing.T) {
	t.Parallel()

	h := newReconciler(t, viewerSession)
	toasts := collect(t, h.bus, event.TypeToast)

	require.True(t, h.svc.Enqueue(model.PushEvent{Type: model.NotificationStatsComputed, AssetName: "Pump1", Detail: "avg 4.2"}))
	toast := <-toasts
	assert.Equal(t, "stats for Pump1: avg 4.2", toast.Payload.(event.ToastPayload).Message)

	select {
	case <-h.timers.created:
		t.Fatal("stats event scheduled a refresh")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestNotificationService_LogOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &mockNotificationBackend{}
	svc := NewNotificationService(backend, nil, nil, nil, quietLogger(), 4)
	svc.SetSession(adminSession)

	backend.On("ListNotifications", "u1").Return([]model.NotificationRecord{{ID: "7", Message: "durable", CreatedAt: time.Unix(50, 0)}}, nil)
	svc.process(ctx, deleted("Pump1", time.Unix(60, 0)))

	log := svc.Log()
	require.Len(t, log.Items, 2)
	transientID := log.Items[0].ID
	assert.Equal(t, 2, log.UnreadCount)

	t.Run("mark read splits transient and durable ids", func(t *testing.T) {
		backend.On("MarkNotificationsRead", []string{"7"}).Return(nil).Once()
		require.NoError(t, svc.MarkRead(ctx, []string{transientID, "7"}))

		log := svc.Log()
		assert.True(t, log.Items[0].IsRead)
	})

	t.Run("transient only ids stay local", func(t *testing.T) {
		require.NoError(t, svc.MarkRead(ctx, []string{transientID}))
		backend.AssertNumberOfCalls(t, "MarkNotificationsRead", 1)
	})

	t.Run("mark all read", func(t *testing.T) {
		backend.On("MarkAllNotificationsRead", "u1").Return(nil).Once()
		require.NoError(t, svc.MarkAllRead(ctx))
	})

	t.Run("clear failure is returned", func(t *testing.T) {
		backend.On("ClearNotifications", "u1").Return(&model.ServerRejectedError{Status: 500, Message: "boom"}).Once()
		err := svc.Clear(ctx)
		assert.ErrorIs(t, err, model.ErrServerRejected)
		assert.Len(t, svc.Log().Items, 1)
	})

	t.Run("reset forgets everything", func(t *testing.T) {
		svc.Reset()
		assert.Empty(t, svc.Log().Items)
		assert.ErrorIs(t, svc.Clear(ctx), model.ErrForbidden)
	})
}

func TestNotificationService_ReloadFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	backend := &mockNotificationBackend{}
	backend.On("ListNotifications", "u1").Return(nil, errors.New("offline"))
	bus := event.NewBus(quietLogger())
	toasts := collect(t, bus, event.TypeToast)
	svc := NewNotificationService(backend, bus, nil, nil, quietLogger(), 4)
	svc.SetSession(adminSession)

	svc.process(context.Background(), deleted("Pump1", time.Now()))

	<-toasts
	assert.Len(t, svc.Log().Items, 1)
}

func TestNotificationService_EnqueueDropsWhenFull(t *testing.T) {
	t.Parallel()

	svc := NewNotificationService(&mockNotificationBackend{}, nil, nil, nil, quietLogger(), 1)
	assert.True(t, svc.Enqueue(deleted("A", time.Now())))
	assert.False(t, svc.Enqueue(deleted("B", time.Now())))
}
