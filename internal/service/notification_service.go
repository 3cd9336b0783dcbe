package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"asset-console/internal/event"
	"asset-console/internal/metrics"
	"asset-console/internal/model"
)

type NotificationBackend interface {
	ListNotifications(ctx context.Context, userID string) ([]model.NotificationRecord, error)
	MarkNotificationsRead(ctx context.Context, ids []string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	ClearNotifications(ctx context.Context, userID string) error
}

// NotificationService reconciles push events: it keeps the session
// notification log, raises toasts and schedules hierarchy refreshes. Events
// are processed one at a time by Run.
type NotificationService struct {
	backend  NotificationBackend
	bus      event.Bus
	schedule func(context.Context) bool
	metrics  *metrics.Collector
	logger   *slog.Logger
	queue    chan model.PushEvent

	mu        sync.RWMutex
	session   *model.SessionData
	transient []model.NotificationRecord
	durable   []model.NotificationRecord
}

// NewNotificationService wires the reconciler. schedule is asked for a
// hierarchy refresh after structural and signal events; it is normally a
// Debouncer's Trigger.
func NewNotificationService(backend NotificationBackend, bus event.Bus, schedule func(context.Context) bool, collector *metrics.Collector, logger *slog.Logger, buffer int) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}

	return &NotificationService{
		backend:  backend,
		bus:      bus,
		schedule: schedule,
		metrics:  collector,
		logger:   logger.With("component", "notifications"),
		queue:    make(chan model.PushEvent, buffer),
	}
}

// SetSession starts a session. Only sessions with the notification log
// capability keep a log.
func (s *NotificationService) SetSession(session model.SessionData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &session
	s.transient = nil
	s.durable = nil
}

// Reset forgets the session and its log, as on logout.
func (s *NotificationService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.transient = nil
	s.durable = nil
}

func (s *NotificationService) privileged() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil || !s.session.Capabilities.NotificationLog {
		return "", false
	}
	return s.session.User.ID, true
}

// Enqueue hands an event to the worker without blocking. It returns false
// when the queue is full and the event was dropped.
func (s *NotificationService) Enqueue(e model.PushEvent) bool {
	select {
	case s.queue <- e:
		return true
	default:
		s.logger.Warn("push event dropped, queue full", "type", e.Type)
		return false
	}
}

func (s *NotificationService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			s.process(ctx, e)
		}
	}
}

func (s *NotificationService) process(ctx context.Context, e model.PushEvent) {
	category := e.Category()
	s.metrics.PushEvent(string(category))
	_, privileged := s.privileged()

	if privileged {
		record := model.NotificationRecord{
			ID:        uuid.NewString(),
			Type:      e.Type,
			Actor:     e.Actor,
			Message:   e.Message(),
			CreatedAt: e.ReceivedAt,
			Source:    model.SourcePush,
		}
		s.mu.Lock()
		s.transient = append(s.transient, record)
		s.mu.Unlock()

		s.publish(event.New(event.TypeNotificationLogged, event.NotificationPayload{Record: record, UnreadCount: s.UnreadCount()}))
	}

	toast := event.ToastPayload{Kind: e.Type, Actor: e.Actor, Message: e.Message()}
	if !s.publish(event.New(event.TypeToast, toast)) {
		s.logger.Warn("toast not delivered", "type", e.Type)
	}

	if category.TriggersRefresh() && s.schedule != nil {
		s.schedule(ctx)
	}

	if privileged {
		if err := s.Reload(ctx); err != nil {
			s.logger.Warn("durable notification reload failed", "error", err)
		}
	}
}

func (s *NotificationService) publish(e event.Event) bool {
	if s.bus == nil {
		return true
	}
	return s.bus.Publish(e)
}

// Reload replaces the durable part of the log with the backend's copy.
func (s *NotificationService) Reload(ctx context.Context) error {
	userID, ok := s.privileged()
	if !ok {
		return nil
	}

	records, err := s.backend.ListNotifications(ctx, userID)
	if err != nil {
		return err
	}
	for i := range records {
		records[i].Source = model.SourceDurable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || s.session.User.ID != userID {
		return nil
	}
	s.durable = records
	return nil
}

// Log returns transient and durable entries merged, newest first.
// Non-privileged sessions always get an empty log.
func (s *NotificationService) Log() model.NotificationLogData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.NotificationRecord, 0, len(s.transient)+len(s.durable))
	if s.session == nil || !s.session.Capabilities.NotificationLog {
		return model.NotificationLogData{Items: items}
	}

	items = append(items, s.transient...)
	items = append(items, s.durable...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	unread := 0
	for _, item := range items {
		if !item.IsRead {
			unread++
		}
	}
	return model.NotificationLogData{Items: items, UnreadCount: unread}
}

func (s *NotificationService) UnreadCount() int {
	return s.Log().UnreadCount
}

// MarkRead marks entries read. Transient ids are handled locally, the rest
// go to the backend.
func (s *NotificationService) MarkRead(ctx context.Context, ids []string) error {
	if _, ok := s.privileged(); !ok {
		return model.ErrForbidden
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	s.mu.Lock()
	for i := range s.transient {
		if _, hit := wanted[s.transient[i].ID]; hit {
			s.transient[i].IsRead = true
			delete(wanted, s.transient[i].ID)
		}
	}
	s.mu.Unlock()

	if len(wanted) == 0 {
		return nil
	}

	remote := make([]string, 0, len(wanted))
	for _, id := range ids {
		if _, ok := wanted[id]; ok {
			remote = append(remote, id)
		}
	}
	if err := s.backend.MarkNotificationsRead(ctx, remote); err != nil {
		return err
	}
	return s.Reload(ctx)
}

func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	userID, ok := s.privileged()
	if !ok {
		return model.ErrForbidden
	}

	s.mu.Lock()
	for i := range s.transient {
		s.transient[i].IsRead = true
	}
	s.mu.Unlock()

	if err := s.backend.MarkAllNotificationsRead(ctx, userID); err != nil {
		return err
	}
	return s.Reload(ctx)
}

func (s *NotificationService) Clear(ctx context.Context) error {
	userID, ok := s.privileged()
	if !ok {
		return model.ErrForbidden
	}

	s.mu.Lock()
	s.transient = nil
	s.mu.Unlock()

	if err := s.backend.ClearNotifications(ctx, userID); err != nil {
		return err
	}
	return s.Reload(ctx)
}
