package event

import (
	"time"

	"github.com/google/uuid"

	"asset-console/internal/model"
)

type Type string

const (
	TypeToast              Type = "toast"
	TypeHierarchyRefreshed Type = "hierarchy.refreshed"
	TypeHierarchyErrored   Type = "hierarchy.errored"
	TypeNotificationLogged Type = "notification.logged"
	TypePushState          Type = "push.state"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
}

func New(t Type, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

type ToastPayload struct {
	Kind    model.NotificationType `json:"kind"`
	Actor   string                 `json:"actor,omitempty"`
	Message string                 `json:"message"`
}

type HierarchyPayload struct {
	Status  model.HierarchyStatus `json:"status"`
	Version uint64                `json:"version"`
	Total   int                   `json:"total"`
	Error   string                `json:"error,omitempty"`
}

type NotificationPayload struct {
	Record      model.NotificationRecord `json:"record"`
	UnreadCount int                      `json:"unreadCount"`
}

type PushStatePayload struct {
	State string `json:"state"`
}

type Bus interface {
	// Publish never blocks; it reports false when at least one subscriber
	// missed the event.
	Publish(e Event) bool
	Subscribe() (<-chan Event, func())
}
