package model

import (
	"fmt"
	"strings"
	"time"
)

type NotificationType string

const (
	NotificationAssetAdded     NotificationType = "AssetAdded"
	NotificationAssetUpdated   NotificationType = "AssetUpdated"
	NotificationAssetDeleted   NotificationType = "AssetDeleted"
	NotificationAssetReordered NotificationType = "AssetReordered"
	NotificationSignalAdded    NotificationType = "SignalAdded"
	NotificationSignalUpdated  NotificationType = "SignalUpdated"
	NotificationSignalDeleted  NotificationType = "SignalDeleted"
	NotificationStatsComputed  NotificationType = "StatsComputed"
)

type EventCategory string

const (
	CategoryStructural EventCategory = "structural"
	CategorySignal     EventCategory = "signal"
	CategoryStats      EventCategory = "stats"
)

// Category reports which family a notification type belongs to. Unknown
// types are treated as structural so they still cause a refresh.
func (t NotificationType) Category() EventCategory {
	switch {
	case t == NotificationStatsComputed:
		return CategoryStats
	case strings.HasPrefix(string(t), "Signal"):
		return CategorySignal
	default:
		return CategoryStructural
	}
}

// TriggersRefresh reports whether the event changes what the hierarchy view
// shows.
func (c EventCategory) TriggersRefresh() bool {
	return c == CategoryStructural || c == CategorySignal
}

type NotificationSource string

const (
	SourcePush    NotificationSource = "push"
	SourceDurable NotificationSource = "durable"
)

// NotificationRecord is one entry of the session notification log.
type NotificationRecord struct {
	ID        string             `json:"id"`
	Type      NotificationType   `json:"type"`
	Actor     string             `json:"actor"`
	Message   string             `json:"message"`
	IsRead    bool               `json:"isRead"`
	CreatedAt time.Time          `json:"createdAt"`
	Source    NotificationSource `json:"source"`
}

// PushEvent is a decoded server-initiated notification.
type PushEvent struct {
	Type       NotificationType `json:"type"`
	Actor      string           `json:"actor"`
	AssetID    string           `json:"assetId,omitempty"`
	AssetName  string           `json:"assetName,omitempty"`
	SignalName string           `json:"signalName,omitempty"`
	OldName    string           `json:"oldName,omitempty"`
	NewName    string           `json:"newName,omitempty"`
	ParentName string           `json:"parentName,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	ReceivedAt time.Time        `json:"receivedAt"`
}

func (e PushEvent) Category() EventCategory {
	return e.Type.Category()
}

// Message renders the human readable line used for toasts and the log.
func (e PushEvent) Message() string {
	actor := e.Actor
	if actor == "" {
		actor = "someone"
	}

	switch e.Type {
	case NotificationAssetAdded:
		if e.ParentName != "" {
			return fmt.Sprintf("%s added asset %s under %s", actor, e.AssetName, e.ParentName)
		}
		return fmt.Sprintf("%s added asset %s", actor, e.AssetName)
	case NotificationAssetUpdated:
		if e.OldName != "" && e.NewName != "" {
			return fmt.Sprintf("%s renamed asset %s to %s", actor, e.OldName, e.NewName)
		}
		return fmt.Sprintf("%s updated asset %s", actor, e.AssetName)
	case NotificationAssetDeleted:
		return fmt.Sprintf("%s deleted asset %s", actor, e.AssetName)
	case NotificationAssetReordered:
		if e.ParentName != "" {
			return fmt.Sprintf("%s moved asset %s to %s", actor, e.AssetName, e.ParentName)
		}
		return fmt.Sprintf("%s moved asset %s", actor, e.AssetName)
	case NotificationSignalAdded:
		return fmt.Sprintf("%s added signal %s to %s", actor, e.SignalName, e.AssetName)
	case NotificationSignalUpdated:
		if e.OldName != "" && e.NewName != "" && e.OldName != e.NewName {
			return fmt.Sprintf("%s renamed signal %s to %s on %s", actor, e.OldName, e.NewName, e.AssetName)
		}
		return fmt.Sprintf("%s updated signal %s on %s", actor, e.SignalName, e.AssetName)
	case NotificationSignalDeleted:
		return fmt.Sprintf("%s deleted signal %s from %s", actor, e.SignalName, e.AssetName)
	case NotificationStatsComputed:
		if e.Detail != "" {
			return fmt.Sprintf("stats for %s: %s", e.AssetName, e.Detail)
		}
		return fmt.Sprintf("stats computed for %s", e.AssetName)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("%s: %s", actor, e.Detail)
		}
		return fmt.Sprintf("%s: %s", actor, e.Type)
	}
}

type NotificationLogData struct {
	Items       []NotificationRecord `json:"items"`
	UnreadCount int                  `json:"unreadCount"`
}
