package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"asset-console/internal/model"
)

// Hub message framing: JSON records terminated by the ASCII record separator.
const recordSeparator = 0x1e

const (
	messageInvocation = 1
	messagePing       = 6
	messageClose      = 7
)

const (
	targetAsset  = "recieveassetnotification"
	targetSignal = "recievesignalnotification"
	targetStats  = "recievestatsnotification"
)

var handshakeRequest = append([]byte(`{"protocol":"json","version":1}`), recordSeparator)

var pingFrame = append([]byte(`{"type":6}`), recordSeparator)

type envelope struct {
	Type      int               `json:"type"`
	Target    string            `json:"target"`
	Arguments []json.RawMessage `json:"arguments"`
	Error     string            `json:"error"`
}

type handshakeResponse struct {
	Error string `json:"error"`
}

// splitFrames returns the non-empty records of one websocket message.
func splitFrames(data []byte) [][]byte {
	parts := bytes.Split(data, []byte{recordSeparator})
	out := make([][]byte, 0, len(parts))
	for _, part := range parts {
		if len(bytes.TrimSpace(part)) > 0 {
			out = append(out, part)
		}
	}
	return out
}

// payload is the union of fields the backend sends for asset, signal and
// stats notifications.
type payload struct {
	Type       string          `json:"type"`
	Actor      string          `json:"actor"`
	User       string          `json:"user"`
	UserName   string          `json:"userName"`
	AssetID    json.RawMessage `json:"assetId"`
	AssetName  string          `json:"assetName"`
	Name       string          `json:"name"`
	SignalName string          `json:"signalName"`
	OldName    string          `json:"oldName"`
	NewName    string          `json:"newName"`
	ParentName string          `json:"parentName"`
	Detail     string          `json:"detail"`
	Message    string          `json:"message"`
	Stats      json.RawMessage `json:"stats"`
}

func defaultType(target string) (model.NotificationType, bool) {
	normalized := strings.ToLower(strings.Replace(target, "Receive", "Recieve", 1))
	switch normalized {
	case targetAsset:
		return model.NotificationAssetUpdated, true
	case targetSignal:
		return model.NotificationSignalUpdated, true
	case targetStats:
		return model.NotificationStatsComputed, true
	default:
		return "", false
	}
}

// decodeInvocation turns one hub invocation into a PushEvent. It accepts a
// structured object argument, a JSON string holding that object, or the
// legacy (user, message) string pair.
func decodeInvocation(target string, args []json.RawMessage, receivedAt time.Time) (model.PushEvent, error) {
	fallback, ok := defaultType(target)
	if !ok {
		return model.PushEvent{}, fmt.Errorf("unknown target %q", target)
	}
	if len(args) == 0 {
		return model.PushEvent{}, fmt.Errorf("%s: no arguments", target)
	}

	first := bytes.TrimSpace(args[0])
	if len(first) > 0 && first[0] == '"' {
		var s string
		if err := json.Unmarshal(first, &s); err != nil {
			return model.PushEvent{}, fmt.Errorf("%s: %w", target, err)
		}
		trimmed := strings.TrimSpace(s)
		if !strings.HasPrefix(trimmed, "{") {
			event := model.PushEvent{Type: fallback, Actor: s, ReceivedAt: receivedAt}
			if len(args) > 1 {
				var detail string
				if err := json.Unmarshal(args[1], &detail); err == nil {
					event.Detail = detail
				} else {
					event.Detail = string(args[1])
				}
			}
			return event, nil
		}
		first = []byte(trimmed)
	}

	var p payload
	if err := json.Unmarshal(first, &p); err != nil {
		return model.PushEvent{}, fmt.Errorf("%s: %w", target, err)
	}

	event := model.PushEvent{
		Type:       model.NotificationType(p.Type),
		Actor:      firstNonEmpty(p.Actor, p.UserName, p.User),
		AssetID:    strings.Trim(string(bytes.TrimSpace(p.AssetID)), `"`),
		AssetName:  firstNonEmpty(p.AssetName, p.Name),
		SignalName: p.SignalName,
		OldName:    p.OldName,
		NewName:    p.NewName,
		ParentName: p.ParentName,
		Detail:     firstNonEmpty(p.Detail, p.Message),
		ReceivedAt: receivedAt,
	}
	if event.Type == "" {
		event.Type = fallback
	}
	if event.AssetID == "null" {
		event.AssetID = ""
	}
	if event.Detail == "" && len(p.Stats) > 0 && string(p.Stats) != "null" {
		var compact bytes.Buffer
		if err := json.Compact(&compact, p.Stats); err == nil {
			event.Detail = compact.String()
		}
	}
	return event, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
