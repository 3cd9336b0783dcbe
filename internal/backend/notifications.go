package backend

import (
	"context"
	"net/http"

	"asset-console/internal/model"
)

type notificationWire struct {
	ID        flexID `json:"id"`
	Type      string `json:"type"`
	Actor     string `json:"actor"`
	UserName  string `json:"userName"`
	Message   string `json:"message"`
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt"`
}

func (w notificationWire) toModel() model.NotificationRecord {
	actor := w.Actor
	if actor == "" {
		actor = w.UserName
	}
	created, _ := parseTime(w.CreatedAt)
	return model.NotificationRecord{
		ID:        string(w.ID),
		Type:      model.NotificationType(w.Type),
		Actor:     actor,
		Message:   w.Message,
		IsRead:    w.IsRead,
		CreatedAt: created,
		Source:    model.SourceDurable,
	}
}

func notificationsPath(suffix string, userID string) string {
	return "/Notification/" + suffix + "/" + escape(userID)
}

// ListNotifications returns the durable notification log of one user.
func (c *Client) ListNotifications(ctx context.Context, userID string) ([]model.NotificationRecord, error) {
	const op = "list notifications"

	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: notificationsPath("user", userID)})
	if err != nil {
		return nil, err
	}

	var wire []notificationWire
	if len(resp.body) > 0 {
		if err := decodeJSON(op, resp.body, &wire); err != nil {
			return nil, err
		}
	}

	out := make([]model.NotificationRecord, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toModel())
	}
	return out, nil
}

func (c *Client) MarkNotificationsRead(ctx context.Context, ids []string) error {
	body := make([]any, 0, len(ids))
	for _, id := range ids {
		body = append(body, idValue(id))
	}

	req, err := jsonRequest("mark notifications read", http.MethodPut, "/Notification/mark-read", body)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := c.do(ctx, request{op: "mark all notifications read", method: http.MethodPut, path: notificationsPath("mark-all-read", userID)})
	return err
}

func (c *Client) ClearNotifications(ctx context.Context, userID string) error {
	_, err := c.do(ctx, request{op: "clear notifications", method: http.MethodDelete, path: notificationsPath("clear", userID)})
	return err
}
