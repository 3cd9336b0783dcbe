package handler

import (
	"net/http"

	"asset-console/internal/model"
	"asset-console/internal/service"
)

type NotificationHandler struct {
	service *service.NotificationService
}

func NewNotificationHandler(service *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List pages through the merged log, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := max(parseIntOrDefault(query.Get("page"), 1), 1)
	limit := min(max(parseIntOrDefault(query.Get("limit"), 50), 1), 500)

	log := h.service.Log()
	total := len(log.Items)

	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	log.Items = log.Items[start:end]

	writeSuccess(w, http.StatusOK, log, &model.Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var payload model.MarkReadRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if len(payload.IDs) == 0 {
		writeError(w, &model.InputError{Fields: []model.FieldError{{Field: "ids", Rule: "is required"}}})
		return
	}

	if err := h.service.MarkRead(r.Context(), payload.IDs); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, h.service.Log(), nil)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkAllRead(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, h.service.Log(), nil)
}

func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, h.service.Log(), nil)
}
