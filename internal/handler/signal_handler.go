package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"asset-console/internal/model"
	"asset-console/internal/service"
)

type SignalHandler struct {
	service *service.SignalService
}

func NewSignalHandler(service *service.SignalService) *SignalHandler {
	return &SignalHandler{service: service}
}

func (h *SignalHandler) List(w http.ResponseWriter, r *http.Request) {
	signals, err := h.service.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, signals, nil)
}

func (h *SignalHandler) Add(w http.ResponseWriter, r *http.Request) {
	var payload model.SignalRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	signals, err := h.service.Add(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, signals, nil)
}

func (h *SignalHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.SignalRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	signals, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "signalId"), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, signals, nil)
}

func (h *SignalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	signals, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "signalId"), confirmed(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, signals, nil)
}
