package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"asset-console/internal/model"
	"asset-console/internal/service"
)

type AssetHandler struct {
	service *service.MutationService
}

func NewAssetHandler(service *service.MutationService) *AssetHandler {
	return &AssetHandler{service: service}
}

func (h *AssetHandler) Add(w http.ResponseWriter, r *http.Request) {
	var payload model.AddAssetRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	snap, err := h.service.AddNode(r.Context(), payload.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, snap.View(""), nil)
}

func (h *AssetHandler) AddChild(w http.ResponseWriter, r *http.Request) {
	var payload model.AddChildRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	snap, err := h.service.AddChild(r.Context(), chi.URLParam(r, "id"), payload.ID, payload.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, snap.View(""), nil)
}

func (h *AssetHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var payload model.AddAssetRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	snap, err := h.service.RenameNode(r.Context(), chi.URLParam(r, "id"), payload.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, snap.View(""), nil)
}

func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.DeleteNode(r.Context(), chi.URLParam(r, "id"), confirmed(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, snap.View(""), nil)
}

// Move reparents the asset. The confirmation may come in the body or as
// confirm=true.
func (h *AssetHandler) Move(w http.ResponseWriter, r *http.Request) {
	var payload model.MoveNodeRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	snap, err := h.service.ReorderNode(r.Context(), chi.URLParam(r, "id"), payload.TargetID, payload.Confirmed || confirmed(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, snap.View(""), nil)
}

// Stats asks for signal averages. The result arrives later as a push
// notification.
func (h *AssetHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RequestStats(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusAccepted, model.MessageData{Message: "stats requested"}, nil)
}
