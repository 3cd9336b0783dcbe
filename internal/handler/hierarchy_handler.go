package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"asset-console/internal/model"
	"asset-console/internal/service"
)

type HierarchyHandler struct {
	service *service.HierarchyService
}

func NewHierarchyHandler(service *service.HierarchyService) *HierarchyHandler {
	return &HierarchyHandler{service: service}
}

// View answers the current projection filtered by ?q=. The term is used
// as typed.
func (h *HierarchyHandler) View(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.service.View(r.URL.Query().Get("q")), nil)
}

// Refresh re-reads the backend. A failed refresh still answers 200 with an
// errored projection.
func (h *HierarchyHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Refresh(r.Context())
	writeSuccess(w, http.StatusOK, snap.View(r.URL.Query().Get("q")), nil)
}

func (h *HierarchyHandler) Node(w http.ResponseWriter, r *http.Request) {
	node, err := h.service.Node(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, node, nil)
}

func (h *HierarchyHandler) ValidateMove(w http.ResponseWriter, r *http.Request) {
	var payload model.ValidateMoveRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	err := h.service.ValidateMove(payload.DraggedID, payload.TargetID)
	var rejected *model.ReorderRejectedError
	switch {
	case err == nil:
		writeSuccess(w, http.StatusOK, model.ValidateMoveData{OK: true}, nil)
	case errors.As(err, &rejected):
		writeSuccess(w, http.StatusOK, model.ValidateMoveData{Reason: rejected.Reason}, nil)
	default:
		writeError(w, err)
	}
}
