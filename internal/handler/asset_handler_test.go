package handler

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"asset-console/internal/model"
	"asset-console/internal/service"
)

func assetRoutes(h *AssetHandler) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/assets", h.Add)
		r.Post("/assets/{id}/children", h.AddChild)
		r.Put("/assets/{id}", h.Rename)
		r.Delete("/assets/{id}", h.Delete)
		r.Post("/assets/{id}/move", h.Move)
		r.Post("/assets/{id}/stats", h.Stats)
	}
}

func newAssetHandler(t *testing.T) (*AssetHandler, *stubBackend) {
	t.Helper()

	backend := &stubBackend{}
	mutations := service.NewMutationService(backend, loadedHierarchy(t, backend), nil, quietLogger())
	return NewAssetHandler(mutations), backend
}

func TestAssetHandler_Delete(t *testing.T) {
	t.Parallel()

	h, backend := newAssetHandler(t)

	rec, env := serve(t, assetRoutes(h), http.MethodDelete, "/assets/A", nil)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	assert.Equal(t, "CONFIRMATION_REQUIRED", env.Error.Code)
	backend.AssertNotCalled(t, "DeleteNode", mock.Anything)

	backend.On("DeleteNode", "A").Return(nil).Once()
	rec, env = serve(t, assetRoutes(h), http.MethodDelete, "/assets/A?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.HierarchyStatusReady, decodeData[model.HierarchyViewData](t, env).Status)
	backend.AssertExpectations(t)
}

func TestAssetHandler_Move(t *testing.T) {
	t.Parallel()

	h, backend := newAssetHandler(t)

	rec, env := serve(t, assetRoutes(h), http.MethodPost, "/assets/B/move", model.MoveNodeRequest{TargetID: "C", Confirmed: true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "REORDER_REJECTED", env.Error.Code)
	assert.Equal(t, string(model.RejectCyclicMove), env.Error.Details)

	backend.On("ReorderNode", "C", "A").Return(&model.ServerRejectedError{Status: 409, Message: "Asset is locked"}).Once()
	rec, env = serve(t, assetRoutes(h), http.MethodPost, "/assets/C/move", model.MoveNodeRequest{TargetID: "A", Confirmed: true})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SERVER_REJECTED", env.Error.Code)
	assert.Equal(t, "Asset is locked", env.Error.Message)
	backend.AssertExpectations(t)
}

func TestAssetHandler_Add(t *testing.T) {
	t.Parallel()

	h, backend := newAssetHandler(t)

	rec, env := serve(t, assetRoutes(h), http.MethodPost, "/assets", model.AddAssetRequest{Name: "Pump#9"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	require.Len(t, env.Error.Fields, 1)
	assert.Equal(t, "name", env.Error.Fields[0].Field)

	backend.On("CreateNode", model.CreateNodeRequest{ID: "D", Name: "Motor", ParentID: "B"}).Return(nil).Once()
	rec, _ = serve(t, assetRoutes(h), http.MethodPost, "/assets/B/children", model.AddChildRequest{ID: "D", Name: "Motor"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	backend.On("RequestStats", "C").Return(nil).Once()
	rec, _ = serve(t, assetRoutes(h), http.MethodPost, "/assets/C/stats", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	backend.AssertExpectations(t)
}
