package handler

import (
	"net/http"

	"asset-console/internal/model"
	"asset-console/internal/push"
	"asset-console/internal/service"
)

type SessionHandler struct {
	sessions  *service.SessionService
	pushState func() push.State
}

func NewSessionHandler(sessions *service.SessionService, pushState func() push.State) *SessionHandler {
	return &SessionHandler{sessions: sessions, pushState: pushState}
}

func (h *SessionHandler) Current(w http.ResponseWriter, _ *http.Request) {
	session, ok := h.sessions.Current()
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}
	writeSuccess(w, http.StatusOK, session, nil)
}

type pushStateData struct {
	State push.State `json:"state"`
}

func (h *SessionHandler) PushState(w http.ResponseWriter, _ *http.Request) {
	state := push.StateDisconnected
	if h.pushState != nil {
		state = h.pushState()
	}
	writeSuccess(w, http.StatusOK, pushStateData{State: state}, nil)
}
