package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"asset-console/internal/model"
	"asset-console/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status, body := describeError(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func describeError(err error) (int, *model.APIError) {
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var (
		apiErr      *apierror.APIError
		inputErr    *model.InputError
		rejectErr   *model.ReorderRejectedError
		serverErr   *model.ServerRejectedError
		malformed   *model.MalformedHierarchyError
		transportErr *model.TransportError
	)

	switch {
	case errors.As(err, &apiErr):
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
		return apiErr.HTTPStatus, body
	case errors.As(err, &inputErr):
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Fields = inputErr.Fields
		return http.StatusBadRequest, body
	case errors.As(err, &rejectErr):
		body.Code = "REORDER_REJECTED"
		body.Message = rejectErr.Error()
		body.Details = string(rejectErr.Reason)
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, model.ErrConfirmationRequired):
		body.Code = "CONFIRMATION_REQUIRED"
		body.Message = "Repeat the request with confirm=true"
		return http.StatusPreconditionRequired, body
	case errors.As(err, &serverErr):
		// The backend's message is shown to the user verbatim.
		body.Code = "SERVER_REJECTED"
		body.Message = serverErr.Message
		if body.Message == "" {
			body.Message = http.StatusText(serverErr.Status)
		}
		if serverErr.Status >= 500 {
			return http.StatusBadGateway, body
		}
		return serverErr.Status, body
	case errors.As(err, &malformed):
		body.Code = "MALFORMED_HIERARCHY"
		body.Message = "Backend returned a malformed hierarchy"
		body.Details = malformed.Error()
		return http.StatusBadGateway, body
	case errors.As(err, &transportErr):
		body.Code = "BACKEND_UNAVAILABLE"
		body.Message = "Backend is unreachable"
		body.Details = transportErr.Error()
		return http.StatusServiceUnavailable, body
	case errors.Is(err, model.ErrHierarchyAbsent):
		body.Code = "HIERARCHY_ABSENT"
		body.Message = "No hierarchy is loaded"
		return http.StatusConflict, body
	case errors.Is(err, model.ErrNotFound):
		body.Code = "NOT_FOUND"
		body.Message = "Asset not found"
		return http.StatusNotFound, body
	case errors.Is(err, model.ErrInvalidInput):
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		return http.StatusBadRequest, body
	case errors.Is(err, model.ErrTokenExpired), errors.Is(err, model.ErrUnauthorized):
		body.Code = "UNAUTHORIZED"
		body.Message = "Backend session is not valid"
		return http.StatusUnauthorized, body
	case errors.Is(err, model.ErrForbidden):
		body.Code = "FORBIDDEN"
		body.Message = "Insufficient permissions"
		return http.StatusForbidden, body
	default:
		slog.Error("unhandled error in writeError", "error", err)
		return http.StatusInternalServerError, body
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierror.Wrap(err, "BAD_REQUEST", "invalid JSON body", http.StatusBadRequest)
	}
	return nil
}

// confirmed reads the explicit confirmation of a destructive call from the
// confirm query parameter or the X-Confirm header.
func confirmed(r *http.Request) bool {
	raw := r.URL.Query().Get("confirm")
	if raw == "" {
		raw = r.Header.Get("X-Confirm")
	}
	ok, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return ok
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}
