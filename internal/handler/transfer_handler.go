package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"asset-console/internal/model"
	"asset-console/internal/service"
	"asset-console/pkg/apierror"
)

// multipartOverhead leaves room for part headers around the file.
const multipartOverhead = 64 << 10

type TransferHandler struct {
	service       *service.TransferService
	maxUploadSize int64
}

func NewTransferHandler(service *service.TransferService, maxUploadSize int64) *TransferHandler {
	return &TransferHandler{service: service, maxUploadSize: maxUploadSize}
}

func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	file, err := h.service.Export(r.Context(), chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

// Import streams the multipart field "file" to the backend. ?mode= picks
// replace (default) or merge.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	mode := model.ImportMode(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("mode"))))
	if mode == "" {
		mode = model.ImportModeReplace
	}

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid multipart body", "", http.StatusBadRequest))
		return
	}

	for {
		part, nextErr := reader.NextPart()
		if nextErr == io.EOF {
			break
		}
		if nextErr != nil {
			if isPayloadTooLarge(nextErr) {
				writeError(w, errPayloadTooLarge)
				return
			}
			writeError(w, apierror.New("BAD_REQUEST", "invalid multipart stream", nextErr.Error(), http.StatusBadRequest))
			return
		}

		if part.FormName() != "file" || strings.TrimSpace(part.FileName()) == "" {
			_ = part.Close()
			continue
		}

		snap, importErr := h.service.Import(r.Context(), mode, part.FileName(), part)
		_ = part.Close()
		if isPayloadTooLarge(importErr) {
			writeError(w, errPayloadTooLarge)
			return
		}
		if importErr != nil {
			writeError(w, importErr)
			return
		}
		writeSuccess(w, http.StatusOK, snap.View(""), nil)
		return
	}

	writeError(w, apierror.New("BAD_REQUEST", "multipart field \"file\" is required", "file", http.StatusBadRequest))
}

func (h *TransferHandler) ImportLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.ImportLogs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, logs, nil)
}

var errPayloadTooLarge = apierror.New("PAYLOAD_TOO_LARGE", "request body exceeds MAX_UPLOAD_SIZE", "MAX_UPLOAD_SIZE", http.StatusRequestEntityTooLarge)

func isPayloadTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
