package service

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"asset-console/internal/model"
	"asset-console/internal/util"
)

type TransferBackend interface {
	Download(ctx context.Context, format string) (model.ExportFile, error)
	Upload(ctx context.Context, mode model.ImportMode, filename string, content io.Reader) error
	ImportLogs(ctx context.Context) ([]model.ImportLogEntry, error)
}

// TransferService handles bulk export and import of the hierarchy.
type TransferService struct {
	backend   TransferBackend
	hierarchy HierarchyReader
	maxUpload int64
}

func NewTransferService(backend TransferBackend, reader HierarchyReader, maxUpload int64) *TransferService {
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &TransferService{backend: backend, hierarchy: reader, maxUpload: maxUpload}
}

func (s *TransferService) Export(ctx context.Context, rawFormat string) (model.ExportFile, error) {
	format, ok := util.ExportFormat(rawFormat)
	if !ok {
		return model.ExportFile{}, &model.InputError{Fields: []model.FieldError{{Field: "format", Rule: "must be one of: json xml"}}}
	}

	file, err := s.backend.Download(ctx, format)
	if err != nil {
		return model.ExportFile{}, err
	}

	name, err := util.SanitizeFilename(file.Filename)
	if err != nil {
		name = "assets." + format
	}
	file.Filename = name
	if file.ContentType == "" || file.ContentType == "application/octet-stream" {
		file.ContentType = util.ExportContentType(format)
	}
	return file, nil
}

// Import uploads a JSON hierarchy file. Replace swaps the backend tree; merge
// grafts onto it. A successful import refreshes the local projection.
func (s *TransferService) Import(ctx context.Context, mode model.ImportMode, filename string, content io.Reader) (Snapshot, error) {
	if mode != model.ImportModeReplace && mode != model.ImportModeMerge {
		return Snapshot{}, &model.InputError{Fields: []model.FieldError{{Field: "mode", Rule: "must be one of: replace merge"}}}
	}

	name, err := util.SanitizeFilename(filename)
	if err != nil {
		return Snapshot{}, err
	}

	data, err := io.ReadAll(io.LimitReader(content, s.maxUpload+1))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read import file: %w", err)
	}
	if int64(len(data)) > s.maxUpload {
		return Snapshot{}, &model.InputError{Fields: []model.FieldError{{Field: "file", Rule: fmt.Sprintf("must be at most %d bytes", s.maxUpload)}}}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Snapshot{}, &model.InputError{Fields: []model.FieldError{{Field: "file", Rule: "is required"}}}
	}
	if !util.IsJSONUpload(name, data) {
		return Snapshot{}, &model.InputError{Fields: []model.FieldError{{Field: "file", Rule: "must be a JSON document"}}}
	}

	if err := s.backend.Upload(ctx, mode, name, bytes.NewReader(data)); err != nil {
		return Snapshot{}, err
	}
	return s.hierarchy.Refresh(ctx), nil
}

func (s *TransferService) ImportLogs(ctx context.Context) ([]model.ImportLogEntry, error) {
	return s.backend.ImportLogs(ctx)
}
