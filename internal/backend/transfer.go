package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sort"

	"asset-console/internal/model"
)

// Download fetches the hierarchy serialized in the given format.
func (c *Client) Download(ctx context.Context, format string) (model.ExportFile, error) {
	resp, err := c.do(ctx, request{op: "download hierarchy", method: http.MethodGet, path: "/AssetHierarchy/DownloadFile/" + escape(format)})
	if err != nil {
		return model.ExportFile{}, err
	}

	file := model.ExportFile{
		Filename:    "assets." + format,
		ContentType: resp.header.Get("Content-Type"),
		Data:        resp.body,
	}
	if _, params, err := mime.ParseMediaType(resp.header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		file.Filename = params["filename"]
	}
	if file.ContentType == "" {
		file.ContentType = "application/octet-stream"
	}
	return file, nil
}

// Upload sends an import file. Replace swaps the whole hierarchy, merge grafts
// the file onto the existing tree.
func (c *Client) Upload(ctx context.Context, mode model.ImportMode, filename string, content io.Reader) error {
	path := "/AssetHierarchy/Upload"
	if mode == model.ImportModeMerge {
		path = "/AssetHierarchy/UploadExistingTree"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}

	_, err = c.do(ctx, request{
		op:          "upload " + string(mode),
		method:      http.MethodPost,
		path:        path,
		body:        buf.Bytes(),
		contentType: writer.FormDataContentType(),
	})
	return err
}

// ImportLogs returns the import audit trail newest first. The backend keys
// entries by timestamp; entries whose key is not a timestamp sort last.
func (c *Client) ImportLogs(ctx context.Context) ([]model.ImportLogEntry, error) {
	const op = "import logs"

	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/AssetHierarchy/ImportFileLogs"})
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if len(bytes.TrimSpace(resp.body)) > 0 {
		if err := decodeJSON(op, resp.body, &raw); err != nil {
			return nil, err
		}
	}

	out := make([]model.ImportLogEntry, 0, len(raw))
	for key, value := range raw {
		var details any
		if err := json.Unmarshal(value, &details); err != nil {
			details = string(value)
		}
		ts, _ := parseTime(key)
		out = append(out, model.ImportLogEntry{Timestamp: ts, RawTime: key, Details: details})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].RawTime > out[j].RawTime
	})
	return out, nil
}
