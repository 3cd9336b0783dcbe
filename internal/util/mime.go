package util

import (
	"bytes"
	"path/filepath"
	"strings"
)

var exportContentTypes = map[string]string{
	"json": "application/json",
	"xml":  "application/xml",
}

// ExportFormat normalizes a requested download format. ok is false for
// formats the backend cannot produce.
func ExportFormat(raw string) (string, bool) {
	format := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
	_, ok := exportContentTypes[format]
	return format, ok
}

func ExportContentType(format string) string {
	if ct, ok := exportContentTypes[format]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsJSONUpload reports whether an import file looks like a JSON document,
// by extension or, failing that, by its first non-space byte.
func IsJSONUpload(filename string, head []byte) bool {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return true
	}

	trimmed := bytes.TrimLeft(head, " \t\r\n\ufeff")
	trimmed = bytes.TrimPrefix(trimmed, []byte("\xef\xbb\xbf"))
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
