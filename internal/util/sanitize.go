package util

import (
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"asset-console/pkg/apierror"
)

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

var windowsReservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename cleans a name that came from an upload form or a backend
// Content-Disposition header so it can be forwarded or written to disk. Any
// directory part is dropped.
func SanitizeFilename(name string) (string, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	trimmed = filepath.Base("/" + trimmed)
	if trimmed == "" || trimmed == "/" || trimmed == "." || trimmed == ".." {
		return "", apierror.New("INVALID_FILENAME", "filename cannot be empty", name, http.StatusBadRequest)
	}

	builder := strings.Builder{}
	builder.Grow(len(trimmed))
	for _, char := range trimmed {
		if unicode.IsControl(char) || unicode.Is(unicode.Cf, char) {
			continue
		}
		builder.WriteRune(char)
	}

	cleaned := strings.TrimSpace(invalidFilenameChars.ReplaceAllString(builder.String(), "_"))
	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" {
		return "", apierror.New("INVALID_FILENAME", "filename is invalid after sanitization", name, http.StatusBadRequest)
	}

	runes := []rune(cleaned)
	if len(runes) > 255 {
		cleaned = string(runes[:255])
	}

	stem := cleaned
	if idx := strings.Index(cleaned, "."); idx >= 0 {
		stem = cleaned[:idx]
	}
	if _, reserved := windowsReservedNames[strings.ToUpper(stem)]; reserved {
		return "", apierror.New("INVALID_FILENAME", "reserved filename is not allowed", cleaned, http.StatusBadRequest)
	}

	return cleaned, nil
}
