package middleware

import (
	"net/http"
	"time"
)

// Timeout bounds JSON API calls. It buffers the response, so it must not wrap
// the websocket or file transfer routes.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	message := `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"request timed out"}}`

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
