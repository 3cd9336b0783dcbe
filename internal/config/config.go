package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration
	CORSOrigins        []string
	RateLimitRPM       int
	MaxUploadSize      int64
	LogLevel           string

	BackendURL         string
	PushHubURL         string
	BackendUsername    string
	BackendPassword    string
	BackendToken       string
	BackendTimeout     time.Duration
	BackendRPS         float64
	BackendBurst       int
	BackendInsecureTLS bool

	BreakerFailureRatio float64
	BreakerMinRequests  uint32
	BreakerOpenTimeout  time.Duration

	RefreshDebounce     time.Duration
	PushReconnectDelays []time.Duration
	PushEventBuffer     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8090"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 45*time.Second),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 600),
		MaxUploadSize:      getInt64("MAX_UPLOAD_SIZE", 20*1024*1024),
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		BackendURL:         strings.TrimRight(getEnv("BACKEND_URL", "https://localhost:7242/api"), "/"),
		PushHubURL:         strings.TrimRight(getEnv("PUSH_HUB_URL", "https://localhost:7242/Notification"), "/"),
		BackendUsername:    strings.TrimSpace(os.Getenv("BACKEND_USERNAME")),
		BackendPassword:    os.Getenv("BACKEND_PASSWORD"),
		BackendToken:       strings.TrimSpace(os.Getenv("BACKEND_TOKEN")),
		BackendTimeout:     getDuration("BACKEND_TIMEOUT", 30*time.Second),
		BackendRPS:         getFloat("BACKEND_RPS", 20),
		BackendBurst:       getInt("BACKEND_BURST", 10),
		BackendInsecureTLS: getBool("BACKEND_INSECURE_TLS", false),

		BreakerFailureRatio: getFloat("BREAKER_FAILURE_RATIO", 0.8),
		BreakerMinRequests:  uint32(getInt("BREAKER_MIN_REQUESTS", 5)),
		BreakerOpenTimeout:  getDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		RefreshDebounce:     getDuration("REFRESH_DEBOUNCE", 750*time.Millisecond),
		PushReconnectDelays: getDurations("PUSH_RECONNECT_DELAYS", []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}),
		PushEventBuffer:     getInt("PUSH_EVENT_BUFFER", 64),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if err := validateURL("BACKEND_URL", c.BackendURL); err != nil {
		return err
	}

	if err := validateURL("PUSH_HUB_URL", c.PushHubURL); err != nil {
		return err
	}

	if c.BackendToken == "" && (c.BackendUsername == "" || c.BackendPassword == "") {
		return fmt.Errorf("either BACKEND_TOKEN or BACKEND_USERNAME and BACKEND_PASSWORD are required")
	}

	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}

	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1]")
	}

	if c.RefreshDebounce < 0 {
		return fmt.Errorf("REFRESH_DEBOUNCE cannot be negative")
	}

	if len(c.PushReconnectDelays) == 0 {
		return fmt.Errorf("PUSH_RECONNECT_DELAYS cannot be empty")
	}

	if c.PushEventBuffer <= 0 {
		return fmt.Errorf("PUSH_EVENT_BUFFER must be positive")
	}

	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validateURL(key string, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", key)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", key)
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDurations(key string, fallback []time.Duration) []time.Duration {
	parts := splitCSV(os.Getenv(key))
	if len(parts) == 0 {
		return fallback
	}

	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		v, err := time.ParseDuration(part)
		if err != nil || v < 0 {
			return fallback
		}
		out = append(out, v)
	}

	return out
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
