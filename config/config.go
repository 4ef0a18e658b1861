package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the external configuration surface of the gateway.
// Everything comes from the environment (optionally a .env file).
type Config struct {
	Port string
	Host string

	// DatabaseURL backs the whatsmeow credential store. AppDatabaseURL is
	// the session/registration metadata DB; falls back to DatabaseURL.
	DatabaseURL    string
	AppDatabaseURL string

	CORSAllowOrigins []string

	RateLimitPerSecond int
	RateLimitBurst     int
	RateLimitWindowMin int

	// Reconnect policy knobs. Defaults reproduce the original behavior:
	// immediate, unbounded, restart even after a remote logout.
	ReconnectMaxAttempts        int
	ReconnectBackoff            time.Duration
	ReconnectRestartAfterLogout bool

	// DeviceName shows up as the linked-device name on the phone.
	DeviceName string
}

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "3334"),
		Host:           getEnv("HOST", "0.0.0.0"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AppDatabaseURL: getEnv("APP_DATABASE_URL", ""),

		CORSAllowOrigins: splitCSV(getEnv("CORS_ALLOW_ORIGINS", "*")),

		RateLimitPerSecond: GetEnvAsInt("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     GetEnvAsInt("RATE_LIMIT_BURST", 10),
		RateLimitWindowMin: GetEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 3),

		ReconnectMaxAttempts:        GetEnvAsInt("RECONNECT_MAX_ATTEMPTS", 0),
		ReconnectBackoff:            GetEnvAsDuration("RECONNECT_BACKOFF", 0),
		ReconnectRestartAfterLogout: GetEnvAsBool("RECONNECT_RESTART_AFTER_LOGOUT", true),

		DeviceName: getEnv("DEVICE_NAME", "MEDTOKEN Gateway"),
	}

	if cfg.AppDatabaseURL == "" {
		cfg.AppDatabaseURL = cfg.DatabaseURL
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func GetEnvAsInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func GetEnvAsBool(key string, fallback bool) bool {
	raw := strings.ToLower(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	return raw == "true" || raw == "1"
}

func GetEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
