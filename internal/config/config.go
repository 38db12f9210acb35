package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	DeployEnv   string

	OTLPEndpoint string
	OTLPInsecure bool

	SessionTTL time.Duration

	KioskLat             float64
	KioskLng             float64
	ProximityMaxDistance float64

	NotifyPollInterval time.Duration
	NotifyBatchSize    int
	NotifyMaxAttempts  int
	PushProvider       string

	RealtimePollInterval time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int
}

func Load() Config {
	// Optional dotenv file, same as the Express predecessor.
	_ = godotenv.Load()

	return Config{
		Port:        readString("PORT", "3000"),
		DatabaseURL: os.Getenv("DB_DSN"),
		DeployEnv:   readString("DEPLOY_ENV", "development"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure: os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",

		SessionTTL: readDurationHours("SESSION_TTL_HOURS", 24),

		KioskLat:             readFloat("KIOSK_LAT", 0),
		KioskLng:             readFloat("KIOSK_LNG", 0),
		ProximityMaxDistance: readFloat("PROXIMITY_MAX_DISTANCE_M", 0),

		NotifyPollInterval: readDurationSeconds("NOTIFY_POLL_INTERVAL_SECONDS", 5),
		NotifyBatchSize:    readInt("NOTIFY_BATCH_SIZE", 50),
		NotifyMaxAttempts:  readInt("NOTIFY_MAX_ATTEMPTS", 3),
		PushProvider:       os.Getenv("NOTIFY_PUSH_PROVIDER"),

		RealtimePollInterval: readDurationSeconds("REALTIME_POLL_INTERVAL_SECONDS", 1),

		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
	}
}

func readString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readDurationHours(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Hour
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}
