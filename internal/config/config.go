package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins []string

	// Remote Content Gateway (Apps Script web app).
	GatewayURL       string
	GatewayListStyle string
	GatewayTimeout   time.Duration

	// Durable storage: "redis", "postgres" or "memory".
	StorageDriver string
	RedisURL      string
	DatabaseURL   string
	StorageTTL    time.Duration

	DeviceTokenSecret string
	DeviceTokenTTL    time.Duration
	WorkspaceIdleTTL  time.Duration

	RateLimitSubmit      time.Duration
	GalleryMaxImageBytes int

	MeiliSearchHost string
	MeiliMasterKey  string

	// Empty disables the notice profile upload.
	CloudinaryURL          string
	CloudinaryUploadFolder string

	NeisAPIKey     string
	NeisOfficeCode string
	NeisSchoolCode string
	LunchCacheTTL  time.Duration
}

// devTokenSecret signs device tokens outside production only.
const devTokenSecret = "change-me"

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		GatewayURL:       os.Getenv("GATEWAY_URL"),
		GatewayListStyle: getEnv("GATEWAY_LIST_STYLE", "action"),

		StorageDriver: getEnv("STORAGE_DRIVER", "redis"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		DeviceTokenSecret: getEnv("DEVICE_TOKEN_SECRET", devTokenSecret),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		CloudinaryURL:          os.Getenv("CLOUDINARY_URL"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "classboard"),

		NeisAPIKey:     os.Getenv("NEIS_API_KEY"),
		NeisOfficeCode: os.Getenv("NEIS_OFFICE_CODE"),
		NeisSchoolCode: os.Getenv("NEIS_SCHOOL_CODE"),
	}

	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("GATEWAY_URL is required")
	}
	if cfg.IsProduction() && (cfg.DeviceTokenSecret == "" || cfg.DeviceTokenSecret == devTokenSecret) {
		return nil, fmt.Errorf("DEVICE_TOKEN_SECRET is required in production")
	}
	if cfg.GatewayListStyle != "action" && cfg.GatewayListStyle != "legacy" {
		return nil, fmt.Errorf("invalid GATEWAY_LIST_STYLE %q: want action or legacy", cfg.GatewayListStyle)
	}
	switch cfg.StorageDriver {
	case "redis", "postgres", "memory":
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	durations := []struct {
		name     string
		fallback string
		dst      *time.Duration
	}{
		{"GATEWAY_TIMEOUT", "15s", &cfg.GatewayTimeout},
		{"STORAGE_TTL", "0s", &cfg.StorageTTL},
		{"DEVICE_TOKEN_TTL", "8760h", &cfg.DeviceTokenTTL},
		{"WORKSPACE_IDLE_TTL", "30m", &cfg.WorkspaceIdleTTL},
		{"RATE_LIMIT_SUBMIT", "5s", &cfg.RateLimitSubmit},
		{"LUNCH_CACHE_TTL", "6h", &cfg.LunchCacheTTL},
	}
	for _, d := range durations {
		v, err := parseDuration(getEnv(d.name, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}

	maxImage, err := strconv.Atoi(getEnv("GALLERY_MAX_IMAGE_BYTES", "5242880"))
	if err != nil || maxImage <= 0 {
		return nil, fmt.Errorf("invalid GALLERY_MAX_IMAGE_BYTES")
	}
	cfg.GalleryMaxImageBytes = maxImage

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
