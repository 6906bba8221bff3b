package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/fpailes/Avy-weather-server/internal/forecast"
)

// AppConfig is the configuration surface consumed by the core, supplied at
// construction time rather than read ad hoc from process-wide state.
type AppConfig struct {
	// Zones is the fixed zone enumeration. Known at startup, never
	// runtime-discovered.
	Zones []forecast.ZoneID `validate:"required,min=1"`

	// SourceBaseURL is the forecast source origin.
	SourceBaseURL string `validate:"required,url"`

	// CacheTTL is the uniform per-zone cache duration.
	CacheTTL time.Duration `validate:"required"`

	// RenderTimeout bounds a single render of the source page.
	RenderTimeout time.Duration `validate:"required"`

	// RefreshInterval drives the background refresher; 0 disables it.
	RefreshInterval time.Duration

	Port string `validate:"required"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Zones = parseZones(getenvDefault("FORECAST_ZONES", "stevens-pass,snoqualmie-pass,east-slopes-central"))
	cfg.SourceBaseURL = getenvDefault("SOURCE_BASE_URL", "https://nwac.us")
	cfg.Port = getenvDefault("PORT", "8080")

	ttl, err := getenvDuration("CACHE_TTL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = ttl

	renderTimeout, err := getenvDuration("RENDER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RENDER_TIMEOUT: %w", err)
	}
	cfg.RenderTimeout = renderTimeout

	refreshInterval, err := getenvDuration("REFRESH_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = refreshInterval

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func parseZones(raw string) []forecast.ZoneID {
	var zones []forecast.ZoneID
	for _, slug := range strings.Split(raw, ",") {
		slug = strings.TrimSpace(slug)
		if slug == "" {
			continue
		}
		zones = append(zones, forecast.ZoneID(slug))
	}
	return zones
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}
