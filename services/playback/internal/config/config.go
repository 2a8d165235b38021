package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Config holds the playback service's collaborator endpoints and tunables.
type Config struct {
	CatalogBaseURL    string
	CredentialBaseURL string
	ProgressBaseURL   string
	PlaybackBaseURL   string // base for credential-bearing playlist URLs

	JWTSecret []byte
	RedisDSN  string // optional durable credential sink

	ThrottleWindow time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		CatalogBaseURL:    strings.TrimSpace(os.Getenv("CATALOG_API_URL")),
		CredentialBaseURL: strings.TrimSpace(os.Getenv("CREDENTIAL_API_URL")),
		ProgressBaseURL:   strings.TrimSpace(os.Getenv("PROGRESS_API_URL")),
		PlaybackBaseURL:   strings.TrimSpace(os.Getenv("PLAYBACK_BASE_URL")),
		RedisDSN:          strings.TrimSpace(os.Getenv("REDIS_DSN")),
	}
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	cfg.JWTSecret = []byte(secret)

	if cfg.CatalogBaseURL == "" {
		return Config{}, errors.New("CATALOG_API_URL is required")
	}
	if cfg.CredentialBaseURL == "" {
		return Config{}, errors.New("CREDENTIAL_API_URL is required")
	}
	if cfg.ProgressBaseURL == "" {
		return Config{}, errors.New("PROGRESS_API_URL is required")
	}
	if cfg.PlaybackBaseURL == "" {
		cfg.PlaybackBaseURL = cfg.CredentialBaseURL
	}

	cfg.ThrottleWindow = 5 * time.Second
	if v := strings.TrimSpace(os.Getenv("PROGRESS_THROTTLE_WINDOW")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ThrottleWindow = d
		}
	}
	return cfg, nil
}
