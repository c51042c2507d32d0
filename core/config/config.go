package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Line  LineConfig
	Store StoreConfig
	Notes NotesConfig
	OTel  OTelConfig
	Env   string
	Port  string
}

// LineConfig holds the webhook-side credentials.
type LineConfig struct {
	// ChannelSecret is the shared secret used to verify the
	// X-Line-Signature header on inbound deliveries.
	ChannelSecret string
}

// StoreConfig points at the GitHub repository that holds the notes.
type StoreConfig struct {
	Token  string
	Owner  string
	Repo   string
	Branch string
}

// NotesConfig controls where and how note lines land.
type NotesConfig struct {
	// PathTemplate may contain {yyyy} {yy} {mm} {dd} {date} placeholders.
	PathTemplate string
	// CutoffHour is documented for operators but currently has no effect
	// on path resolution. Kept so existing deployments don't break on an
	// unknown variable.
	CutoffHour int
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// Load loads configuration from environment variables.
// In development it first loads a local .env file via godotenv.
func Load() (Config, error) {
	if getEnv("NOTEPUSH_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:  getEnv("NOTEPUSH_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		Line: LineConfig{
			ChannelSecret: getEnv("LINE_CHANNEL_SECRET", ""),
		},
		Store: StoreConfig{
			Token:  getEnv("GITHUB_TOKEN", ""),
			Owner:  getEnv("GITHUB_OWNER", ""),
			Repo:   getEnv("GITHUB_REPO", "notes"),
			Branch: getEnv("GITHUB_BRANCH", "main"),
		},
		Notes: NotesConfig{
			PathTemplate: getEnv("NOTE_PATH_TEMPLATE", "daily/{date}.md"),
			CutoffHour:   getEnvInt("NOTE_CUTOFF_HOUR", 0),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "note-push"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate fails fast on settings the append path cannot run without.
func (c Config) Validate() error {
	if c.Line.ChannelSecret == "" {
		return fmt.Errorf("LINE_CHANNEL_SECRET is required")
	}
	if c.Store.Token == "" {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}
	if c.Store.Owner == "" {
		return fmt.Errorf("GITHUB_OWNER is required")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
