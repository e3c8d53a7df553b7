package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                string
	Port                  string
	DatabaseURL           string
	BotToken              string
	AdminID               string
	ReplicateAPIToken     string
	ReplicateBaseURL      string
	ReplicateModel        string
	ReplicateModelVersion string
	DefaultNegativePrompt string
	WildcardDir           string
	StartingCredits       int64
	MaxGenerations        int
	CostPerSecond         float64
	USDPerCredit          float64
	HTTPReadTimeout       time.Duration
	HTTPWriteTimeout      time.Duration
	HTTPIdleTimeout       time.Duration
}

// CreditsPerSecond converts the service's per-second price into the credit
// rate charged to users.
func (c *Config) CreditsPerSecond() float64 {
	if c.USDPerCredit <= 0 {
		return 0
	}
	return c.CostPerSecond / c.USDPerCredit
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		Port:                  getEnv("PORT", "8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		BotToken:              os.Getenv("BOT_TOKEN"),
		AdminID:               os.Getenv("ADMIN_ID"),
		ReplicateAPIToken:     os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:      getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModel:        getEnv("REPLICATE_MODEL", "zsxkib/pulid"),
		ReplicateModelVersion: getEnv("REPLICATE_MODEL_VERSION", "c169c3b8f6952cf895d043d7b56830b4e9a3e9409a026004e9efbd9da42912b4"),
		DefaultNegativePrompt: os.Getenv("DEFAULT_NEGATIVE_PROMPT"),
		WildcardDir:           getEnv("WILDCARD_DIR", "./wildcards"),
		StartingCredits:       int64(getEnvInt("STARTING_CREDITS", 100)),
		MaxGenerations:        getEnvInt("MAX_GENERATIONS", 4),
		CostPerSecond:         getEnvFloat("COST_PER_SECOND", 0.000725),
		USDPerCredit:          getEnvFloat("USD_PER_CREDIT", 0.005),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	if cfg.ReplicateAPIToken == "" {
		return nil, fmt.Errorf("REPLICATE_API_TOKEN is required")
	}

	if cfg.MaxGenerations < 1 {
		cfg.MaxGenerations = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
