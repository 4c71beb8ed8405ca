package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	// Server
	Port  string
	Debug bool

	// Storage
	DBPath              string
	UpstreamDatabaseURL string // optional PostGIS holding raw box data

	// Auth
	JWTSecret string

	// Rate limiting
	RateLimit  int
	RateWindow time.Duration

	// Analysis
	Workers    int // device fan-out for tour construction
	PolicyPath string
	Policy     Policy
}

// Load reads .env (if present) and the environment, then the policy file.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", ":8080"),
		Debug:               getEnvBool("DEBUG", false),
		DBPath:              getEnv("DB_PATH", "./data/atrai.db"),
		UpstreamDatabaseURL: getEnv("UPSTREAM_DATABASE_URL", ""),
		JWTSecret:           getEnv("JWT_SECRET", "change-me"),
		RateLimit:           getEnvInt("RATE_LIMIT", 100),
		RateWindow:          getEnvDuration("RATE_WINDOW", time.Minute),
		Workers:             getEnvInt("WORKERS", 1),
		PolicyPath:          getEnv("POLICY_PATH", ""),
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	policy := DefaultPolicy()
	if cfg.PolicyPath != "" {
		p, err := LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy: %w", err)
		}
		policy = p
	}
	cfg.Policy = policy

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
