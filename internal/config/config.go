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
	HTTPPort          string
	PostgresDSN       string
	DBDriver          string
	JWTSecret         string
	RedisURL          string
	LogLevel          string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdle     time.Duration
	DBConnMaxLife     time.Duration
	DBTxRetries       int
	RequestTimeout    time.Duration
	PhaseSubmitPerMin int
	RunMigrations     bool
}

// Load reads the environment, after merging an optional .env file from the working directory.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		PostgresDSN:       getEnv("DATABASE_URL", ""),
		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", "pgx")),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DBMaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxIdle:     getDuration("DB_CONN_MAX_IDLE", 5*time.Minute),
		DBConnMaxLife:     getDuration("DB_CONN_MAX_LIFE", 30*time.Minute),
		DBTxRetries:       getInt("DB_TX_RETRIES", 3),
		RequestTimeout:    getDuration("REQUEST_TIMEOUT", 10*time.Second),
		PhaseSubmitPerMin: getInt("PHASE_SUBMIT_PER_MIN", 10),
		RunMigrations:     getBool("RUN_MIGRATIONS", true),
	}
	switch cfg.DBDriver {
	case "pq", "postgresql":
		cfg.DBDriver = "postgres"
	case "pgx/v5":
		cfg.DBDriver = "pgx"
	}

	missing := make([]string, 0, 2)
	if cfg.PostgresDSN == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if cfg.DBDriver != "pgx" && cfg.DBDriver != "postgres" {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.PhaseSubmitPerMin <= 0 {
		return Config{}, fmt.Errorf("PHASE_SUBMIT_PER_MIN must be positive")
	}
	if cfg.DBTxRetries < 0 {
		return Config{}, fmt.Errorf("DB_TX_RETRIES must not be negative")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value := getEnv(key, ""); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
