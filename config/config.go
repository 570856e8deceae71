package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds everything the engine reads from the environment.
type Config struct {
	TenantID   string
	DeviceType string

	// Local storage. Driver is sqlite (local file, the default) or mysql
	// (shared storage for multi-terminal setups).
	DBDriver string
	DBPath   string
	DBDSN    string

	// Cloud backend.
	APIBaseURL  string
	WSBaseURL   string
	AccessToken string
	HTTPTimeout time.Duration

	// Realtime reconnection policy.
	ReconnectBaseDelay  time.Duration
	ReconnectMaxDelay   time.Duration
	ReconnectMaxRetries int
	OutboundQueueLimit  int

	// Retention.
	RetentionDays int

	// Local device API.
	ListenPort string
}

// Load reads .env (if present) and the environment. Missing values fall
// back to defaults that work for a single-terminal sqlite install.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		TenantID:   getEnv("TENANT_ID", ""),
		DeviceType: getEnv("DEVICE_TYPE", "pos"),

		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBPath:   getEnv("DB_PATH", "pos_sync.db"),
		DBDSN:    getEnv("DB_DSN", ""),

		APIBaseURL:  getEnv("API_BASE_URL", "https://api.example.com"),
		WSBaseURL:   getEnv("WS_BASE_URL", "wss://api.example.com"),
		AccessToken: getEnv("ACCESS_TOKEN", ""),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		ReconnectBaseDelay:  getEnvDuration("RECONNECT_BASE_DELAY", time.Second),
		ReconnectMaxDelay:   getEnvDuration("RECONNECT_MAX_DELAY", 30*time.Second),
		ReconnectMaxRetries: getEnvInt("RECONNECT_MAX_RETRIES", 10),
		OutboundQueueLimit:  getEnvInt("OUTBOUND_QUEUE_LIMIT", 1000),

		RetentionDays: getEnvInt("RETENTION_DAYS", 7),

		ListenPort: getEnv("PORT", "8090"),
	}
}

// InitDB opens the local database per the configured driver.
func InitDB(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch cfg.DBDriver {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.DBPath), gormCfg)
	case "mysql":
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for the mysql driver")
		}
		return gorm.Open(mysql.Open(cfg.DBDSN), gormCfg)
	case "none":
		// Web-only deployment without local storage. Stores degrade to
		// no-ops on a nil handle.
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
