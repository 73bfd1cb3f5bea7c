package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	// Storage
	StorageDriver      string // memory, postgres, sqlite
	DatabaseURL        string
	SQLitePath         string
	TablePrefix        string
	PersistenceTimeout time.Duration
	// Session view state (optional)
	RedisURL     string
	ViewStateTTL time.Duration
	// Auth: empty JWKSURL means every request acts as DevUserID
	JWKSURL   string
	DevUserID string
	// Sidebar policies
	EmptyFolderPolicy  string
	FolderDeletePolicy string
	CollationLanguage  string
	// Logging
	LogDir      string
	LogMaxFiles int
	// SSE
	SSEKeepAlive time.Duration
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Environment:        env,
		CORSOrigins:        getEnv("CORS_ORIGINS", "http://localhost:3000"),
		StorageDriver:      getEnv("STORAGE_DRIVER", "memory"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		SQLitePath:         getEnv("SQLITE_PATH", "./data/convtree.db"),
		TablePrefix:        getTablePrefix(env),
		PersistenceTimeout: getDuration("PERSISTENCE_TIMEOUT", 10*time.Second),
		RedisURL:           getEnv("REDIS_URL", ""),
		ViewStateTTL:       getDuration("VIEW_STATE_TTL", 30*24*time.Hour),
		JWKSURL:            getEnv("JWKS_URL", ""),
		DevUserID:          getEnv("DEV_USER_ID", "local"),
		EmptyFolderPolicy:  getEnv("EMPTY_FOLDER_POLICY", "hide-when-filtering"),
		FolderDeletePolicy: getEnv("FOLDER_DELETE_POLICY", "promote"),
		CollationLanguage:  getEnv("COLLATION_LANGUAGE", "en"),
		LogDir:             getEnv("LOG_DIR", ""),
		LogMaxFiles:        getInt("LOG_MAX_FILES", 10),
		SSEKeepAlive:       getDuration("SSE_KEEPALIVE", 10*time.Second),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// IsProduction reports whether the server runs with production defaults
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
