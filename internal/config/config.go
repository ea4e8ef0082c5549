package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                     int
	DatabasePath             string
	LogDirectory             string
	LogToConsole             bool
	MaxImagesPerSession      int   // 0 disables the cap
	MaxBatchSize             int   // Maximum corrections in one validation request
	SessionRetentionHours    int64 // Sessions idle longer than this are removed, 0 keeps them
	RetentionIntervalMinutes int
	ManualBoxPolicy          string // "verified" or "pending"
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	envFile := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		// Values already present in the environment win over the file.
		_ = godotenv.Load(envFile)
	}

	return &Config{
		Port:                     getEnvAsInt("PORT", 8080),
		DatabasePath:             getEnv("DB_PATH", filepath.Join(".", "data", "sessions.db")),
		LogDirectory:             getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogToConsole:             getEnvAsBool("LOG_CONSOLE", true),
		MaxImagesPerSession:      getEnvAsInt("MAX_IMAGES_PER_SESSION", 20),
		MaxBatchSize:             getEnvAsInt("MAX_BATCH_SIZE", 100),
		SessionRetentionHours:    getEnvAsInt64("SESSION_RETENTION_HOURS", 0),
		RetentionIntervalMinutes: getEnvAsInt("RETENTION_INTERVAL_MINUTES", 10),
		ManualBoxPolicy:          getEnv("MANUAL_BOX_POLICY", "verified"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
