// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for all databases (always absolute)
	FormulaPath string // Formula definition file (JSON)
	LogLevel    string
	Port        int
	Concurrency int // Batch worker count
	ExamYear    int // Active admission cohort year
	DevMode     bool
	Backup      *BackupConfig
}

// BackupConfig holds the off-site backup settings. Backups are disabled
// when the bucket is empty.
type BackupConfig struct {
	Bucket          string
	Endpoint        string // S3-compatible endpoint (e.g. R2); empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	Retention       int // Number of backup sets to keep
}

// Enabled reports whether backups are configured.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != "" && b.AccessKeyID != "" && b.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory, resolve to absolute, ensure it exists
	dataDir := getEnv("JUNGSI_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:     absDataDir,
		FormulaPath: getEnv("JUNGSI_FORMULA_PATH", filepath.Join(absDataDir, "formulas.json")),
		Port:        getEnvAsInt("JUNGSI_PORT", 8100),
		Concurrency: getEnvAsInt("JUNGSI_CONCURRENCY", 4),
		ExamYear:    getEnvAsInt("JUNGSI_EXAM_YEAR", 0),
		DevMode:     getEnvAsBool("DEV_MODE", false),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Backup:      loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}

// StudentsDBPath returns the path to students.db
func (c *Config) StudentsDBPath() string {
	return filepath.Join(c.DataDir, "students.db")
}

// CatalogDBPath returns the path to catalog.db
func (c *Config) CatalogDBPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// ResultsDBPath returns the path to results.db
func (c *Config) ResultsDBPath() string {
	return filepath.Join(c.DataDir, "results.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// loadBackupConfig loads off-site backup configuration
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
		Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:          getEnv("BACKUP_S3_REGION", "auto"),
		AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		Prefix:          getEnv("BACKUP_S3_PREFIX", "jungsi-engine"),
		Retention:       getEnvAsInt("BACKUP_RETENTION", 14),
	}
}
