package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JUNGSI_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "formulas.json"), cfg.FormulaPath)
	assert.Equal(t, 8100, cfg.Port)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.False(t, cfg.Backup.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JUNGSI_DATA_DIR", dir)
	t.Setenv("JUNGSI_PORT", "9000")
	t.Setenv("JUNGSI_CONCURRENCY", "8")
	t.Setenv("JUNGSI_EXAM_YEAR", "2026")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 2026, cfg.ExamYear)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JUNGSI_DATA_DIR", dir)

	t.Setenv("JUNGSI_PORT", "99999")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JUNGSI_PORT", "8100")
	t.Setenv("JUNGSI_CONCURRENCY", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestDatabasePaths(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/jungsi"}

	assert.Equal(t, "/var/lib/jungsi/students.db", cfg.StudentsDBPath())
	assert.Equal(t, "/var/lib/jungsi/catalog.db", cfg.CatalogDBPath())
	assert.Equal(t, "/var/lib/jungsi/results.db", cfg.ResultsDBPath())
}

func TestBackupConfig_Enabled(t *testing.T) {
	assert.False(t, (&BackupConfig{}).Enabled())
	assert.False(t, (*BackupConfig)(nil).Enabled())
	assert.False(t, (&BackupConfig{Bucket: "b"}).Enabled())
	assert.True(t, (&BackupConfig{
		Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s",
	}).Enabled())
}
