package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1, cfg.Import.DateToleranceDays)
	assert.InDelta(t, 0.7, cfg.Import.ConfidenceThreshold, 1e-9)
	assert.Equal(t, "Starting Balance", cfg.Import.StartingBalanceMarker)
	assert.Equal(t, 24*time.Hour, cfg.Storage.Retention())
	assert.Equal(t, slog.LevelInfo, cfg.Observability.Level())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("IMPORT_DATE_TOLERANCE_DAYS", "3")
	t.Setenv("IMPORT_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Import.DateToleranceDays)
	assert.InDelta(t, 0.85, cfg.Import.ConfidenceThreshold, 1e-9)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.Observability.Level())
}

func TestLoad_InvalidImportSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IMPORT_CONFIDENCE_THRESHOLD", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMPORT_CONFIDENCE_THRESHOLD")
}

func TestImportConfig_Validate(t *testing.T) {
	valid := ImportConfig{DateToleranceDays: 1, ConfidenceThreshold: 0.7, MaxUploadBytes: 1}

	tests := []struct {
		name    string
		mutate  func(*ImportConfig)
		wantErr bool
	}{
		{"valid", func(*ImportConfig) {}, false},
		{"zero tolerance", func(c *ImportConfig) { c.DateToleranceDays = 0 }, false},
		{"negative tolerance", func(c *ImportConfig) { c.DateToleranceDays = -1 }, true},
		{"threshold above one", func(c *ImportConfig) { c.ConfidenceThreshold = 1.01 }, true},
		{"negative threshold", func(c *ImportConfig) { c.ConfidenceThreshold = -0.1 }, true},
		{"no upload size", func(c *ImportConfig) { c.MaxUploadBytes = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "budget", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=budget sslmode=disable", c.DSN())
}
