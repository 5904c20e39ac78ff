package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsharvest/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Scraper.MaxPagesPerCategory)
	assert.Equal(t, 20*time.Second, cfg.Scraper.Timeout())
	assert.NotEmpty(t, cfg.Scraper.UserAgents)

	require.Len(t, cfg.Sources, 5)
	mc, ok := cfg.SourceByName(domain.SourceMoneyControl)
	require.True(t, ok)
	assert.Contains(t, mc.Categories, "markets")
	assert.False(t, mc.Planned)

	cnbc, ok := cfg.SourceByName(domain.SourceCNBC)
	require.True(t, ok)
	assert.True(t, cnbc.Planned)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://env-host/db")
	t.Setenv("NEWSHARVEST_ADDR", ":9999")
	t.Setenv("NEWSHARVEST_LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, "postgres://env-host/db", cfg.Database.DSN)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
logging:
  level: warn
scraper:
  maxPagesPerCategory: 7
  minBodyLength: 500
scheduler:
  hour: 6
  timezone: Asia/Kolkata
sources:
  - name: moneycontrol
    categories: [markets]
accessTokens:
  - token: ops-token
    canMonitor: true
    canDownload: true
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	t.Setenv("NEWSHARVEST_CONFIG", path)

	cfg := Load()
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 7, cfg.Scraper.MaxPagesPerCategory)
	assert.Equal(t, 500, cfg.Scraper.MinBodyLength)
	assert.Equal(t, 6, cfg.Scheduler.Hour)
	assert.Equal(t, "Asia/Kolkata", cfg.Scheduler.Location().String())

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, domain.SourceMoneyControl, cfg.Sources[0].Name)

	require.Len(t, cfg.AccessTokens, 1)
	assert.True(t, cfg.AccessTokens[0].CanDownload)

	// File did not name a retry delay; the default survives the merge.
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.RetryDelay())
}

func TestLoadUnknownTimezoneFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  timezone: Not/AZone\n"), 0o600))
	t.Setenv("NEWSHARVEST_CONFIG", path)

	cfg := Load()
	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
}
