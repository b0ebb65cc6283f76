package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://ggstore.com", cfg.Crawler.BaseURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Crawler.PageDelay)
	assert.Equal(t, 50, cfg.Crawler.MaxPages)
	assert.Equal(t, 10, cfg.Crawler.CheckpointInterval)
	assert.True(t, cfg.Crawler.SkipExisting)
	assert.Equal(t, 5, cfg.Downloader.MaxConcurrent)
	assert.Equal(t, "data/metadata.json", cfg.Storage.MetadataFile)
	assert.Equal(t, "data/checklist.yaml", cfg.Storage.LedgerFile)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CRAWLER_BASE_URL", "https://staging.ggstore.com")
	t.Setenv("CRAWLER_PAGE_DELAY", "3s")
	t.Setenv("DOWNLOADER_MAX_CONCURRENT", "2")
	t.Setenv("BROWSER_HEADLESS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://staging.ggstore.com", cfg.Crawler.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Crawler.PageDelay)
	assert.Equal(t, 2, cfg.Downloader.MaxConcurrent)
	assert.False(t, cfg.Browser.Headless)
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("CRAWLER_MAX_PAGES", "not-a-number")
	t.Setenv("CRAWLER_PAGE_DELAY", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Crawler.MaxPages)
	assert.Equal(t, 1500*time.Millisecond, cfg.Crawler.PageDelay)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Downloader.MaxConcurrent = 0
	assert.Error(t, cfg.Validate())

	cfg.Downloader.MaxConcurrent = 5
	cfg.Crawler.MaxPages = 0
	assert.Error(t, cfg.Validate())

	cfg.Crawler.MaxPages = 50
	cfg.Crawler.BaseURL = ""
	assert.Error(t, cfg.Validate())
}
