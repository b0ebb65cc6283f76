package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Crawler    CrawlerConfig
	Browser    BrowserConfig
	Downloader DownloaderConfig
	Storage    StorageConfig
	Server     ServerConfig
	Logging    LoggingConfig
}

type CrawlerConfig struct {
	BaseURL            string
	PageDelay          time.Duration
	MaxPages           int
	CheckpointInterval int
	SkipExisting       bool
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	Locale         string
	TimezoneID     string
}

type DownloaderConfig struct {
	MaxConcurrent int
	Timeout       time.Duration
	OutputDir     string
}

type StorageConfig struct {
	MetadataFile string
	LedgerFile   string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Crawler: CrawlerConfig{
			BaseURL:            getEnvOrDefault("CRAWLER_BASE_URL", "https://ggstore.com"),
			PageDelay:          getDurationOrDefault("CRAWLER_PAGE_DELAY", 1500*time.Millisecond),
			MaxPages:           getIntOrDefault("CRAWLER_MAX_PAGES", 50),
			CheckpointInterval: getIntOrDefault("CRAWLER_CHECKPOINT_INTERVAL", 10),
			SkipExisting:       getBoolOrDefault("CRAWLER_SKIP_EXISTING", true),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/New_York"),
		},
		Downloader: DownloaderConfig{
			MaxConcurrent: getIntOrDefault("DOWNLOADER_MAX_CONCURRENT", 5),
			Timeout:       getDurationOrDefault("DOWNLOADER_TIMEOUT", 30*time.Second),
			OutputDir:     getEnvOrDefault("DOWNLOADER_OUTPUT_DIR", "data/images"),
		},
		Storage: StorageConfig{
			MetadataFile: getEnvOrDefault("STORAGE_METADATA_FILE", "data/metadata.json"),
			LedgerFile:   getEnvOrDefault("STORAGE_LEDGER_FILE", "data/checklist.yaml"),
		},
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("CRAWLER_BASE_URL must not be empty")
	}

	if c.Crawler.MaxPages < 1 {
		return fmt.Errorf("CRAWLER_MAX_PAGES must be at least 1")
	}

	if c.Crawler.CheckpointInterval < 1 {
		return fmt.Errorf("CRAWLER_CHECKPOINT_INTERVAL must be at least 1")
	}

	if c.Downloader.MaxConcurrent < 1 {
		return fmt.Errorf("DOWNLOADER_MAX_CONCURRENT must be at least 1")
	}

	return nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
