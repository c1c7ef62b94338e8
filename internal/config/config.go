package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/lineup/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Matching  MatchingConfig  `yaml:"matching"`
	Genre     GenreConfig     `yaml:"genre"`
	Festival  FestivalConfig  `yaml:"festival"`
	HTTP      HTTPConfig      `yaml:"http"`
	Images    ImagesConfig    `yaml:"images"`
	Providers ProvidersConfig `yaml:"providers"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Backup    BackupConfig    `yaml:"backup"`
	Notify    NotifyConfig    `yaml:"notify"`
	ListsPath string          `yaml:"lists_path"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxFiles   int    `yaml:"max_files"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MatchingConfig tunes fuzzy entity resolution.
type MatchingConfig struct {
	Threshold float64 `yaml:"threshold"`
	MinMargin float64 `yaml:"min_margin"`
}

// GenreConfig tunes tag validation and consensus aggregation.
type GenreConfig struct {
	CatalogLimit      int `yaml:"catalog_limit"`
	MinDescription    int `yaml:"min_description"`
	MaxGenres         int `yaml:"max_genres"`
	FestivalMaxGenres int `yaml:"festival_max_genres"`
	MinOccurrences    int `yaml:"min_occurrences"`
	FallbackMax       int `yaml:"fallback_max"`
}

// FestivalConfig tunes festival day segmentation.
type FestivalConfig struct {
	MaxGapHours float64 `yaml:"max_gap_hours"`
}

// HTTPConfig bounds calls to external services.
type HTTPConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	EnrichDelay time.Duration `yaml:"enrich_delay"`
}

// ImagesConfig controls where hosted images are written and served from.
type ImagesConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url"`
}

// ProvidersConfig holds credentials for external services.
type ProvidersConfig struct {
	LastFMAPIKey           string `yaml:"lastfm_api_key"`
	SoundCloudClientID     string `yaml:"soundcloud_client_id"`
	SoundCloudClientSecret string `yaml:"soundcloud_client_secret"`
	OpenAIAPIKey           string `yaml:"openai_api_key"`
	OpenAIModel            string `yaml:"openai_model"`
	OpenAIBaseURL          string `yaml:"openai_base_url"`
	// RateLimits overrides requests per second by service name; zero
	// disables pacing.
	RateLimits map[string]float64 `yaml:"rate_limits"`
}

// ScraperConfig points at the event scraper service.
type ScraperConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// BackupConfig controls database snapshots.
type BackupConfig struct {
	Dir  string `yaml:"dir"`
	Keep int    `yaml:"keep"`
}

// NotifyConfig lists endpoints that receive import notifications.
type NotifyConfig struct {
	WebhookURLs []string `yaml:"webhook_urls"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "/data/lineup.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Matching: MatchingConfig{
			Threshold: 0.75,
		},
		Genre: GenreConfig{
			CatalogLimit:      10,
			MinDescription:    30,
			MaxGenres:         5,
			FestivalMaxGenres: 10,
			MinOccurrences:    2,
			FallbackMax:       3,
		},
		Festival: FestivalConfig{
			MaxGapHours: 8,
		},
		HTTP: HTTPConfig{
			Timeout:     10 * time.Second,
			EnrichDelay: 500 * time.Millisecond,
		},
		Images: ImagesConfig{
			Dir:     "/data/images",
			BaseURL: "/images",
		},
		Providers: ProvidersConfig{
			OpenAIModel: "gpt-4o-mini",
		},
		Backup: BackupConfig{
			Dir:  "/data/backups",
			Keep: 7,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-supplied
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("LINEUP_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("LINEUP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LINEUP_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("LINEUP_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("LINEUP_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Matching.Threshold = f
		}
	}
	if v := os.Getenv("LINEUP_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("LINEUP_IMAGES_DIR"); v != "" {
		c.Images.Dir = v
	}
	if v := os.Getenv("LINEUP_IMAGES_BASE_URL"); v != "" {
		c.Images.BaseURL = v
	}
	if v := os.Getenv("LINEUP_BACKUP_DIR"); v != "" {
		c.Backup.Dir = v
	}
	if v := os.Getenv("LINEUP_WEBHOOK_URLS"); v != "" {
		c.Notify.WebhookURLs = splitList(v)
	}
	if v := os.Getenv("LINEUP_LISTS_PATH"); v != "" {
		c.ListsPath = v
	}
	if v := os.Getenv("LINEUP_SCRAPER_ENDPOINT"); v != "" {
		c.Scraper.Endpoint = v
	}
	if v := os.Getenv("LINEUP_LASTFM_API_KEY"); v != "" {
		c.Providers.LastFMAPIKey = v
	}
	if v := os.Getenv("LINEUP_SOUNDCLOUD_CLIENT_ID"); v != "" {
		c.Providers.SoundCloudClientID = v
	}
	if v := os.Getenv("LINEUP_SOUNDCLOUD_CLIENT_SECRET"); v != "" {
		c.Providers.SoundCloudClientSecret = v
	}
	if v := os.Getenv("LINEUP_OPENAI_API_KEY"); v != "" {
		c.Providers.OpenAIAPIKey = v
	}
	if v := os.Getenv("LINEUP_OPENAI_MODEL"); v != "" {
		c.Providers.OpenAIModel = v
	}
	if v := os.Getenv("LINEUP_OPENAI_BASE_URL"); v != "" {
		c.Providers.OpenAIBaseURL = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Matching.Threshold <= 0 || c.Matching.Threshold > 1 {
		return fmt.Errorf("invalid matching threshold: %v", c.Matching.Threshold)
	}
	if c.Matching.MinMargin < 0 || c.Matching.MinMargin >= 1 {
		return fmt.Errorf("invalid matching min_margin: %v", c.Matching.MinMargin)
	}
	g := c.Genre
	if g.MaxGenres < 1 || g.FestivalMaxGenres < 1 || g.FallbackMax < 1 {
		return fmt.Errorf("genre caps must be positive")
	}
	if g.MinOccurrences < 1 {
		return fmt.Errorf("genre min_occurrences must be positive")
	}
	if c.Festival.MaxGapHours <= 0 {
		return fmt.Errorf("festival max_gap_hours must be positive")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.HTTP.EnrichDelay < 0 {
		c.HTTP.EnrichDelay = 0
	}
	return nil
}
