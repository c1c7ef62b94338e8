package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Matching.Threshold != 0.75 {
		t.Errorf("Threshold = %v, want 0.75", cfg.Matching.Threshold)
	}
	if cfg.Festival.MaxGapHours != 8 {
		t.Errorf("MaxGapHours = %v, want 8", cfg.Festival.MaxGapHours)
	}
	if cfg.HTTP.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.HTTP.Timeout)
	}
	if cfg.Genre.FestivalMaxGenres <= cfg.Genre.MaxGenres {
		t.Errorf("festival cap %d should exceed regular cap %d", cfg.Genre.FestivalMaxGenres, cfg.Genre.MaxGenres)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/data/lineup.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Backup.Keep != 7 {
		t.Errorf("Backup.Keep = %d, want 7", cfg.Backup.Keep)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
database:
  path: /tmp/test.db
matching:
  threshold: 0.8
genre:
  max_genres: 4
http:
  timeout: 3s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LINEUP_MATCH_THRESHOLD", "0.9")
	t.Setenv("LINEUP_LASTFM_API_KEY", "key")
	t.Setenv("LINEUP_BACKUP_DIR", "/tmp/snapshots")
	t.Setenv("LINEUP_WEBHOOK_URLS", "http://a.example/hook, ,http://b.example/hook")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Matching.Threshold != 0.9 {
		t.Errorf("env should override file threshold, got %v", cfg.Matching.Threshold)
	}
	if cfg.Genre.MaxGenres != 4 {
		t.Errorf("MaxGenres = %d, want 4", cfg.Genre.MaxGenres)
	}
	if cfg.Genre.FallbackMax != 3 {
		t.Errorf("unset FallbackMax should keep default, got %d", cfg.Genre.FallbackMax)
	}
	if cfg.HTTP.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.HTTP.Timeout)
	}
	if cfg.Providers.LastFMAPIKey != "key" {
		t.Errorf("LastFMAPIKey = %q", cfg.Providers.LastFMAPIKey)
	}
	if cfg.Backup.Dir != "/tmp/snapshots" {
		t.Errorf("Backup.Dir = %q", cfg.Backup.Dir)
	}
	if len(cfg.Notify.WebhookURLs) != 2 || cfg.Notify.WebhookURLs[1] != "http://b.example/hook" {
		t.Errorf("WebhookURLs = %v", cfg.Notify.WebhookURLs)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"threshold above one", "matching:\n  threshold: 1.5\n"},
		{"zero caps", "genre:\n  max_genres: 0\n"},
		{"negative gap", "festival:\n  max_gap_hours: -1\n"},
		{"empty db path", "database:\n  path: \"\"\n"},
		{"unknown log level", "logging:\n  level: chatty\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
