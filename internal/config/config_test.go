package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
instance:
  id: feedd-test
feed:
  api_key: key123
  access_token: token456
`

func TestLoadAndValidate_Minimal(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Instance.ID != "feedd-test" {
		t.Errorf("Instance.ID = %s, want feedd-test", cfg.Instance.ID)
	}
	if cfg.Feed.WSURL != DefaultWSURL {
		t.Errorf("WSURL = %s, want default %s", cfg.Feed.WSURL, DefaultWSURL)
	}
	if cfg.Feed.Mode != "quote" {
		t.Errorf("Mode = %s, want quote", cfg.Feed.Mode)
	}
	if cfg.Shards.Count != DefaultShardCount {
		t.Errorf("Shards.Count = %d, want %d", cfg.Shards.Count, DefaultShardCount)
	}
	if cfg.Shards.QueueCapacity != DefaultQueueCapacity {
		t.Errorf("QueueCapacity = %d, want %d", cfg.Shards.QueueCapacity, DefaultQueueCapacity)
	}
	if cfg.Hub.BatchWindow != DefaultBatchWindow {
		t.Errorf("BatchWindow = %v, want %v", cfg.Hub.BatchWindow, DefaultBatchWindow)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %s, want info", cfg.Logging.Level)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("FEED_API_KEY", "expanded-key")
	t.Setenv("FEED_ACCESS_TOKEN", "expanded-token")

	path := writeConfig(t, `
instance:
  id: feedd-test
feed:
  api_key: ${FEED_API_KEY}
  access_token: ${FEED_ACCESS_TOKEN}
`)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Feed.APIKey != "expanded-key" {
		t.Errorf("APIKey = %s, want expanded-key", cfg.Feed.APIKey)
	}
	if cfg.Feed.AccessToken != "expanded-token" {
		t.Errorf("AccessToken = %s, want expanded-token", cfg.Feed.AccessToken)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
instance:
  id: feedd-test
feed:
  api_key: k
  access_token: t
  mode: full
  backoff_max: 45s
shards:
  count: 8
  queue_capacity: 1024
hub:
  batch_window: 250ms
  batch_max_size: 500
`)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Feed.Mode != "full" {
		t.Errorf("Mode = %s, want full", cfg.Feed.Mode)
	}
	if cfg.Feed.BackoffMax != 45*time.Second {
		t.Errorf("BackoffMax = %v, want 45s", cfg.Feed.BackoffMax)
	}
	if cfg.Shards.Count != 8 {
		t.Errorf("Shards.Count = %d, want 8", cfg.Shards.Count)
	}
	if cfg.Hub.BatchWindow != 250*time.Millisecond {
		t.Errorf("BatchWindow = %v, want 250ms", cfg.Hub.BatchWindow)
	}
	if cfg.Hub.BatchMaxSize != 500 {
		t.Errorf("BatchMaxSize = %d, want 500", cfg.Hub.BatchMaxSize)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing instance id", func(c *Config) { c.Instance.ID = "" }, "instance.id"},
		{"missing api key", func(c *Config) { c.Feed.APIKey = "" }, "feed.api_key"},
		{"missing access token", func(c *Config) { c.Feed.AccessToken = "" }, "feed.access_token"},
		{"bad mode", func(c *Config) { c.Feed.Mode = "turbo" }, "feed.mode"},
		{"zero shards", func(c *Config) { c.Shards.Count = 0 }, "shards.count"},
		{"bad port", func(c *Config) { c.Metrics.Port = 70000 }, "metrics.port"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{
			"backoff inverted",
			func(c *Config) { c.Feed.BackoffBase = time.Minute },
			"backoff_base",
		},
		{
			"recorder without db",
			func(c *Config) { c.Recorder.Enabled = true },
			"recorder.database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadWithDefaults(writeConfig(t, minimalConfig))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/feedd.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
