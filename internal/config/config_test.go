package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
)

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: true
crawler:
  user_agent: test-agent
  batch_size: 2
  batch_delay: 250ms
  max_links_per_page: 4
  default_max_pages: 20
  default_max_depth: 2
  default_timeout: 10s
generation:
  gemini_api_key: g-key
  mistral_api_key: m-key
  mistral_model: mistral-large-latest
  requests_per_second: 5
  timeout_seconds: 12
db:
  dsn: postgres://localhost/sitechat
  max_conns: 4
archive:
  backend: LOCAL
  base_dir: /tmp/crawls
  prefix: runs
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Logging.Development {
		t.Fatal("expected development logging")
	}
	if cfg.Crawler.BatchDelay != 250*time.Millisecond {
		t.Fatalf("expected batch delay 250ms, got %v", cfg.Crawler.BatchDelay)
	}
	if got := cfg.EngineConfig(); got.BatchSize != 2 || got.MaxLinksPerPage != 4 {
		t.Fatalf("unexpected engine config %+v", got)
	}
	if got := cfg.TargetDefaults(); got.MaxPages != 20 || got.MaxDepth != 2 || got.Timeout != 10*time.Second {
		t.Fatalf("unexpected target defaults %+v", got)
	}
	if cfg.Generation.MistralModel != "mistral-large-latest" || cfg.GenerationTimeout() != 12*time.Second {
		t.Fatalf("unexpected generation config %+v", cfg.Generation)
	}
	if cfg.DB.MaxConns != 4 {
		t.Fatalf("expected max conns 4, got %d", cfg.DB.MaxConns)
	}
	if cfg.Archive.Backend != ArchiveLocal || cfg.Archive.Prefix != "runs" {
		t.Fatalf("unexpected archive config %+v", cfg.Archive)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Fatalf("expected default port 5000, got %d", cfg.Server.Port)
	}
	if cfg.EngineConfig() != crawler.DefaultConfig() {
		t.Fatalf("expected stock engine config, got %+v", cfg.EngineConfig())
	}
	if cfg.Crawler.UserAgent != crawler.DefaultUserAgent {
		t.Fatalf("unexpected user agent %q", cfg.Crawler.UserAgent)
	}
	if cfg.Archive.Backend != ArchiveNone {
		t.Fatalf("expected archive disabled, got %q", cfg.Archive.Backend)
	}
	if cfg.Crawler.Fetcher != FetcherColly {
		t.Fatalf("expected colly fetcher, got %q", cfg.Crawler.Fetcher)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SITECHAT_SERVER_PORT", "7070")
	t.Setenv("SITECHAT_CRAWLER_BATCH_SIZE", "5")
	t.Setenv("GEMINI_API_KEY", "from-bare-env")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example/")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.BatchSize != 5 {
		t.Fatalf("expected env batch size, got %d", cfg.Crawler.BatchSize)
	}
	if cfg.Generation.GeminiAPIKey != "from-bare-env" {
		t.Fatalf("expected alias key, got %q", cfg.Generation.GeminiAPIKey)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("expected cleaned origins, got %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SITECHAT_GENERATION_MISTRAL_API_KEY=dotenv-key\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv never overrides existing variables; register cleanup for the one it sets.
	t.Setenv("SITECHAT_GENERATION_MISTRAL_API_KEY", "")
	if err := os.Unsetenv("SITECHAT_GENERATION_MISTRAL_API_KEY"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Generation.MistralAPIKey != "dotenv-key" {
		t.Fatalf("expected .env key, got %q", cfg.Generation.MistralAPIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Server:     ServerConfig{Port: 8080},
		Crawler:    CrawlerConfig{BatchSize: 3, BatchDelay: time.Second, MaxLinksPerPage: 10},
		Generation: GenerationConfig{TimeoutSeconds: 30},
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "bad batch", mutate: func(c *Config) { c.Crawler.BatchSize = 0 }, wantErr: "batch_size"},
		{name: "negative delay", mutate: func(c *Config) { c.Crawler.BatchDelay = -time.Second }, wantErr: "batch_delay"},
		{name: "bad timeout", mutate: func(c *Config) { c.Generation.TimeoutSeconds = 0 }, wantErr: "timeout_seconds"},
		{name: "negative rps", mutate: func(c *Config) { c.Generation.RequestsPerSecond = -1 }, wantErr: "requests_per_second"},
		{name: "local without dir", mutate: func(c *Config) { c.Archive.Backend = ArchiveLocal }, wantErr: "base_dir"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Archive.Backend = ArchiveGCS }, wantErr: "gcs_bucket"},
		{name: "unknown backend", mutate: func(c *Config) { c.Archive.Backend = "s3" }, wantErr: "archive.backend"},
		{name: "headless fetcher", mutate: func(c *Config) { c.Crawler.Fetcher = FetcherHeadless }},
		{name: "auto fetcher", mutate: func(c *Config) { c.Crawler.Fetcher = FetcherAuto }},
		{name: "unknown fetcher", mutate: func(c *Config) { c.Crawler.Fetcher = "curl" }, wantErr: "crawler.fetcher"},
		{name: "negative tabs", mutate: func(c *Config) {
			c.Crawler.Fetcher = FetcherHeadless
			c.Crawler.HeadlessMaxParallel = -1
		}, wantErr: "headless_max_parallel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
