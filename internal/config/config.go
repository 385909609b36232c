// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
)

// EnvPrefix prefixes every environment override, e.g. SITECHAT_SERVER_PORT.
const EnvPrefix = "SITECHAT"

// Archive backends.
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

// Page fetch backends.
const (
	FetcherColly    = "colly"
	FetcherHeadless = "headless"
	// FetcherAuto probes with colly and renders shell pages headless.
	FetcherAuto = "auto"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Generation GenerationConfig `mapstructure:"generation"`
	DB         DBConfig         `mapstructure:"db"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Events     EventsConfig     `mapstructure:"events"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// AllowedOrigins lists the browser origins the widget may call from.
	// Empty allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs engine politeness, the default crawl bounds and the
// fetch backend.
type CrawlerConfig struct {
	Fetcher             string        `mapstructure:"fetcher"`
	HeadlessMaxParallel int           `mapstructure:"headless_max_parallel"`
	UserAgent           string        `mapstructure:"user_agent"`
	BatchSize           int           `mapstructure:"batch_size"`
	BatchDelay          time.Duration `mapstructure:"batch_delay"`
	MaxLinksPerPage     int           `mapstructure:"max_links_per_page"`
	DefaultMaxPages     int           `mapstructure:"default_max_pages"`
	DefaultMaxDepth     int           `mapstructure:"default_max_depth"`
	DefaultTimeout      time.Duration `mapstructure:"default_timeout"`
}

// GenerationConfig holds language-model credentials and throttling.
type GenerationConfig struct {
	GeminiAPIKey      string  `mapstructure:"gemini_api_key"`
	GeminiEndpoint    string  `mapstructure:"gemini_endpoint"`
	MistralAPIKey     string  `mapstructure:"mistral_api_key"`
	MistralEndpoint   string  `mapstructure:"mistral_endpoint"`
	MistralModel      string  `mapstructure:"mistral_model"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to Postgres. An empty DSN selects in-memory stores.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// ArchiveConfig selects where crawl results are archived.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// EventsConfig names the Pub/Sub topic that receives crawl events. Events
// are off unless both fields are set.
type EventsConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether crawl events should be published.
func (e EventsConfig) Enabled() bool {
	return e.ProjectID != "" && e.Topic != ""
}

// Load builds a Config from .env files, an optional config file and the
// environment, in increasing priority.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Bare provider variables keep working for deployments that predate the prefix.
	if err := bindAliases(v); err != nil {
		return Config{}, err
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Archive.Backend = strings.ToLower(strings.TrimSpace(cfg.Archive.Backend))
	cfg.Crawler.Fetcher = strings.ToLower(strings.TrimSpace(cfg.Crawler.Fetcher))
	cfg.Server.AllowedOrigins = cleanOrigins(cfg.Server.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func cleanOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func bindAliases(v *viper.Viper) error {
	aliases := map[string]string{
		"generation.gemini_api_key":  "GEMINI_API_KEY",
		"generation.mistral_api_key": "MISTRAL_API_KEY",
		"db.dsn":                     "DATABASE_URL",
		"server.port":                "PORT",
		"server.allowed_origins":     "ALLOWED_ORIGINS",
		"events.project_id":          "GOOGLE_CLOUD_PROJECT",
	}
	for key, env := range aliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("crawler.fetcher", FetcherColly)
	v.SetDefault("crawler.headless_max_parallel", 2)
	v.SetDefault("crawler.user_agent", crawler.DefaultUserAgent)
	v.SetDefault("crawler.batch_size", crawler.DefaultBatchSize)
	v.SetDefault("crawler.batch_delay", crawler.DefaultBatchDelay)
	v.SetDefault("crawler.max_links_per_page", crawler.DefaultMaxLinksPerPage)
	v.SetDefault("crawler.default_max_pages", crawler.DefaultPages)
	v.SetDefault("crawler.default_max_depth", crawler.DefaultDepth)
	v.SetDefault("crawler.default_timeout", crawler.DefaultTimeout)
	v.SetDefault("generation.gemini_api_key", "")
	v.SetDefault("generation.gemini_endpoint", "")
	v.SetDefault("generation.mistral_api_key", "")
	v.SetDefault("generation.mistral_endpoint", "")
	v.SetDefault("generation.mistral_model", "")
	v.SetDefault("generation.requests_per_second", 2.0)
	v.SetDefault("generation.burst", 2)
	v.SetDefault("generation.timeout_seconds", 30)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.base_dir", "")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "crawls")
	v.SetDefault("events.project_id", "")
	v.SetDefault("events.topic", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return err
	}
	if c.Crawler.DefaultMaxPages < 0 || c.Crawler.DefaultMaxDepth < 0 || c.Crawler.DefaultTimeout < 0 {
		return fmt.Errorf("crawler defaults must be >= 0")
	}
	switch c.Crawler.Fetcher {
	case "", FetcherColly:
	case FetcherHeadless, FetcherAuto:
		if c.Crawler.HeadlessMaxParallel < 0 {
			return fmt.Errorf("crawler.headless_max_parallel must be >= 0")
		}
	default:
		return fmt.Errorf("crawler.fetcher %q is not one of colly, headless, auto", c.Crawler.Fetcher)
	}
	if c.Generation.TimeoutSeconds <= 0 {
		return fmt.Errorf("generation.timeout_seconds must be > 0")
	}
	if c.Generation.RequestsPerSecond < 0 {
		return fmt.Errorf("generation.requests_per_second must be >= 0")
	}
	switch c.Archive.Backend {
	case "", ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if strings.TrimSpace(c.Archive.BaseDir) == "" {
			return fmt.Errorf("archive.base_dir is required for the local backend")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not one of none, memory, local, gcs", c.Archive.Backend)
	}
	return nil
}

// EngineConfig converts the crawler section into engine settings.
func (c Config) EngineConfig() crawler.Config {
	return crawler.Config{
		BatchSize:       c.Crawler.BatchSize,
		BatchDelay:      c.Crawler.BatchDelay,
		MaxLinksPerPage: c.Crawler.MaxLinksPerPage,
	}
}

// TargetDefaults returns the bounds applied when a crawl request omits them.
func (c Config) TargetDefaults() crawler.TargetOptions {
	return crawler.TargetOptions{
		MaxPages: c.Crawler.DefaultMaxPages,
		MaxDepth: c.Crawler.DefaultMaxDepth,
		Timeout:  c.Crawler.DefaultTimeout,
	}
}

// GenerationTimeout is the per-call budget for a provider request.
func (c Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSeconds) * time.Second
}
