// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Render   RenderConfig   `mapstructure:"render"`
	Session  SessionConfig  `mapstructure:"session"`
	Platform PlatformConfig `mapstructure:"platform"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs worker fan-out and outbound request identity.
type CrawlerConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	UserAgent   string `mapstructure:"user_agent"`
	QueueDepth  int    `mapstructure:"queue_depth"`
	Platform    string `mapstructure:"platform"`
}

// HTTPConfig configures the static fetch strategy.
type HTTPConfig struct {
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	MaxRedirects   int  `mapstructure:"max_redirects"`
	FollowRedirect bool `mapstructure:"follow_redirects"`
}

// RenderConfig configures the headless rendering subsystem.
type RenderConfig struct {
	Enabled                   bool   `mapstructure:"enabled"`
	Headless                  bool   `mapstructure:"headless"`
	NavTimeoutSeconds         int    `mapstructure:"nav_timeout_seconds"`
	InteractionTimeoutSeconds int    `mapstructure:"interaction_timeout_seconds"`
	WarmupURL                 string `mapstructure:"warmup_url"`
}

// SessionConfig controls session selection and health penalties.
type SessionConfig struct {
	RankedSetKey string        `mapstructure:"ranked_set_key"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	Penalty      PenaltyConfig `mapstructure:"penalty"`
}

// PenaltyConfig holds the per-failure-severity penalty tiers.
type PenaltyConfig struct {
	Heavy  float64 `mapstructure:"heavy"`
	Medium float64 `mapstructure:"medium"`
	Light  float64 `mapstructure:"light"`
	Usage  float64 `mapstructure:"usage"`
}

// PlatformConfig holds per-platform endpoint bases.
type PlatformConfig struct {
	SearchBase   string `mapstructure:"search_base"`
	DetailBase   string `mapstructure:"detail_base"`
	CommentsBase string `mapstructure:"comments_base"`
	ProfileBase  string `mapstructure:"profile_base"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	ContentTable string `mapstructure:"content_table"`
	SessionTable string `mapstructure:"session_table"`
	MaxConns     int32  `mapstructure:"max_conns"`
}

// RedisConfig locates the shared ranked session set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PubSubConfig holds transport metadata for queue and notifications.
type PubSubConfig struct {
	ProjectID        string `mapstructure:"project_id"`
	ReadyTopic       string `mapstructure:"ready_topic"`
	TaskSubscription string `mapstructure:"task_subscription"`
}

// StorageConfig sets the blob backend for raw payloads.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.platform", "weibo")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_redirects", 5)
	v.SetDefault("http.follow_redirects", true)
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.headless", true)
	v.SetDefault("render.nav_timeout_seconds", 30)
	v.SetDefault("render.interaction_timeout_seconds", 10)
	v.SetDefault("render.warmup_url", "https://example.com/")
	v.SetDefault("session.ranked_set_key", "crawler:sessions:ranked")
	v.SetDefault("session.max_attempts", 5)
	v.SetDefault("session.penalty.heavy", 5)
	v.SetDefault("session.penalty.medium", 2)
	v.SetDefault("session.penalty.light", 1)
	v.SetDefault("session.penalty.usage", 0.1)
	v.SetDefault("platform.search_base", "https://s.weibo.com/weibo")
	v.SetDefault("platform.detail_base", "https://weibo.com/ajax/statuses/show")
	v.SetDefault("platform.comments_base", "https://weibo.com/ajax/statuses/buildComments")
	v.SetDefault("platform.profile_base", "https://weibo.com/ajax/profile/info")
	v.SetDefault("db.content_table", "contents")
	v.SetDefault("db.session_table", "sessions")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.prefix", "payloads")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Session.MaxAttempts <= 0 {
		return fmt.Errorf("session.max_attempts must be > 0")
	}
	if c.Render.Enabled && c.Render.WarmupURL == "" {
		return fmt.Errorf("render.warmup_url must be set when rendering is enabled")
	}
	switch c.Storage.Backend {
	case "memory", "local", "gcs":
	default:
		return fmt.Errorf("storage.backend must be one of memory, local, gcs")
	}
	if c.Storage.Backend == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
	}
	if c.Storage.Backend == "local" && c.Storage.LocalDir == "" {
		return fmt.Errorf("storage.local_dir must be set for the local backend")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavTimeout converts the render navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Render.NavTimeoutSeconds) * time.Second
}

// InteractionTimeout converts the render interaction timeout into a duration.
func (c Config) InteractionTimeout() time.Duration {
	return time.Duration(c.Render.InteractionTimeoutSeconds) * time.Second
}
