package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AniDBConfig struct {
	BaseURL         string
	RequestInterval time.Duration
	Timeout         time.Duration
	UserAgent       string
}

type CacheConfig struct {
	Backend  string // sqlite | redis | memory
	Path     string
	RedisURL string
}

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

type NATSConfig struct {
	URL           string // empty disables outcome events
	MaxReconnects int
	ReconnectWait time.Duration
}

type Config struct {
	WorkerName           string
	BatchSize            int
	PollInterval         time.Duration
	Concurrency          int
	MaxTemporaryFailures int
	LegacyFailurePolicy  bool
	EnableHTTPTriggers   bool

	DatabaseURL   string
	DBMaxConns    int32
	DBAutoMigrate bool
	NATS NATSConfig

	AniDB   AniDBConfig
	Cache   CacheConfig
	Breaker BreakerConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("songs_worker_name", "songs_worker")
	v.SetDefault("songs_worker_batch_size", 10)
	v.SetDefault("songs_worker_poll_interval", "60s")
	v.SetDefault("songs_worker_concurrency", 1)
	v.SetDefault("songs_worker_max_temporary_failures", 5)
	v.SetDefault("songs_worker_legacy_failure_policy", false)
	v.SetDefault("enable_http_triggers", false)
	v.SetDefault("db_max_conns", 10)
	v.SetDefault("db_auto_migrate", false)
	v.SetDefault("nats_max_reconnects", 5)
	v.SetDefault("nats_reconnect_wait", "2s")
	v.SetDefault("anidb_base_url", "https://anidb.net")
	v.SetDefault("anidb_request_interval", "4s")
	v.SetDefault("anidb_timeout", "20s")
	v.SetDefault("anidb_user_agent", "aoq-factory-songsworker/1.0")
	v.SetDefault("page_cache_backend", "sqlite")
	v.SetDefault("page_cache_path", "anidb_pages.sqlite")
	v.SetDefault("cb_max_requests", 1)
	v.SetDefault("cb_interval", "60s")
	v.SetDefault("cb_timeout", "30s")
	v.SetDefault("cb_failure_threshold", 5)
}

// FromViper reads the worker settings. Durations accept Go duration strings
// ("4s", "1m30s").
func FromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)

	cfg := Config{
		WorkerName:           strings.TrimSpace(v.GetString("songs_worker_name")),
		BatchSize:            v.GetInt("songs_worker_batch_size"),
		PollInterval:         v.GetDuration("songs_worker_poll_interval"),
		Concurrency:          v.GetInt("songs_worker_concurrency"),
		MaxTemporaryFailures: v.GetInt("songs_worker_max_temporary_failures"),
		LegacyFailurePolicy:  v.GetBool("songs_worker_legacy_failure_policy"),
		EnableHTTPTriggers:   v.GetBool("enable_http_triggers"),
		DatabaseURL:          strings.TrimSpace(v.GetString("database_url")),
		DBMaxConns:           v.GetInt32("db_max_conns"),
		DBAutoMigrate:        v.GetBool("db_auto_migrate"),
		NATS: NATSConfig{
			URL:           strings.TrimSpace(v.GetString("nats_url")),
			MaxReconnects: v.GetInt("nats_max_reconnects"),
			ReconnectWait: v.GetDuration("nats_reconnect_wait"),
		},
		AniDB: AniDBConfig{
			BaseURL:         strings.TrimRight(strings.TrimSpace(v.GetString("anidb_base_url")), "/"),
			RequestInterval: v.GetDuration("anidb_request_interval"),
			Timeout:         v.GetDuration("anidb_timeout"),
			UserAgent:       strings.TrimSpace(v.GetString("anidb_user_agent")),
		},
		Cache: CacheConfig{
			Backend:  strings.ToLower(strings.TrimSpace(v.GetString("page_cache_backend"))),
			Path:     strings.TrimSpace(v.GetString("page_cache_path")),
			RedisURL: strings.TrimSpace(v.GetString("redis_url")),
		},
		Breaker: BreakerConfig{
			MaxRequests:      v.GetUint32("cb_max_requests"),
			Interval:         v.GetDuration("cb_interval"),
			Timeout:          v.GetDuration("cb_timeout"),
			FailureThreshold: v.GetUint32("cb_failure_threshold"),
		},
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.WorkerName == "" {
		return errors.New("SONGS_WORKER_NAME must not be empty")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("SONGS_WORKER_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("SONGS_WORKER_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("SONGS_WORKER_CONCURRENCY must be positive, got %d", c.Concurrency)
	}
	if c.MaxTemporaryFailures < 0 {
		return fmt.Errorf("SONGS_WORKER_MAX_TEMPORARY_FAILURES must not be negative, got %d", c.MaxTemporaryFailures)
	}
	if c.AniDB.BaseURL == "" {
		return errors.New("ANIDB_BASE_URL must not be empty")
	}
	if c.AniDB.RequestInterval <= 0 {
		return fmt.Errorf("ANIDB_REQUEST_INTERVAL must be positive, got %s", c.AniDB.RequestInterval)
	}
	switch c.Cache.Backend {
	case "sqlite":
		if c.Cache.Path == "" {
			return errors.New("PAGE_CACHE_PATH is required for the sqlite page cache")
		}
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis page cache")
		}
	case "memory":
	default:
		return fmt.Errorf("PAGE_CACHE_BACKEND must be sqlite, redis or memory, got %q", c.Cache.Backend)
	}
	return nil
}
