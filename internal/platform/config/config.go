// Package config loads service configuration from defaults, an optional YAML
// file and ARMORY_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"armory/internal/intel/scoring"
	pstrings "armory/pkg/platform/strings"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "ARMORY_"

// Catalog sources.
const (
	CatalogMemory   = "memory"
	CatalogPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	Server   Server         `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Intel    IntelConfig    `yaml:"intel"`
	Registry RegistryConfig `yaml:"registry"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	AdminToken      string        `yaml:"admin_token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// IntelConfig tunes the related-products engine.
type IntelConfig struct {
	SampleSize      int             `yaml:"sample_size"`
	MinScore        int             `yaml:"min_score"`
	DefaultLimit    int             `yaml:"default_limit"`
	MaxLimit        int             `yaml:"max_limit"`
	QueryTimeout    time.Duration   `yaml:"query_timeout"`
	ScoreWorkers    int             `yaml:"score_workers"`
	BuildWorkers    int             `yaml:"build_workers"`
	BuildOnDemand   bool            `yaml:"build_on_demand"`
	RefreshInterval time.Duration   `yaml:"refresh_interval"`
	Seed            uint64          `yaml:"seed"`
	Weights         scoring.Weights `yaml:"weights"`
}

// RegistryConfig points at an external equivalence registry. An empty path
// keeps the embedded default.
type RegistryConfig struct {
	Path     string        `yaml:"path"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// CatalogConfig selects where catalog records come from.
type CatalogConfig struct {
	Source      string `yaml:"source"`
	File        string `yaml:"file"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// RedisConfig configures the optional result cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ResultTTL    time.Duration `yaml:"result_ttl"`
}

// KafkaConfig configures the catalog-change consumer. No brokers disables it.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
	GroupID     string   `yaml:"group_id"`
	EnsureTopic bool     `yaml:"ensure_topic"`
	Partitions  int32    `yaml:"partitions"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Intel: IntelConfig{
			SampleSize:      200,
			MinScore:        30,
			DefaultLimit:    8,
			MaxLimit:        50,
			QueryTimeout:    250 * time.Millisecond,
			ScoreWorkers:    runtime.GOMAXPROCS(0),
			BuildWorkers:    runtime.GOMAXPROCS(0),
			BuildOnDemand:   true,
			RefreshInterval: 15 * time.Minute,
			Weights:         scoring.DefaultWeights(),
		},
		Registry: RegistryConfig{Debounce: 250 * time.Millisecond},
		Catalog:  CatalogConfig{Source: CatalogMemory},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  200 * time.Millisecond,
			WriteTimeout: 200 * time.Millisecond,
			ResultTTL:    10 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic:       "catalog.changes",
			GroupID:     "armory-intel",
			EnsureTopic: true,
			Partitions:  1,
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Intel.SampleSize < 1 {
		errs = append(errs, errors.New("intel.sample_size must be positive"))
	}
	if c.Intel.MinScore < 0 {
		errs = append(errs, errors.New("intel.min_score must not be negative"))
	}
	if c.Intel.DefaultLimit < 1 || c.Intel.MaxLimit < 1 {
		errs = append(errs, errors.New("intel limits must be positive"))
	}
	if c.Intel.DefaultLimit > c.Intel.MaxLimit {
		errs = append(errs, errors.New("intel.default_limit must not exceed intel.max_limit"))
	}
	if c.Intel.QueryTimeout < 0 || c.Intel.RefreshInterval < 0 {
		errs = append(errs, errors.New("intel timeouts must not be negative"))
	}
	if c.Intel.ScoreWorkers < 1 || c.Intel.BuildWorkers < 1 {
		errs = append(errs, errors.New("intel workers must be positive"))
	}
	if err := c.Intel.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("intel.weights: %w", err))
	}
	if c.Registry.Watch && c.Registry.Path == "" {
		errs = append(errs, errors.New("registry.watch requires registry.path"))
	}
	switch c.Catalog.Source {
	case CatalogMemory:
	case CatalogPostgres:
		if c.Catalog.PostgresDSN == "" {
			errs = append(errs, errors.New("catalog.postgres_dsn is required for the postgres source"))
		}
	default:
		errs = append(errs, fmt.Errorf("catalog.source %q is not one of memory, postgres", c.Catalog.Source))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("ADDR", &c.Server.Addr)
	str("ADMIN_TOKEN", &c.Server.AdminToken)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	num("SAMPLE_SIZE", &c.Intel.SampleSize)
	num("MIN_SCORE", &c.Intel.MinScore)
	num("DEFAULT_LIMIT", &c.Intel.DefaultLimit)
	num("MAX_LIMIT", &c.Intel.MaxLimit)
	num("SCORE_WORKERS", &c.Intel.ScoreWorkers)
	dur("QUERY_TIMEOUT", &c.Intel.QueryTimeout)
	dur("REFRESH_INTERVAL", &c.Intel.RefreshInterval)
	flag("BUILD_ON_DEMAND", &c.Intel.BuildOnDemand)
	if v, ok := lookup(EnvPrefix + "SEED"); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSEED: %w", EnvPrefix, err))
		} else {
			c.Intel.Seed = seed
		}
	}
	str("REGISTRY_PATH", &c.Registry.Path)
	flag("REGISTRY_WATCH", &c.Registry.Watch)
	str("CATALOG_SOURCE", &c.Catalog.Source)
	str("CATALOG_FILE", &c.Catalog.File)
	str("DATABASE_URL", &c.Catalog.PostgresDSN)
	str("REDIS_URL", &c.Redis.URL)
	dur("RESULT_TTL", &c.Redis.ResultTTL)
	if v, ok := lookup(EnvPrefix + "KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("KAFKA_GROUP", &c.Kafka.GroupID)

	return errors.Join(errs...)
}

// splitList reads a comma-separated env value. Blank and repeated entries
// are dropped.
func splitList(v string) []string {
	return pstrings.DedupeAndTrim(strings.Split(v, ","))
}
