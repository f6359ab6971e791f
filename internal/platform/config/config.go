package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	tlstrings "tlwatch/pkg/platform/strings"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Database struct {
	Driver      string `yaml:"driver"` // sqlite | postgres
	URL         string `yaml:"url"`    // file path for sqlite, DSN for postgres
	ApplySchema bool   `yaml:"apply_schema"`
}

type Fetch struct {
	LOTLURL     string        `yaml:"lotl_url"`
	RawDir      string        `yaml:"raw_dir"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	Concurrency int           `yaml:"concurrency"` // parallel TL downloads
}

// RedisConfig is optional; an empty URL disables the distributed cycle lock.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// KafkaConfig is optional; no brokers disables change publishing.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
	ClientID    string   `yaml:"client_id"`
	EnsureTopic bool     `yaml:"ensure_topic"`
	Partitions  int32    `yaml:"partitions"`
}

type Server struct {
	Addr string `yaml:"addr"`
	// RunInterval schedules ingestion cycles while serving; zero disables them.
	RunInterval time.Duration `yaml:"run_interval"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

type Metrics struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

type Config struct {
	Countries []string    `yaml:"countries"`
	Database  Database    `yaml:"database"`
	Fetch     Fetch       `yaml:"fetch"`
	Redis     RedisConfig `yaml:"redis"`
	Kafka     KafkaConfig `yaml:"kafka"`
	Server    Server      `yaml:"server"`
	Log       Log         `yaml:"log"`
	Metrics   Metrics     `yaml:"metrics"`
}

// Default returns the configuration used when no file or environment says otherwise.
func Default() Config {
	return Config{
		Countries: []string{"HR", "SI", "DE"},
		Database: Database{
			Driver:      DriverSQLite,
			URL:         "eidastl.sqlite",
			ApplySchema: true,
		},
		Fetch: Fetch{
			LOTLURL:     "https://ec.europa.eu/tools/lotl/eu-lotl.xml",
			RawDir:      "data_raw",
			Timeout:     60 * time.Second,
			MaxRetries:  3,
			Backoff:     time.Second,
			MaxBackoff:  10 * time.Second,
			Concurrency: 4,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			LockTTL:      15 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic:      "tlwatch.changes",
			ClientID:   "tlwatch",
			Partitions: 3,
		},
		Server:  Server{Addr: ":8080"},
		Log:     Log{Level: "info", Format: "json"},
		Metrics: Metrics{Job: "tlwatch"},
	}
}

// Load reads path when it is non-empty, then applies environment overrides.
// Fields missing from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Database.Driver, "TLWATCH_DB_DRIVER")
	set(&c.Database.URL, "DATABASE_URL")
	set(&c.Fetch.LOTLURL, "LOTL_URL")
	set(&c.Fetch.RawDir, "RAW_DIR")
	set(&c.Redis.URL, "REDIS_URL")
	set(&c.Kafka.Topic, "KAFKA_TOPIC")
	set(&c.Metrics.PushgatewayURL, "PUSHGATEWAY_URL")
	set(&c.Server.Addr, "TLWATCH_ADDR")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Log.Format, "LOG_FORMAT")
	if v := getenv("COUNTRIES"); v != "" {
		c.Countries = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = tlstrings.DedupeAndTrim(strings.Split(v, ","))
	}
}

// Normalize trims, upper-cases and deduplicates the country list.
func (c *Config) Normalize() {
	c.Countries = tlstrings.DedupeAndTrimUpper(c.Countries)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be %s or %s", c.Database.Driver, DriverSQLite, DriverPostgres))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if len(c.Countries) == 0 {
		errs = append(errs, errors.New("at least one country is required"))
	}
	for _, cc := range c.Countries {
		if len(cc) != 2 {
			errs = append(errs, fmt.Errorf("country code %q must be two letters", cc))
		}
	}
	if !strings.HasPrefix(c.Fetch.LOTLURL, "http") {
		errs = append(errs, fmt.Errorf("fetch.lotl_url %q must be an http(s) URL", c.Fetch.LOTLURL))
	}
	if c.Fetch.RawDir == "" {
		errs = append(errs, errors.New("fetch.raw_dir is required"))
	}
	if c.Fetch.Concurrency < 1 {
		errs = append(errs, errors.New("fetch.concurrency must be at least 1"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}
