package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"QuantLens/internal/services/anomaly"
	"QuantLens/internal/services/ml"
	"QuantLens/internal/services/performance"
	"QuantLens/internal/services/recommend"
	"QuantLens/internal/services/regime"
	"QuantLens/pkg/util"
)

// Ledger backends.
const (
	LedgerRedis      = "redis"
	LedgerClickHouse = "clickhouse"
	LedgerNone       = "none"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		TrainRateLimit  int           `yaml:"train_rate_limit" default:"5" validate:"gte=0"`
	} `yaml:"server"`
	Logging struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		TimeFormat string `yaml:"time_format" default:"2006-01-02T15:04:05.000Z07:00"`
		Collect    bool   `yaml:"collect"`
		Topic      string `yaml:"topic" default:"quantlens.logs"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Topics       struct {
			Outcomes        string `yaml:"outcomes" default:"quantlens.outcomes"`
			Recommendations string `yaml:"recommendations" default:"quantlens.recommendations"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
			RetryBuffer  int           `yaml:"retry_buffer" default:"256" validate:"gte=1"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"quantlens"`
			Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"quantlens"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Enabled bool          `yaml:"enabled"`
		Name    string        `yaml:"name" default:"quantlens.jobs"`
		Workers int           `yaml:"workers" default:"1" validate:"gte=1"`
		Poll    time.Duration `yaml:"poll" default:"2s"`
	} `yaml:"queue"`
	Ledger struct {
		Backend    string `yaml:"backend" default:"none" validate:"oneof=redis clickhouse none"`
		Key        string `yaml:"key" default:"quantlens:ledger"`
		Table      string `yaml:"table" default:"performance_ledger"`
		MaxRecords int    `yaml:"max_records" validate:"gte=0"`
	} `yaml:"ledger"`
	Analytics struct {
		Benchmark string                     `yaml:"benchmark" default:"SPY" validate:"required"`
		Peers     []string                   `yaml:"peers"`
		Forest    ml.ForestConfig            `yaml:"forest"`
		Training  regime.SampleOptions       `yaml:"training"`
		Adaptive  performance.AdaptiveConfig `yaml:"adaptive"`
		Anomaly   anomaly.Config             `yaml:"anomaly"`
		Recommend recommend.Config           `yaml:"recommend"`
		CacheTTL  time.Duration              `yaml:"cache_ttl" default:"5m"`
		Model     struct {
			Persist bool          `yaml:"persist"`
			Key     string        `yaml:"key" default:"model"`
			TTL     time.Duration `yaml:"ttl" default:"168h"`
		} `yaml:"model"`
	} `yaml:"analytics"`
}

// Load reads and parses a YAML configuration file, fills defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("QL_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("LEDGER_BACKEND"); v != "" {
		c.Ledger.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := getenv("LEDGER_MAX_RECORDS"); v != "" {
		c.Ledger.MaxRecords = util.ParseIntDefault(v, c.Ledger.MaxRecords)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	switch c.Ledger.Backend {
	case LedgerRedis:
		if !c.Redis.Enabled {
			return errors.New("ledger.backend 'redis' requires redis.enabled")
		}
	case LedgerClickHouse:
		if !c.ClickHouse.Enabled {
			return errors.New("ledger.backend 'clickhouse' requires clickhouse.enabled")
		}
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return errors.New("queue.enabled requires redis.enabled")
	}
	if c.Analytics.Model.Persist && !c.Redis.Enabled {
		return errors.New("analytics.model.persist requires redis.enabled")
	}
	return nil
}
