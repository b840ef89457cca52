package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"PanelSync/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowRequest     time.Duration `yaml:"slow_request"`
		CORS            bool          `yaml:"cors"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Log struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Output    string `yaml:"output"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval"`
			Threshold int           `yaml:"threshold"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Canvas struct {
		SnapDistance     int  `yaml:"snap_distance"`
		SnapMargin       int  `yaml:"snap_margin"`
		FreezeSiblings   bool `yaml:"freeze_siblings"`
		DefaultMinWidth  int  `yaml:"default_min_width"`
		DefaultMinHeight int  `yaml:"default_min_height"`
		DispatcherQueue  int  `yaml:"dispatcher_queue"`
	} `yaml:"canvas"`
	Persistence struct {
		Backend      string        `yaml:"backend"` // redis or memory
		QueueSize    int           `yaml:"queue_size"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"persistence"`
	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Instruments struct {
		CacheTTL  time.Duration    `yaml:"cache_ttl"`
		CacheSize int              `yaml:"cache_size"`
		Seed      []InstrumentSeed `yaml:"seed"`
	} `yaml:"instruments"`
	Search struct {
		BaseURL  string        `yaml:"base_url"`
		Timeout  time.Duration `yaml:"timeout"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"search"`
	WebSocket struct {
		ReadBufferSize  int           `yaml:"read_buffer_size"`
		WriteBufferSize int           `yaml:"write_buffer_size"`
		MaxMessageBytes int64         `yaml:"max_message_bytes"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		FrameBurst      float64       `yaml:"frame_burst"`
		FrameRate       float64       `yaml:"frame_rate"`
	} `yaml:"websocket"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Topics       struct {
			Events     string `yaml:"events"`
			Selections string `yaml:"selections"`
			Logs       string `yaml:"logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID         string        `yaml:"group_id"`
			AutoOffsetReset string        `yaml:"auto_offset_reset"`
			Workers         int           `yaml:"workers"`
			BufferSize      int           `yaml:"buffer_size"`
			RetryMax        int           `yaml:"retry_max"`
			BackoffMin      time.Duration `yaml:"backoff_min"`
			BackoffMax      time.Duration `yaml:"backoff_max"`
			DLQTopic        string        `yaml:"dlq_topic"`
			MinBytes        int           `yaml:"min_bytes"`
			MaxBytes        int           `yaml:"max_bytes"`
			MaxPayload      int           `yaml:"max_payload"`
			SlowHandler     time.Duration `yaml:"slow_handler"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		Table            string        `yaml:"table"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// InstrumentSeed is an instrument loaded into the catalog at startup.
type InstrumentSeed struct {
	ID       string `yaml:"id"`
	Symbol   string `yaml:"symbol"`
	FullName string `yaml:"full_name"`
	Type     string `yaml:"type"`
	ISIN     string `yaml:"isin"`
	Exchange string `yaml:"exchange"`
	Currency string `yaml:"currency"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("PERSISTENCE_BACKEND"); v != "" {
		c.Persistence.Backend = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_ENABLED"); v != "" {
		c.Kafka.Enabled, _ = strconv.ParseBool(v)
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("SEARCH_BASE_URL"); v != "" {
		c.Search.BaseURL = v
	}
}

func (c *Config) applyDefaults() {
	setInt := func(p *int, v int) {
		if *p == 0 {
			*p = v
		}
	}
	setDur := func(p *time.Duration, v time.Duration) {
		if *p == 0 {
			*p = v
		}
	}
	setStr := func(p *string, v string) {
		if *p == "" {
			*p = v
		}
	}

	setInt(&c.Server.Port, 8080)
	setDur(&c.Server.ShutdownTimeout, 10*time.Second)
	setStr(&c.Metrics.Path, "/metrics")
	setStr(&c.Log.Level, "info")
	setStr(&c.Log.Format, "json")

	setInt(&c.Canvas.SnapDistance, 5)
	setInt(&c.Canvas.SnapMargin, 5)
	setInt(&c.Canvas.DefaultMinWidth, 275)
	setInt(&c.Canvas.DefaultMinHeight, 395)
	setInt(&c.Canvas.DispatcherQueue, 64)

	setStr(&c.Persistence.Backend, "redis")
	setInt(&c.Persistence.QueueSize, 1024)
	setDur(&c.Persistence.WriteTimeout, 5*time.Second)

	setInt(&c.Redis.Port, 6379)
	setStr(&c.Redis.Prefix, "panelsync")

	setDur(&c.Instruments.CacheTTL, 5*time.Minute)
	setInt(&c.Instruments.CacheSize, 4096)
	setDur(&c.Search.Timeout, 5*time.Second)
	setDur(&c.Search.CacheTTL, time.Minute)

	setInt(&c.WebSocket.ReadBufferSize, 1024)
	setInt(&c.WebSocket.WriteBufferSize, 1024)
	if c.WebSocket.MaxMessageBytes == 0 {
		c.WebSocket.MaxMessageBytes = 4096
	}
	setDur(&c.WebSocket.PingInterval, 30*time.Second)
	if c.WebSocket.FrameBurst == 0 {
		c.WebSocket.FrameBurst = 120
	}
	if c.WebSocket.FrameRate == 0 {
		c.WebSocket.FrameRate = 120
	}

	setStr(&c.Kafka.Topics.Events, "panelsync.canvas-events")
	setStr(&c.Kafka.Topics.Selections, "panelsync.instrument-selections")
	setStr(&c.Kafka.Topics.Logs, "panelsync.logs")
	setStr(&c.Kafka.Consumer.GroupID, "panelsync")
	setStr(&c.Kafka.Consumer.AutoOffsetReset, "latest")

	setInt(&c.ClickHouse.Port, 9000)
	setStr(&c.ClickHouse.Database, "panelsync")
	setStr(&c.ClickHouse.Table, "canvas_events")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Canvas.SnapDistance < 0 || c.Canvas.SnapMargin < 0 {
		return fmt.Errorf("canvas.snap_distance and canvas.snap_margin must be >= 0")
	}
	if c.Canvas.DefaultMinWidth < 1 || c.Canvas.DefaultMinHeight < 1 {
		return fmt.Errorf("canvas default minimum sizes must be >= 1")
	}
	switch c.Persistence.Backend {
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("redis.host is required for the redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("persistence.backend must be 'redis' or 'memory', got '%s'", c.Persistence.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if r := c.Kafka.Consumer.AutoOffsetReset; r != "earliest" && r != "latest" {
		return fmt.Errorf("kafka.consumer.auto_offset_reset must be 'earliest' or 'latest', got '%s'", r)
	}
	if c.ClickHouse.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("clickhouse archive consumes the events topic and needs kafka.enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	for i, s := range c.Instruments.Seed {
		if s.ID == "" || s.Symbol == "" {
			return fmt.Errorf("instruments.seed[%d]: id and symbol are required", i)
		}
	}
	return nil
}
