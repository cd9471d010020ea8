package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/erain9/runebook/pkg/core"
)

// EnvPrefix prefixes every environment override, e.g. RUNEBOOK_SERVER_GRPC_ADDR
const EnvPrefix = "RUNEBOOK"

// Config represents the application configuration
type Config struct {
	Server struct {
		GRPCAddr  string `yaml:"grpc_addr"`
		HTTPAddr  string `yaml:"http_addr"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"server"`

	Engine struct {
		MinOrderAmount    string `yaml:"min_order_amount"`
		MaxOrderAmount    string `yaml:"max_order_amount"`
		MaxPriceDeviation string `yaml:"max_price_deviation"`
		DefaultPrice      string `yaml:"default_price"`
	} `yaml:"engine"`

	Store struct {
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Node struct {
		URL               string        `yaml:"url"`
		User              string        `yaml:"user"`
		Password          string        `yaml:"password"`
		Timeout           time.Duration `yaml:"timeout"`
		MaxRetries        int           `yaml:"max_retries"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
	} `yaml:"node"`

	PriceFeed struct {
		URL      string        `yaml:"url"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"price_feed"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		// EventTopic receives engine events
		EventTopic string `yaml:"event_topic"`
		// TransferTopic receives settlement transfers when SettleViaQueue is set
		TransferTopic  string `yaml:"transfer_topic"`
		SettleViaQueue bool   `yaml:"settle_via_queue"`
		ConsumerGroup  string `yaml:"consumer_group"`
	} `yaml:"kafka"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	HTTP struct {
		RateLimit   float64  `yaml:"rate_limit"`
		RateBurst   int      `yaml:"rate_burst"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"http"`

	OTel struct {
		Enabled  bool   `yaml:"enabled"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"otel"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	cfg := &Config{}
	cfg.Server.GRPCAddr = ":50051"
	cfg.Server.HTTPAddr = ":8080"
	cfg.Server.LogLevel = "info"
	cfg.Server.LogFormat = "pretty"

	cfg.Engine.MinOrderAmount = core.DefaultMinOrderAmount.String()
	cfg.Engine.MaxOrderAmount = core.DefaultMaxOrderAmount.String()
	cfg.Engine.MaxPriceDeviation = core.DefaultMaxPriceDeviation.String()
	cfg.Engine.DefaultPrice = core.DefaultReferencePrice.String()

	cfg.Store.Backend = "memory"
	cfg.Store.Redis.Addr = "localhost:6379"
	cfg.Store.Redis.Prefix = "runebook"

	cfg.Node.Timeout = 30 * time.Second
	cfg.Node.MaxRetries = 3

	cfg.PriceFeed.CacheTTL = 10 * time.Second

	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.EventTopic = "runebook-events"
	cfg.Kafka.TransferTopic = "rune-transfers"
	cfg.Kafka.ConsumerGroup = "runebook-dev"

	cfg.HTTP.RateLimit = 50
	cfg.HTTP.RateBurst = 100
	cfg.HTTP.CORSOrigins = []string{"*"}

	cfg.OTel.Endpoint = "localhost:4317"
	return cfg
}

// LoadConfig parses command line flags, then the optional YAML file, then
// RUNEBOOK_* environment overrides, and validates the result.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadConfig with explicit arguments
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("runebook", flag.ContinueOnError)
	configFile := fs.String("config", "", "Path to config file (YAML)")
	grpcPort := fs.Int("grpc_port", 50051, "The gRPC server port")
	httpPort := fs.Int("http_port", 8080, "The HTTP server port")
	logLevel := fs.String("log_level", "info", "Log level: debug, info, warn, error")
	logFormat := fs.String("log_format", "pretty", "Log format: json, pretty")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.Server.GRPCAddr = fmt.Sprintf(":%d", *grpcPort)
	cfg.Server.HTTPAddr = fmt.Sprintf(":%d", *httpPort)
	cfg.Server.LogLevel = *logLevel
	cfg.Server.LogFormat = *logFormat

	if *configFile != "" {
		yamlFile, err := os.ReadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg, newEnv())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// applyEnv overrides every field whose environment variable is set. Keys
// follow the YAML layout: server.grpc_addr becomes RUNEBOOK_SERVER_GRPC_ADDR.
func applyEnv(cfg *Config, v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	flt := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	list := func(key string, dst *[]string) {
		if v.IsSet(key) {
			*dst = splitList(v.GetString(key))
		}
	}

	str("server.grpc_addr", &cfg.Server.GRPCAddr)
	str("server.http_addr", &cfg.Server.HTTPAddr)
	str("server.log_level", &cfg.Server.LogLevel)
	str("server.log_format", &cfg.Server.LogFormat)

	str("engine.min_order_amount", &cfg.Engine.MinOrderAmount)
	str("engine.max_order_amount", &cfg.Engine.MaxOrderAmount)
	str("engine.max_price_deviation", &cfg.Engine.MaxPriceDeviation)
	str("engine.default_price", &cfg.Engine.DefaultPrice)

	str("store.backend", &cfg.Store.Backend)
	str("store.redis.addr", &cfg.Store.Redis.Addr)
	str("store.redis.password", &cfg.Store.Redis.Password)
	num("store.redis.db", &cfg.Store.Redis.DB)
	str("store.redis.prefix", &cfg.Store.Redis.Prefix)

	str("node.url", &cfg.Node.URL)
	str("node.user", &cfg.Node.User)
	str("node.password", &cfg.Node.Password)
	dur("node.timeout", &cfg.Node.Timeout)
	num("node.max_retries", &cfg.Node.MaxRetries)
	flt("node.requests_per_second", &cfg.Node.RequestsPerSecond)

	str("price_feed.url", &cfg.PriceFeed.URL)
	dur("price_feed.cache_ttl", &cfg.PriceFeed.CacheTTL)

	boolean("kafka.enabled", &cfg.Kafka.Enabled)
	list("kafka.brokers", &cfg.Kafka.Brokers)
	str("kafka.event_topic", &cfg.Kafka.EventTopic)
	str("kafka.transfer_topic", &cfg.Kafka.TransferTopic)
	boolean("kafka.settle_via_queue", &cfg.Kafka.SettleViaQueue)
	str("kafka.consumer_group", &cfg.Kafka.ConsumerGroup)

	str("auth.jwt_secret", &cfg.Auth.JWTSecret)

	flt("http.rate_limit", &cfg.HTTP.RateLimit)
	num("http.rate_burst", &cfg.HTTP.RateBurst)
	list("http.cors_origins", &cfg.HTTP.CORSOrigins)

	boolean("otel.enabled", &cfg.OTel.Enabled)
	str("otel.endpoint", &cfg.OTel.Endpoint)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for values the server cannot start with
func (c *Config) Validate() error {
	if c.Server.GRPCAddr == "" {
		return fmt.Errorf("server.grpc_addr must not be empty")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr must not be empty")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Kafka.Enabled || c.Kafka.SettleViaQueue {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers must not be empty")
		}
	}
	if c.Kafka.SettleViaQueue && c.Kafka.TransferTopic == "" {
		return fmt.Errorf("kafka.transfer_topic must not be empty")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit must not be negative")
	}
	return nil
}

// Policy converts the engine section into core limits
func (c *Config) Policy() (core.Policy, error) {
	minAmount, err := core.ParseAmount(c.Engine.MinOrderAmount)
	if err != nil {
		return core.Policy{}, fmt.Errorf("engine.min_order_amount: %w", err)
	}
	maxAmount, err := core.ParseAmount(c.Engine.MaxOrderAmount)
	if err != nil {
		return core.Policy{}, fmt.Errorf("engine.max_order_amount: %w", err)
	}
	if maxAmount.LessThan(minAmount) {
		return core.Policy{}, fmt.Errorf("engine.max_order_amount is below engine.min_order_amount")
	}
	maxDev, err := fpdecimal.FromString(c.Engine.MaxPriceDeviation)
	if err != nil {
		return core.Policy{}, fmt.Errorf("engine.max_price_deviation: %w", err)
	}
	if fpdecimal.Zero.GreaterThan(maxDev) {
		return core.Policy{}, fmt.Errorf("engine.max_price_deviation must not be negative")
	}
	defaultPrice, err := decimal.NewFromString(c.Engine.DefaultPrice)
	if err != nil || !defaultPrice.IsPositive() {
		return core.Policy{}, fmt.Errorf("engine.default_price must be a positive number")
	}
	return core.Policy{
		MinOrderAmount:    minAmount,
		MaxOrderAmount:    maxAmount,
		MaxPriceDeviation: maxDev,
		DefaultPrice:      defaultPrice,
	}, nil
}
