package marketmaker

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the market maker service
type Config struct {
	// gRPC connection settings
	RuneBookGRPCAddr string
	RequestTimeout   time.Duration

	// Market settings
	RuneID         string // e.g. "840000:1"
	PriceSourceURL string // price service serving /api/v1/runes/<id>/price
	MakerAddress   string // settlement address quotes are placed from

	// Market making parameters
	NumLevels           int
	BaseSpreadPercent   float64
	PriceStepPercent    float64
	MaxDeviationPercent float64 // quotes stay inside the engine's deviation band
	OrderSize           string  // whole rune units
	UpdateInterval      time.Duration

	// HTTP client settings
	HTTPTimeout time.Duration
	MaxRetries  int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("RUNEBOOK_GRPC_ADDR", "localhost:50051")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 5)
	v.SetDefault("RUNE_ID", "840000:1")
	v.SetDefault("PRICE_SOURCE_URL", "http://localhost:8090")
	v.SetDefault("MAKER_ADDRESS", "bc1qmarketmaker")
	v.SetDefault("NUM_LEVELS", 3)
	v.SetDefault("BASE_SPREAD_PERCENT", 1.0)
	v.SetDefault("PRICE_STEP_PERCENT", 1.0)
	v.SetDefault("MAX_DEVIATION_PERCENT", 10.0)
	v.SetDefault("ORDER_SIZE", "1000")
	v.SetDefault("UPDATE_INTERVAL_SECONDS", 10)
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 5)
	v.SetDefault("MAX_RETRIES", 3)

	// Allow environment variables
	v.AutomaticEnv()

	cfg := &Config{
		RuneBookGRPCAddr:    v.GetString("RUNEBOOK_GRPC_ADDR"),
		RequestTimeout:      time.Duration(v.GetInt("REQUEST_TIMEOUT_SECONDS")) * time.Second,
		RuneID:              v.GetString("RUNE_ID"),
		PriceSourceURL:      v.GetString("PRICE_SOURCE_URL"),
		MakerAddress:        v.GetString("MAKER_ADDRESS"),
		NumLevels:           v.GetInt("NUM_LEVELS"),
		BaseSpreadPercent:   v.GetFloat64("BASE_SPREAD_PERCENT"),
		PriceStepPercent:    v.GetFloat64("PRICE_STEP_PERCENT"),
		MaxDeviationPercent: v.GetFloat64("MAX_DEVIATION_PERCENT"),
		OrderSize:           v.GetString("ORDER_SIZE"),
		UpdateInterval:      time.Duration(v.GetInt("UPDATE_INTERVAL_SECONDS")) * time.Second,
		HTTPTimeout:         time.Duration(v.GetInt("HTTP_TIMEOUT_SECONDS")) * time.Second,
		MaxRetries:          v.GetInt("MAX_RETRIES"),
	}

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.RuneBookGRPCAddr == "" {
		return fmt.Errorf("RUNEBOOK_GRPC_ADDR must not be empty")
	}
	if cfg.RuneID == "" {
		return fmt.Errorf("RUNE_ID must not be empty")
	}
	if cfg.PriceSourceURL == "" {
		return fmt.Errorf("PRICE_SOURCE_URL must not be empty")
	}
	if cfg.MakerAddress == "" {
		return fmt.Errorf("MAKER_ADDRESS must not be empty")
	}
	if cfg.NumLevels <= 0 {
		return fmt.Errorf("NUM_LEVELS must be positive")
	}
	if cfg.BaseSpreadPercent <= 0 {
		return fmt.Errorf("BASE_SPREAD_PERCENT must be positive")
	}
	if cfg.PriceStepPercent <= 0 {
		return fmt.Errorf("PRICE_STEP_PERCENT must be positive")
	}
	if cfg.MaxDeviationPercent <= 0 {
		return fmt.Errorf("MAX_DEVIATION_PERCENT must be positive")
	}
	size, err := decimal.NewFromString(cfg.OrderSize)
	if err != nil || !size.IsPositive() || !size.IsInteger() {
		return fmt.Errorf("ORDER_SIZE must be a positive whole number")
	}
	if cfg.UpdateInterval <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL_SECONDS must be positive")
	}
	return nil
}
