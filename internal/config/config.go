// Package config assembles the client configuration from three layers:
// compiled-in defaults, an optional YAML file, and CAFFINITY_* env
// vars (with an optional .env file loaded first). Later layers win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds everything the client needs at runtime. Monetary
// fields are kept as strings and parsed through the accessors so a
// bad value fails loudly at startup rather than mid-checkout.
type Config struct {
	// BaseURL is the root of the storefront backend.
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL"`

	// DataDir holds the sqlite state database.
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR"`

	// RequestTimeout bounds every backend call.
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`

	// ShippingFee is the flat per-order delivery fee in pesos.
	ShippingFee string `yaml:"shipping_fee" envconfig:"SHIPPING_FEE"`

	// TaxRate is the VAT rate applied to the subtotal.
	TaxRate string `yaml:"tax_rate" envconfig:"TAX_RATE"`

	// PaymentDelay simulates the processing window between creating
	// and completing a payment.
	PaymentDelay time.Duration `yaml:"payment_delay" envconfig:"PAYMENT_DELAY"`

	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		BaseURL:        "http://localhost:8080",
		RequestTimeout: 10 * time.Second,
		ShippingFee:    "50.00",
		TaxRate:        "0.12",
		PaymentDelay:   3 * time.Second,
		LogLevel:       "info",
	}
}

// Load builds the configuration. path names a YAML file to layer over
// the defaults; empty means no file. Env vars override both.
func Load(path string) (Config, error) {
	cfg := Default()

	// Missing .env is the common case, not an error.
	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("caffinity", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = filepath.Join(base, "caffinity")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that cannot fail lazily.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	if _, err := decimal.NewFromString(c.ShippingFee); err != nil {
		return fmt.Errorf("shipping_fee %q: %w", c.ShippingFee, err)
	}
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return fmt.Errorf("tax_rate %q: %w", c.TaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax_rate %q: must be between 0 and 1", c.TaxRate)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}

// ShippingFeeAmount returns the parsed shipping fee. Validate has
// already vouched for the string.
func (c Config) ShippingFeeAmount() decimal.Decimal {
	return decimal.RequireFromString(c.ShippingFee)
}

// TaxRateValue returns the parsed tax rate.
func (c Config) TaxRateValue() decimal.Decimal {
	return decimal.RequireFromString(c.TaxRate)
}

// DatabasePath returns the sqlite file location under DataDir.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "caffinity.db")
}
