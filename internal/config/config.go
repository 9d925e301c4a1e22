package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HULLSCOUT_"

// Listing source modes.
const (
	SourceAuto     = "auto" // snapshot, falling back to live ESI per call
	SourceSnapshot = "snapshot"
	SourceLive     = "live"
)

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals

// Config holds application settings.
type Config struct {
	DataDir        string        `env:"DATA_DIR" envDefault:"data" validate:"required"`
	SnapshotDB     string        `env:"SNAPSHOT_DB" envDefault:"data/snapshot.db" validate:"required"`
	SnapshotURL    string        `env:"SNAPSHOT_URL" envDefault:"https://data.everef.net/market-orders/market-orders-latest.v3.csv.bz2" validate:"required,url"`
	SnapshotMaxAge time.Duration `env:"SNAPSHOT_MAX_AGE" envDefault:"1h" validate:"gte=0"`
	Source         string        `env:"SOURCE" envDefault:"auto" validate:"oneof=auto snapshot live"`

	ESIBaseURL     string        `env:"ESI_BASE_URL" envDefault:"https://esi.evetech.net/latest" validate:"required,url"`
	UserAgent      string        `env:"USER_AGENT" envDefault:"eve-hullscout/1.0 (github.com)"`
	RequestSpacing time.Duration `env:"REQUEST_SPACING" envDefault:"250ms" validate:"gte=0"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"3" validate:"min=1,max=10"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"500ms" validate:"gte=0"`
	MetadataTTL    time.Duration `env:"METADATA_TTL" envDefault:"6h" validate:"gt=0"`
	OrderCacheTTL  time.Duration `env:"ORDER_CACHE_TTL" envDefault:"5m" validate:"gt=0"`

	MetricsFile string `env:"METRICS_FILE"`
	Debug       bool   `env:"DEBUG"`

	Scan ScanConfig
}

// ScanConfig is one scan request. CLI flags override the loaded values and
// the result is validated before it reaches the engine.
type ScanConfig struct {
	Reference        string          `env:"REFERENCE" envDefault:"Sosala" validate:"required"`
	Baseline         string          `env:"BASELINE" envDefault:"Jita" validate:"required"`
	MaxJumps         int             `env:"MAX_JUMPS" envDefault:"4" validate:"gte=0,lte=50"`
	Types            string          `env:"TYPES" envDefault:"battleship" validate:"required"`
	MinPrice         decimal.Decimal `env:"MIN_PRICE" envDefault:"100000000" validate:"-"`
	MinRouteSecurity float64         `env:"MIN_ROUTE_SECURITY" envDefault:"0" validate:"gte=-1,lte=1"`
	Concurrency      int             `env:"CONCURRENCY" envDefault:"8" validate:"gte=1,lte=64"`
	MaxFailureRatio  float64         `env:"MAX_FAILURE_RATIO" envDefault:"0.5" validate:"gte=0,lte=1"`
	Timeout          time.Duration   `env:"SCAN_TIMEOUT" envDefault:"5m" validate:"gte=0"`
	PartialOnCancel  bool            `env:"PARTIAL_ON_CANCEL"`
	ExportDir        string          `env:"EXPORT_DIR"` // empty = no JSON export
}

// ErrNegativeMinPrice is returned by ScanConfig.Validate.
var ErrNegativeMinPrice = errors.New("min price must be >= 0")

// Default returns a Config with every field at its default.
func Default() *Config {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix, Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads .env (if present) and the process environment on top of the
// defaults, then validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("env.Parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the whole configuration, including Scan.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Scan.checkMinPrice()
}

// Validate checks a scan request.
func (s *ScanConfig) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid scan config: %w", err)
	}
	return s.checkMinPrice()
}

func (s *ScanConfig) checkMinPrice() error {
	if s.MinPrice.IsNegative() {
		return fmt.Errorf("%w, got %s", ErrNegativeMinPrice, s.MinPrice)
	}
	return nil
}
