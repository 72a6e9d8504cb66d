// Package config loads marketplace configuration from a YAML file with
// environment overrides. A .env file, when present, is folded into the
// environment before decoding.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full marketplace configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Market  MarketConfig  `yaml:"market"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Stats   StatsConfig   `yaml:"stats"`
	Audit   AuditConfig   `yaml:"audit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host      string  `yaml:"host" env:"MARKET_SERVER_HOST"`
	Port      int     `yaml:"port" env:"MARKET_SERVER_PORT"`
	RateLimit float64 `yaml:"rate_limit" env:"MARKET_SERVER_RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"MARKET_SERVER_RATE_BURST"`
	// AllowedOrigins lists CORS origins; "*" allows any, empty disables.
	AllowedOrigins []string `yaml:"allowed_origins" env:"MARKET_SERVER_ALLOWED_ORIGINS"`
}

// Addr returns the host:port the server binds to.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MarketConfig fixes the engine identities and the initial listing fee.
type MarketConfig struct {
	Operator      string `yaml:"operator" env:"MARKET_OPERATOR"`
	Escrow        string `yaml:"escrow" env:"MARKET_ESCROW"`
	ListingPrice  string `yaml:"listing_price" env:"MARKET_LISTING_PRICE"`
	StatsSchedule string `yaml:"stats_schedule" env:"MARKET_STATS_SCHEDULE"`
}

// ListingPriceWei parses the configured listing fee.
func (c MarketConfig) ListingPriceWei() (*big.Int, error) {
	s := strings.TrimSpace(c.ListingPrice)
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid listing price %q", c.ListingPrice)
	}
	return v, nil
}

// StorageConfig selects the backing store.
type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver      string `yaml:"driver" env:"MARKET_STORAGE_DRIVER"`
	PostgresDSN string `yaml:"postgres_dsn" env:"MARKET_POSTGRES_DSN"`
}

// AuthConfig controls operator authentication for the admin surface.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"MARKET_JWT_SECRET"`
	// OperatorPasswordHash is a bcrypt hash of the operator password.
	OperatorPasswordHash string `yaml:"operator_password_hash" env:"MARKET_OPERATOR_PASSWORD_HASH"`
	TokenTTLMinutes      int    `yaml:"token_ttl_minutes" env:"MARKET_TOKEN_TTL_MINUTES"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"MARKET_LOG_LEVEL"`
	Format string `yaml:"format" env:"MARKET_LOG_FORMAT"`
}

// StatsConfig controls the metrics refresh job.
type StatsConfig struct {
	Schedule string `yaml:"schedule" env:"MARKET_STATS_SCHEDULE"`
}

// AuditConfig controls the admin audit trail.
type AuditConfig struct {
	File string `yaml:"file" env:"MARKET_AUDIT_FILE"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			RateLimit:      50,
			RateBurst:      100,
			AllowedOrigins: []string{"*"},
		},
		Market: MarketConfig{
			Operator:     "0x0000000000000000000000000000000000000001",
			Escrow:       "0x0000000000000000000000000000000000000002",
			ListingPrice: "10000000000000000",
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Auth: AuthConfig{
			TokenTTLMinutes: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Stats: StatsConfig{
			Schedule: "@every 1m",
		},
		Audit: AuditConfig{
			File: "",
		},
	}
}

// Load reads configuration from the given YAML path (optional) and then
// applies environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	// Overrides are optional, so an environment with none set is fine.
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return Config{}, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Market.Operator) == "" {
		return fmt.Errorf("market operator identity is required")
	}
	if strings.TrimSpace(c.Market.Escrow) == "" {
		return fmt.Errorf("market escrow identity is required")
	}
	if strings.EqualFold(c.Market.Operator, c.Market.Escrow) {
		return fmt.Errorf("operator and escrow identities must differ")
	}
	if _, err := c.Market.ListingPriceWei(); err != nil {
		return err
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "", "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return fmt.Errorf("postgres driver requires a DSN")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
