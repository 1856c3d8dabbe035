package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"
)

// Config represents the metering service configuration.
type Config struct {
	Server  ServerConfig
	CORS    CORSConfig
	Pricing PricingConfig
	Redis   RedisConfig
	Catalog CatalogConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"30"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// PricingConfig contains pricing-engine policy knobs.
type PricingConfig struct {
	MinTopUpUnits       int64   `env:"PRICING_MIN_TOPUP_UNITS"       envDefault:"10000"`
	NotifyThreshold     float64 `env:"PRICING_NOTIFY_THRESHOLD"      envDefault:"0.75"`
	PopupFrequencyHours int     `env:"PRICING_POPUP_FREQUENCY_HOURS" envDefault:"1"`
}

// RedisConfig contains the optional Redis ledger backend settings.
// An empty Addr selects the in-memory ledger store.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"      envDefault:"0"`
}

// CatalogConfig points at the YAML seed file for reference data.
type CatalogConfig struct {
	Path string `env:"CATALOG_PATH" envDefault:"catalog.yaml"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*PricingConfig
	*RedisConfig
	*CatalogConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Pricing,
		&cfg.Redis,
		&cfg.Catalog,
	}
}
