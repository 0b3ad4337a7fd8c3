// Package config loads application configuration and sets up logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Serper   SerperConfig   `yaml:"serper" mapstructure:"serper"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SerperConfig holds search provider credentials. An empty key degrades
// every search to an empty result list.
type SerperConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ResolverConfig tunes the resolution engine.
type ResolverConfig struct {
	AcceptanceThreshold float64 `yaml:"acceptance_threshold" mapstructure:"acceptance_threshold"`
	DomainRelaxation    float64 `yaml:"domain_relaxation" mapstructure:"domain_relaxation"`
	ResultCap           int     `yaml:"result_cap" mapstructure:"result_cap"`
	FetchTimeoutSecs    int     `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	IndexDomainLimit    int     `yaml:"index_domain_limit" mapstructure:"index_domain_limit"`
	AllowResellers      bool    `yaml:"allow_resellers" mapstructure:"allow_resellers"`
	ValidateConcurrency int     `yaml:"validate_concurrency" mapstructure:"validate_concurrency"`
	SearchRatePerSec    float64 `yaml:"search_rate_per_sec" mapstructure:"search_rate_per_sec"`
	OverridesPath       string  `yaml:"overrides_path" mapstructure:"overrides_path"`
	Weights             Weights `yaml:"weights" mapstructure:"weights"`
}

// Weights are the per-signal score contributions. Each signal contributes
// at most its weight; the total is clamped to 1.0.
type Weights struct {
	StructuredSKU     float64 `yaml:"structured_sku" mapstructure:"structured_sku"`
	StructuredNameCap float64 `yaml:"structured_name_cap" mapstructure:"structured_name_cap"`
	BodySKU           float64 `yaml:"body_sku" mapstructure:"body_sku"`
	BodyNDC           float64 `yaml:"body_ndc" mapstructure:"body_ndc"`
	TitleCap          float64 `yaml:"title_cap" mapstructure:"title_cap"`
	H1Cap             float64 `yaml:"h1_cap" mapstructure:"h1_cap"`
	DomainBonus       float64 `yaml:"domain_bonus" mapstructure:"domain_bonus"`
}

// ServerConfig configures the operator HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOURCEMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("serper.key", "")
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("resolver.acceptance_threshold", 0.65)
	v.SetDefault("resolver.domain_relaxation", 0.10)
	v.SetDefault("resolver.result_cap", 8)
	v.SetDefault("resolver.fetch_timeout_secs", 8)
	v.SetDefault("resolver.index_domain_limit", 5)
	v.SetDefault("resolver.allow_resellers", false)
	v.SetDefault("resolver.validate_concurrency", 4)
	v.SetDefault("resolver.search_rate_per_sec", 5)
	v.SetDefault("resolver.overrides_path", "")
	v.SetDefault("resolver.weights.structured_sku", 0.75)
	v.SetDefault("resolver.weights.structured_name_cap", 0.6)
	v.SetDefault("resolver.weights.body_sku", 0.6)
	v.SetDefault("resolver.weights.body_ndc", 0.6)
	v.SetDefault("resolver.weights.title_cap", 0.5)
	v.SetDefault("resolver.weights.h1_cap", 0.6)
	v.SetDefault("resolver.weights.domain_bonus", 0.1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
