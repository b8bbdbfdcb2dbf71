package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Probes    ProbesConfig    `yaml:"probes" mapstructure:"probes"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProvidersConfig configures the statistics-provider adapters.
type ProvidersConfig struct {
	IMFBaseURL           string  `yaml:"imf_base_url" mapstructure:"imf_base_url"`
	WorldBankBaseURL     string  `yaml:"worldbank_base_url" mapstructure:"worldbank_base_url"`
	RESTCountriesBaseURL string  `yaml:"restcountries_base_url" mapstructure:"restcountries_base_url"`
	TimeoutSecs          int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec           float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst            int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// Timeout returns the per-request provider timeout.
func (p ProvidersConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// ProbesConfig configures the certificate and WHOIS probes.
type ProbesConfig struct {
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst    int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	Concurrency  int     `yaml:"concurrency" mapstructure:"concurrency"`
	CachePath    string  `yaml:"cache_path" mapstructure:"cache_path"`
	CacheTTLHrs  int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	DisableCache bool    `yaml:"disable_cache" mapstructure:"disable_cache"`
}

// Timeout returns the per-probe timeout.
func (p ProbesConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// CacheTTL returns the probe cache entry lifetime.
func (p ProbesConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLHrs) * time.Hour
}

// ServerConfig configures the admin trigger server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("VERIFACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("providers.imf_base_url", "https://www.imf.org/external/datamapper/api/v1")
	v.SetDefault("providers.worldbank_base_url", "https://api.worldbank.org/v2")
	v.SetDefault("providers.restcountries_base_url", "https://restcountries.com/v3.1")
	v.SetDefault("providers.timeout_secs", 60)
	v.SetDefault("providers.rate_per_sec", 2)
	v.SetDefault("providers.rate_burst", 1)
	v.SetDefault("probes.timeout_secs", 10)
	v.SetDefault("probes.rate_per_sec", 1)
	v.SetDefault("probes.rate_burst", 1)
	v.SetDefault("probes.concurrency", 4)
	v.SetDefault("probes.cache_path", "probe_cache.db")
	v.SetDefault("probes.cache_ttl_hours", 168)

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
