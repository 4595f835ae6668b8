package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ProvidersConfig configures the nutrition data providers.
type ProvidersConfig struct {
	Nutritionix   NutritionixConfig   `yaml:"nutritionix" mapstructure:"nutritionix"`
	USDA          USDAConfig          `yaml:"usda" mapstructure:"usda"`
	OpenFoodFacts OpenFoodFactsConfig `yaml:"openfoodfacts" mapstructure:"openfoodfacts"`
	TimeoutSecs   int                 `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retry         RetryConfig         `yaml:"retry" mapstructure:"retry"`
	Circuit       CircuitConfig       `yaml:"circuit" mapstructure:"circuit"`
}

// NutritionixConfig holds Nutritionix API credentials.
type NutritionixConfig struct {
	AppID     string  `yaml:"app_id" mapstructure:"app_id"`
	AppKey    string  `yaml:"app_key" mapstructure:"app_key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// Enabled reports whether credentials are present.
func (c NutritionixConfig) Enabled() bool {
	return c.AppID != "" && c.AppKey != ""
}

// USDAConfig holds FoodData Central settings.
type USDAConfig struct {
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	PageSize  int     `yaml:"page_size" mapstructure:"page_size"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// OpenFoodFactsConfig holds Open Food Facts settings. No key is required.
type OpenFoodFactsConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string  `yaml:"user_agent" mapstructure:"user_agent"`
	PageSize  int     `yaml:"page_size" mapstructure:"page_size"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RetryConfig controls per-call provider retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig controls per-provider circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// StoreConfig configures the meal log database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// BatchConfig configures batch resolution.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml, and MACRO_* environment
// variables, in increasing precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MACRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credentials default to empty so AutomaticEnv can see them.
	v.SetDefault("providers.nutritionix.app_id", "")
	v.SetDefault("providers.nutritionix.app_key", "")
	v.SetDefault("providers.nutritionix.base_url", "https://trackapi.nutritionix.com")
	v.SetDefault("providers.nutritionix.rate_limit", 5)
	v.SetDefault("providers.usda.api_key", "DEMO_KEY")
	v.SetDefault("providers.usda.base_url", "https://api.nal.usda.gov")
	v.SetDefault("providers.usda.page_size", 25)
	v.SetDefault("providers.usda.rate_limit", 5)
	v.SetDefault("providers.openfoodfacts.base_url", "https://world.openfoodfacts.org")
	v.SetDefault("providers.openfoodfacts.user_agent", "macro-cli/1.0 (https://github.com/sells-group/macro-cli)")
	v.SetDefault("providers.openfoodfacts.page_size", 10)
	v.SetDefault("providers.openfoodfacts.rate_limit", 2)
	v.SetDefault("providers.timeout_secs", 11)
	v.SetDefault("providers.retry.max_attempts", 1)
	v.SetDefault("providers.retry.initial_backoff_ms", 250)
	v.SetDefault("providers.retry.max_backoff_ms", 2000)
	v.SetDefault("providers.circuit.failure_threshold", 5)
	v.SetDefault("providers.circuit.reset_timeout_secs", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "macros.db")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validation modes, one per command family.
const (
	ModeResolve = "resolve"
	ModeStore   = "store"
	ModeServe   = "serve"
)

// Validate checks the settings a command mode needs and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case ModeResolve:
	case ModeStore:
		errs = append(errs, c.validateStore()...)
	case ModeServe:
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Providers.TimeoutSecs <= 0 {
		errs = append(errs, "providers.timeout_secs must be > 0")
	}
	if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 32 {
		errs = append(errs, "batch.max_concurrent must be between 1 and 32")
	}
	if c.Log.Level == "" {
		errs = append(errs, "log.level is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
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
