package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "macros.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrent)
	assert.Equal(t, 11, cfg.Providers.TimeoutSecs)
	assert.Equal(t, 1, cfg.Providers.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Providers.Circuit.FailureThreshold)
	assert.Equal(t, "https://trackapi.nutritionix.com", cfg.Providers.Nutritionix.BaseURL)
	assert.Equal(t, "DEMO_KEY", cfg.Providers.USDA.APIKey)
	assert.Equal(t, 25, cfg.Providers.USDA.PageSize)
	assert.Equal(t, "https://world.openfoodfacts.org", cfg.Providers.OpenFoodFacts.BaseURL)
	assert.NotEmpty(t, cfg.Providers.OpenFoodFacts.UserAgent)
	assert.False(t, cfg.Providers.Nutritionix.Enabled())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
providers:
  timeout_secs: 5
  nutritionix:
    app_id: abc
    app_key: xyz
store:
  driver: postgres
  database_url: postgres://localhost/macros
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/macros", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Providers.TimeoutSecs)
	assert.True(t, cfg.Providers.Nutritionix.Enabled())
	// Defaults still apply for unset values
	assert.Equal(t, 25, cfg.Providers.USDA.PageSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("MACRO_STORE_DRIVER", "postgres")
	t.Setenv("MACRO_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvCredentials(t *testing.T) {
	chdirTemp(t)

	t.Setenv("MACRO_PROVIDERS_NUTRITIONIX_APP_ID", "env-id")
	t.Setenv("MACRO_PROVIDERS_NUTRITIONIX_APP_KEY", "env-key")
	t.Setenv("MACRO_PROVIDERS_USDA_API_KEY", "usda-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-id", cfg.Providers.Nutritionix.AppID)
	assert.Equal(t, "env-key", cfg.Providers.Nutritionix.AppKey)
	assert.Equal(t, "usda-key", cfg.Providers.USDA.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MACRO_SERVER_PORT=3000\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("MACRO_SERVER_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "macros.db"
	cfg.Providers.TimeoutSecs = 11
	cfg.Batch.MaxConcurrent = 4
	cfg.Server.Port = 8080
	cfg.Log.Level = "info"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{ModeResolve, ModeStore, ModeServe} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateStore_Problems(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate(ModeStore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql" must be sqlite or postgres`)
	assert.Contains(t, err.Error(), "store.database_url is required")

	// Resolving does not touch the meal log.
	assert.NoError(t, cfg.Validate(ModeResolve))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate(ModeServe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_CommonChecks(t *testing.T) {
	cfg := validDefaults()
	cfg.Providers.TimeoutSecs = 0
	cfg.Batch.MaxConcurrent = 33
	cfg.Log.Level = ""

	err := cfg.Validate(ModeResolve)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "providers.timeout_secs must be > 0")
	assert.Contains(t, err.Error(), "batch.max_concurrent must be between 1 and 32")
	assert.Contains(t, err.Error(), "log.level is required")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
