package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/macro-cli/internal/config"
	"github.com/sells-group/macro-cli/internal/model"
)

func testProvidersConfig() config.ProvidersConfig {
	return config.ProvidersConfig{
		USDA:          config.USDAConfig{APIKey: "DEMO_KEY", PageSize: 25, RateLimit: 5},
		OpenFoodFacts: config.OpenFoodFactsConfig{PageSize: 10, RateLimit: 2},
		TimeoutSecs:   11,
		Retry:         config.RetryConfig{MaxAttempts: 1, InitialBackoffMs: 250, MaxBackoffMs: 2000},
		Circuit:       config.CircuitConfig{FailureThreshold: 5, ResetTimeoutSecs: 30},
	}
}

func TestInitEngine_WithoutNutritionix(t *testing.T) {
	eng := initEngine(testProvidersConfig())
	require.NotNil(t, eng.Resolver)

	assert.Equal(t, []model.Source{model.SourceOpenFoodFacts, model.SourceUSDA}, eng.Providers.List())
	assert.Nil(t, eng.Providers.Get(model.SourceNutritionix))
	assert.Len(t, eng.Breakers.States(), 2)
}

func TestInitEngine_WithNutritionix(t *testing.T) {
	pc := testProvidersConfig()
	pc.Nutritionix = config.NutritionixConfig{AppID: "id", AppKey: "key", RateLimit: 5}

	eng := initEngine(pc)
	assert.Equal(t, []model.Source{model.SourceNutritionix, model.SourceOpenFoodFacts, model.SourceUSDA}, eng.Providers.List())

	states := eng.Breakers.States()
	require.Len(t, states, 3)
	for _, s := range states {
		assert.Equal(t, "closed", s.State)
	}
}
