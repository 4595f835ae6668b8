package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/config"
	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/resilience"
	"github.com/sells-group/macro-cli/internal/resolver"
	"github.com/sells-group/macro-cli/pkg/nutrition"
)

// engine holds the provider registry, breakers, and resolver shared by the
// resolve/batch/log/serve commands.
type engine struct {
	Providers *nutrition.Registry
	Breakers  *resilience.ServiceBreakers
	Resolver  *resolver.Resolver
}

// initEngine builds every configured provider behind its own circuit
// breaker and retry policy.
func initEngine(pc config.ProvidersConfig) *engine {
	breakers := resilience.NewServiceBreakers(
		resilience.BreakerFromConfig(pc.Circuit),
	)
	timeout := time.Duration(pc.TimeoutSecs) * time.Second

	guarded := func(source model.Source, rps float64, baseURL string) []nutrition.Option {
		retry := resilience.RetryFromConfig(pc.Retry)
		retry.OnRetry = resilience.RetryLogger(string(source))
		opts := []nutrition.Option{
			nutrition.WithTimeout(timeout),
			nutrition.WithRateLimit(rps),
			nutrition.WithGuard(resilience.NewGuard(breakers.Get(string(source)), retry)),
		}
		if baseURL != "" {
			opts = append(opts, nutrition.WithBaseURL(baseURL))
		}
		return opts
	}

	reg := nutrition.NewRegistry()
	if pc.Nutritionix.Enabled() {
		reg.Register(nutrition.NewNutritionix(pc.Nutritionix.AppID, pc.Nutritionix.AppKey,
			guarded(model.SourceNutritionix, pc.Nutritionix.RateLimit, pc.Nutritionix.BaseURL)...))
	} else {
		zap.L().Warn("nutritionix credentials not set, composite/branded provider disabled")
	}

	reg.Register(nutrition.NewUSDA(pc.USDA.APIKey,
		guarded(model.SourceUSDA, pc.USDA.RateLimit, pc.USDA.BaseURL)...).
		WithPageSize(pc.USDA.PageSize))

	reg.Register(nutrition.NewOpenFoodFacts(pc.OpenFoodFacts.UserAgent,
		guarded(model.SourceOpenFoodFacts, pc.OpenFoodFacts.RateLimit, pc.OpenFoodFacts.BaseURL)...).
		WithPageSize(pc.OpenFoodFacts.PageSize))

	zap.L().Debug("providers registered", zap.Any("providers", reg.List()))

	return &engine{
		Providers: reg,
		Breakers:  breakers,
		Resolver:  resolver.New(reg, resolver.WithCallTimeout(timeout)),
	}
}
