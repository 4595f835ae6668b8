package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/resilience"
	"github.com/sells-group/macro-cli/internal/resolver"
	"github.com/sells-group/macro-cli/internal/store"
	"github.com/sells-group/macro-cli/pkg/nutrition"
)

// fakeProvider answers from a fixed query table.
type fakeProvider struct {
	source  model.Source
	answers map[string]model.MacroResult
}

func (f fakeProvider) Name() model.Source { return f.source }

func (f fakeProvider) Fetch(_ context.Context, query string) (*model.MacroResult, error) {
	r, ok := f.answers[query]
	if !ok {
		return nil, nil
	}
	r.Source = f.source
	r.Items = append([]string(nil), r.Items...)
	return &r, nil
}

var twoEggs = model.MacroResult{
	Calories:   143,
	ProteinG:   12.6,
	CarbsG:     0.7,
	FatG:       9.5,
	Items:      []string{"Egg, whole, raw, fresh"},
	Confidence: 90,
}

var burgerMeal = model.MacroResult{
	Calories:   883,
	ProteinG:   30.2,
	CarbsG:     88,
	FatG:       47.8,
	Items:      []string{"big mac", "french fries"},
	Confidence: 85,
}

func newTestEngine() *engine {
	reg := nutrition.NewRegistry(fakeProvider{
		source: model.SourceUSDA,
		answers: map[string]model.MacroResult{
			"2 large eggs": twoEggs,
		},
	}, fakeProvider{
		source: model.SourceNutritionix,
		answers: map[string]model.MacroResult{
			"big mac with fries": burgerMeal,
		},
	})
	breakers := resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	breakers.Get(string(model.SourceUSDA))
	breakers.Get(string(model.SourceNutritionix))
	return &engine{
		Providers: reg,
		Breakers:  breakers,
		Resolver:  resolver.New(reg, resolver.WithCallTimeout(time.Second)),
	}
}

func newTestStore(t *testing.T) store.MealStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "meals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestAPI(t *testing.T) *api {
	t.Helper()
	return newAPI(newTestEngine(), newTestStore(t))
}
