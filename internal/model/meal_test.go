package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMeal_ScalesByServings(t *testing.T) {
	r := MacroResult{
		Calories:   300,
		ProteinG:   12.5,
		CarbsG:     30,
		FatG:       10,
		Source:     SourceUSDA,
		ItemMacros: []Macros{{Calories: 300, ProteinG: 12.5, CarbsG: 30, FatG: 10}},
		Confidence: 80,
	}
	eaten := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))

	m := NewMeal("oatmeal", 1.5, r, []MealItem{{Name: "oatmeal", Macros: r.Macros()}}, eaten)

	assert.Equal(t, 1.5, m.Servings)
	assert.InDelta(t, 450, m.Result.Calories, 0.001)
	assert.InDelta(t, 18.8, m.Result.ProteinG, 0.001)
	assert.InDelta(t, 450, m.Result.ItemMacros[0].Calories, 0.001)
	require.Len(t, m.Breakdown, 1)
	assert.InDelta(t, 15, m.Breakdown[0].Macros.FatG, 0.001)
	assert.Equal(t, time.UTC, m.EatenAt.Location())
	assert.Equal(t, 80.0, m.Result.Confidence)

	// The source result is not modified.
	assert.InDelta(t, 300, r.Calories, 0.001)
	assert.InDelta(t, 300, r.ItemMacros[0].Calories, 0.001)
}

func TestNewMeal_DefaultServing(t *testing.T) {
	m := NewMeal("apple", 0, MacroResult{Calories: 95}, nil, time.Now())
	assert.Equal(t, 1.0, m.Servings)
	assert.InDelta(t, 95, m.Result.Calories, 0.001)
	assert.Empty(t, m.Breakdown)
}

func TestSumMeals(t *testing.T) {
	meals := []Meal{
		{Result: MacroResult{Calories: 100.04, ProteinG: 5}},
		{Result: MacroResult{Calories: 200.04, FatG: 3}},
	}
	total := SumMeals(meals)
	assert.InDelta(t, 300.1, total.Calories, 0.001)
	assert.InDelta(t, 5, total.ProteinG, 0.001)
	assert.InDelta(t, 3, total.FatG, 0.001)
}
