package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMacros_AddScale(t *testing.T) {
	a := Macros{Calories: 100, ProteinG: 5, CarbsG: 10, FatG: 2}
	b := Macros{Calories: 50, ProteinG: 1, CarbsG: 4, FatG: 3}

	assert.Equal(t, Macros{Calories: 150, ProteinG: 6, CarbsG: 14, FatG: 5}, a.Add(b))
	assert.Equal(t, Macros{Calories: 200, ProteinG: 10, CarbsG: 20, FatG: 4}, a.Scale(2))
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{12.34, 12.3},
		{12.36, 12.4},
		{0, 0},
		{-3, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round1(tt.in))
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 10.0, Clamp(4, 10, 100))
	assert.Equal(t, 100.0, Clamp(140, 10, 100))
	assert.Equal(t, 55.0, Clamp(55, 10, 100))
}

func TestMacroResult_Round(t *testing.T) {
	r := &MacroResult{
		Calories:   143.04,
		ProteinG:   12.56,
		CarbsG:     -0.2,
		FatG:       9.51,
		ItemMacros: []Macros{{Calories: 71.52, ProteinG: 6.28}},
		Confidence: 87.46,
	}
	r.Round()

	assert.Equal(t, Macros{Calories: 143, ProteinG: 12.6, CarbsG: 0, FatG: 9.5}, r.Macros())
	assert.Equal(t, 71.5, r.ItemMacros[0].Calories)
	assert.Equal(t, 6.3, r.ItemMacros[0].ProteinG)
	assert.Equal(t, 87.5, r.Confidence)
}

func TestMacroResult_AddFlags(t *testing.T) {
	r := &MacroResult{}
	r.AddFlags("high variance between sources", "low protein")
	r.AddFlags("low protein", "tiny portion")

	assert.Equal(t, []string{"high variance between sources", "low protein", "tiny portion"}, r.ValidationFlags)
}
