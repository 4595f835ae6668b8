// Package model defines the shared data types for macro resolution and the meal log.
package model

import (
	"math"
	"slices"
)

// Source identifies the nutrition provider that produced a result.
type Source string

const (
	// SourceNutritionix is the composite/branded natural-language database.
	SourceNutritionix Source = "nutritionix"
	// SourceUSDA is the USDA FoodData Central government reference database.
	SourceUSDA Source = "usda"
	// SourceOpenFoodFacts is the Open Food Facts consumer product database.
	SourceOpenFoodFacts Source = "openfoodfacts"
)

// Macros is a calorie and macronutrient total.
type Macros struct {
	Calories float64 `json:"calories" yaml:"calories"`
	ProteinG float64 `json:"protein_g" yaml:"protein_g"`
	CarbsG   float64 `json:"carbs_g" yaml:"carbs_g"`
	FatG     float64 `json:"fat_g" yaml:"fat_g"`
}

// Add returns the field-wise sum of m and o.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		ProteinG: m.ProteinG + o.ProteinG,
		CarbsG:   m.CarbsG + o.CarbsG,
		FatG:     m.FatG + o.FatG,
	}
}

// Scale multiplies every field by f.
func (m Macros) Scale(f float64) Macros {
	return Macros{
		Calories: m.Calories * f,
		ProteinG: m.ProteinG * f,
		CarbsG:   m.CarbsG * f,
		FatG:     m.FatG * f,
	}
}

// Rounded returns m with every field rounded to one decimal place and
// negative values raised to zero.
func (m Macros) Rounded() Macros {
	return Macros{
		Calories: Round1(m.Calories),
		ProteinG: Round1(m.ProteinG),
		CarbsG:   Round1(m.CarbsG),
		FatG:     Round1(m.FatG),
	}
}

// PortionInfo describes the serving a provider resolved the query to.
type PortionInfo struct {
	DetectedSize       string  `json:"detected_size" yaml:"detected_size"`
	StandardizedAmount float64 `json:"standardized_amount" yaml:"standardized_amount"`
	Unit               string  `json:"unit" yaml:"unit"`
}

// MacroResult is the normalized answer every provider produces and the
// value returned to callers after fusion.
type MacroResult struct {
	Calories        float64      `json:"calories" yaml:"calories"`
	ProteinG        float64      `json:"protein_g" yaml:"protein_g"`
	CarbsG          float64      `json:"carbs_g" yaml:"carbs_g"`
	FatG            float64      `json:"fat_g" yaml:"fat_g"`
	Source          Source       `json:"source" yaml:"source"`
	Items           []string     `json:"items" yaml:"items"`
	ItemMacros      []Macros     `json:"item_macros,omitempty" yaml:"item_macros,omitempty"`
	Confidence      float64      `json:"confidence" yaml:"confidence"`
	PortionInfo     *PortionInfo `json:"portion_info,omitempty" yaml:"portion_info,omitempty"`
	ValidationFlags []string     `json:"validation_flags" yaml:"validation_flags"`
}

// Macros returns the result's totals.
func (r *MacroResult) Macros() Macros {
	return Macros{
		Calories: r.Calories,
		ProteinG: r.ProteinG,
		CarbsG:   r.CarbsG,
		FatG:     r.FatG,
	}
}

// SetMacros overwrites the result's totals.
func (r *MacroResult) SetMacros(m Macros) {
	r.Calories = m.Calories
	r.ProteinG = m.ProteinG
	r.CarbsG = m.CarbsG
	r.FatG = m.FatG
}

// Round normalizes totals and item macros to one decimal place.
func (r *MacroResult) Round() {
	r.SetMacros(r.Macros().Rounded())
	for i := range r.ItemMacros {
		r.ItemMacros[i] = r.ItemMacros[i].Rounded()
	}
	r.Confidence = Round1(r.Confidence)
}

// AddFlags appends flags, skipping duplicates already present.
func (r *MacroResult) AddFlags(flags ...string) {
	for _, f := range flags {
		if !slices.Contains(r.ValidationFlags, f) {
			r.ValidationFlags = append(r.ValidationFlags, f)
		}
	}
}

// Round1 rounds v to one decimal place, clamping negatives to zero.
func Round1(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return math.Round(v*10) / 10
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
