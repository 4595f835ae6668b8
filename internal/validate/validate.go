// Package validate rejects or down-scores physically implausible macro results.
//
// The penalty magnitudes and thresholds below are product-tuned heuristics
// carried over as named constants. They have no formal derivation and should
// be reviewed by a nutrition domain expert before being changed.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sells-group/macro-cli/internal/model"
)

// Confidence bounds applied to every verdict.
const (
	MaxConfidence = 100.0
	MinConfidence = 10.0
)

// Hard bounds.
const (
	maxCalories = 8000.0
	maxProteinG = 300.0
	maxCarbsG   = 800.0
	maxFatG     = 300.0

	proteinBoundsPenalty = 30.0
	carbsBoundsPenalty   = 20.0
	fatBoundsPenalty     = 20.0
)

// Energy consistency (4/4/9).
const (
	energyFlagVariance    = 0.25
	energyInvalidVariance = 0.50
	energyPenalty         = 25.0
)

// Protein density.
const (
	chickenMinProteinRatio = 0.05
	chickenLowProteinPen   = 40.0
	maxProteinRatio        = 0.85
	proteinSkewPenalty     = 30.0
)

// Food-specific heuristics.
const (
	chickenHighCalories     = 1200.0
	chickenMinProteinG      = 40.0
	chickenLowProteinPenBig = 50.0
	chickenMaxCalories      = 2000.0
	chickenExcessPenalty    = 40.0
	friedMinFatRatio        = 0.20
	friedLowFatPenalty      = 20.0
)

// Portion and zero-macro sanity.
const (
	minPlausibleCalories = 10.0
	tinyPortionPenalty   = 30.0
	zeroMacroCalories    = 50.0
	zeroMacroPenalty     = 40.0
)

var (
	chickenKeywords = []string{"chicken", "tender", "nugget", "wing"}
	friedKeywords   = []string{"fried", "tender"}

	zeroCalBeverageRe = regexp.MustCompile(`\b(water|tea|coffee|espresso|seltzer|diet soda|diet coke)\b`)
)

// Verdict is the outcome of validating one result.
type Verdict struct {
	IsValid    bool     `json:"is_valid"`
	Confidence float64  `json:"confidence"`
	Flags      []string `json:"flags"`
}

type check struct {
	verdict *Verdict
}

func (c check) penalize(amount float64, flag string) {
	c.verdict.Confidence -= amount
	c.verdict.Flags = append(c.verdict.Flags, flag)
}

func (c check) reject(amount float64, flag string) {
	c.penalize(amount, flag)
	c.verdict.IsValid = false
}

// Validate applies the plausibility rules to r in order. It is pure and
// provider-agnostic; query is the original meal description.
func Validate(r *model.MacroResult, query string) Verdict {
	v := &Verdict{IsValid: true, Confidence: MaxConfidence}
	c := check{verdict: v}
	q := strings.ToLower(query)

	cal, protein, carbs, fat := r.Calories, r.ProteinG, r.CarbsG, r.FatG

	// Hard bounds.
	if cal < 0 || cal > maxCalories {
		c.reject(0, fmt.Sprintf("calories %.0f outside plausible range 0-%.0f", cal, maxCalories))
	}
	if protein < 0 || protein > maxProteinG {
		c.penalize(proteinBoundsPenalty, fmt.Sprintf("protein %.1fg outside plausible range 0-%.0fg", protein, maxProteinG))
	}
	if carbs < 0 || carbs > maxCarbsG {
		c.penalize(carbsBoundsPenalty, fmt.Sprintf("carbs %.1fg outside plausible range 0-%.0fg", carbs, maxCarbsG))
	}
	if fat < 0 || fat > maxFatG {
		c.penalize(fatBoundsPenalty, fmt.Sprintf("fat %.1fg outside plausible range 0-%.0fg", fat, maxFatG))
	}

	// Energy consistency.
	variance := EnergyVariance(r)
	if variance > energyFlagVariance {
		c.penalize(energyPenalty, fmt.Sprintf("calories inconsistent with macros (%.0f%% variance)", variance*100))
		if variance > energyInvalidVariance {
			v.IsValid = false
		}
	}

	// Protein density.
	proteinRatio := (protein * 4) / math.Max(cal, 1)
	isChicken := containsAny(q, chickenKeywords)
	if strings.Contains(q, "chicken") && proteinRatio < chickenMinProteinRatio {
		c.penalize(chickenLowProteinPen, "protein implausibly low for chicken")
	}
	if proteinRatio > maxProteinRatio {
		c.penalize(proteinSkewPenalty, "protein share of calories implausibly high")
	}

	// Food-specific heuristics.
	if isChicken && cal > chickenHighCalories && protein < chickenMinProteinG {
		c.reject(chickenLowProteinPenBig, "high calories with low protein for a chicken dish")
	}
	if isChicken && cal > chickenMaxCalories {
		c.reject(chickenExcessPenalty, "calories implausibly high for a chicken dish")
	}
	if containsAny(q, friedKeywords) && cal > 0 && (fat*9)/cal < friedMinFatRatio {
		c.penalize(friedLowFatPenalty, "fat implausibly low for fried food")
	}

	// Portion sanity.
	if cal < minPlausibleCalories && !zeroCalBeverageRe.MatchString(q) {
		c.penalize(tinyPortionPenalty, "calories implausibly low for a food portion")
	}

	// Zero-macro sanity.
	if cal > zeroMacroCalories && protein == 0 && carbs == 0 && fat == 0 {
		c.reject(zeroMacroPenalty, "calories reported without any macronutrients")
	}

	v.Confidence = model.Clamp(v.Confidence, MinConfidence, MaxConfidence)
	return *v
}

// EnergyVariance is the relative difference between reported calories and
// the 4/4/9 estimate from macros, relative to reported calories.
func EnergyVariance(r *model.MacroResult) float64 {
	theoretical := r.ProteinG*4 + r.CarbsG*4 + r.FatG*9
	return math.Abs(r.Calories-theoretical) / math.Max(r.Calories, 1)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
