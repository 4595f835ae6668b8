// Package fusion reconciles macro results from multiple providers into one.
package fusion

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/validate"
)

// Reconciliation thresholds.
const (
	// TrustedConfidence is the confidence at which the top result is returned
	// without comparing it to the runner-up.
	TrustedConfidence = 70.0
	// MaxCalorieVariance is the relative calorie spread above which two
	// sources are considered to disagree.
	MaxCalorieVariance = 0.25

	disagreementPenalty = 15.0
	agreementBonus      = 10.0
	agreementCeiling    = 95.0
)

// HighVarianceFlag is attached when the top two sources disagree.
const HighVarianceFlag = "high variance between sources"

// ErrNoResults is returned when Fuse is called with no candidates.
var ErrNoResults = eris.New("fusion: no results to fuse")

// Fuse picks the final result from validated candidates. The highest
// confidence result wins; when it is below TrustedConfidence its confidence is
// raised or lowered depending on whether the runner-up corroborates it. Lower
// ranked results are discarded, never averaged in.
func Fuse(results []*model.MacroResult) (*model.MacroResult, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	if len(results) == 1 {
		return results[0], nil
	}

	ranked := make([]*model.MacroResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	best, second := ranked[0], ranked[1]
	if best.Confidence >= TrustedConfidence {
		return best, nil
	}

	if CalorieVariance(best, second) > MaxCalorieVariance {
		best.AddFlags(HighVarianceFlag)
		best.Confidence = math.Max(best.Confidence-disagreementPenalty, validate.MinConfidence)
	} else {
		best.Confidence = math.Min(best.Confidence+agreementBonus, agreementCeiling)
	}
	return best, nil
}

// CalorieVariance is the relative calorie difference between two results.
func CalorieVariance(a, b *model.MacroResult) float64 {
	denom := math.Max(a.Calories, b.Calories)
	if denom <= 0 {
		return 0
	}
	return math.Abs(a.Calories-b.Calories) / denom
}
