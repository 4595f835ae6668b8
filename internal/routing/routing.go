// Package routing decides which nutrition providers to query for a meal
// description and in what order.
package routing

import (
	"slices"
	"strings"

	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/preprocess"
)

// Query-shape thresholds.
const (
	compositeMinWords = 4
	referenceMaxWords = 3
)

// compositeKeywords mark multi-ingredient dishes; matched as substrings so
// "cheeseburger" counts as a burger.
var compositeKeywords = []string{"burger", "pizza", "sandwich", "salad", "wrap", "burrito"}

// wholeFoodKeywords mark single whole foods; matched as whole words with
// simple plurals so "eggplant" is not an egg.
var wholeFoodKeywords = []string{"egg", "chicken", "fish", "beef", "rice", "apple", "banana", "broccoli", "milk"}

// Plan is the ordered set of providers to try for one query.
type Plan struct {
	// Primary providers are queried concurrently in the first pass.
	Primary []model.Source `json:"primary"`
	// Supplemental providers run alongside the primary pass.
	Supplemental []model.Source `json:"supplemental,omitempty"`
	// Fallback providers run only when the first pass produced nothing.
	Fallback []model.Source `json:"fallback,omitempty"`
	// Retry is the second-chance pass over primary-class providers that were
	// not tried, used when every earlier pass came back empty.
	Retry []model.Source `json:"retry,omitempty"`
}

// Select builds a Plan from the raw query and its preprocessed signals.
func Select(query string, q preprocess.Query) Plan {
	words := strings.Fields(strings.ToLower(query))

	composite := PrefersComposite(words, q)
	reference := PrefersReference(words, q)
	if !composite && !reference {
		// Unrecognized shapes go to the natural-language endpoint.
		composite = true
	}

	var plan Plan
	if composite {
		plan.Primary = append(plan.Primary, model.SourceNutritionix)
	}
	if reference {
		plan.Primary = append(plan.Primary, model.SourceUSDA)
	}

	if q.HasBrand() {
		plan.Supplemental = []model.Source{model.SourceOpenFoodFacts}
	} else {
		plan.Fallback = []model.Source{model.SourceOpenFoodFacts}
	}

	for _, s := range []model.Source{model.SourceNutritionix, model.SourceUSDA} {
		if !plan.has(s) {
			plan.Retry = append(plan.Retry, s)
		}
	}
	return plan
}

// PrefersComposite reports whether the composite/branded database suits the
// query: a brand, a "with" clause, a long description, or a composite dish.
func PrefersComposite(words []string, q preprocess.Query) bool {
	if q.HasBrand() || len(words) >= compositeMinWords {
		return true
	}
	for _, w := range words {
		if w == "with" {
			return true
		}
		for _, k := range compositeKeywords {
			if strings.Contains(w, k) {
				return true
			}
		}
	}
	return false
}

// PrefersReference reports whether the government reference database suits
// the query: a short, unbranded description of a whole food.
func PrefersReference(words []string, q preprocess.Query) bool {
	if q.HasBrand() || len(words) > referenceMaxWords {
		return false
	}
	for _, w := range words {
		for _, k := range wholeFoodKeywords {
			if w == k || w == k+"s" || w == k+"es" {
				return true
			}
		}
	}
	return false
}

// FirstPass returns the providers queried in the first concurrent pass.
func (p Plan) FirstPass() []model.Source {
	out := make([]model.Source, 0, len(p.Primary)+len(p.Supplemental))
	out = append(out, p.Primary...)
	return append(out, p.Supplemental...)
}

func (p Plan) has(s model.Source) bool {
	return slices.Contains(p.Primary, s)
}
