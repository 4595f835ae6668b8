package fusion

import (
	"math"
	"strings"

	"github.com/sells-group/macro-cli/internal/model"
)

// Share is the fraction of each meal total attributed to one item.
type Share struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
}

// SplitRule assigns a fixed share to items whose name contains any keyword.
type SplitRule struct {
	Keywords []string
	Share    Share
}

// Matches reports whether the item name triggers the rule.
func (r SplitRule) Matches(item string) bool {
	s := strings.ToLower(item)
	for _, k := range r.Keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// DefaultSplitRules is checked in order; the first matching rule wins.
var DefaultSplitRules = []SplitRule{
	{Keywords: []string{"burger", "sandwich"}, Share: Share{Calories: 0.80, Protein: 0.85, Carbs: 0.70, Fat: 0.80}},
	{Keywords: []string{"ketchup", "sauce", "dressing"}, Share: Share{Calories: 0.05, Protein: 0.02, Carbs: 0.15, Fat: 0.05}},
	{Keywords: []string{"fries", "side"}, Share: Share{Calories: 0.30, Protein: 0.10, Carbs: 0.40, Fat: 0.30}},
}

// Unmatched items split calories evenly and the macros by these weights of
// the whole-meal totals divided by item count.
const (
	fallbackProteinWeight = 0.3
	fallbackCarbsWeight   = 0.5
	fallbackFatWeight     = 0.2
	minItemCalories       = 1.0
)

// ItemBreakdown returns per-item macros aligned with r.Items. Provider-native
// item macros are used when present and aligned; otherwise the split is
// estimated with DefaultSplitRules.
func ItemBreakdown(r *model.MacroResult) []model.MealItem {
	if len(r.Items) == 0 {
		return nil
	}

	var macros []model.Macros
	if len(r.ItemMacros) == len(r.Items) {
		macros = r.ItemMacros
	} else {
		macros = SplitItems(r.Items, r.Macros(), DefaultSplitRules)
	}

	out := make([]model.MealItem, len(r.Items))
	for i, name := range r.Items {
		out[i] = model.MealItem{Name: name, Macros: macros[i]}
	}
	return out
}

// SplitItems estimates each item's share of total using rules. A single item
// receives the whole total.
func SplitItems(items []string, total model.Macros, rules []SplitRule) []model.Macros {
	out := make([]model.Macros, len(items))
	if len(items) == 1 {
		out[0] = total.Rounded()
		return out
	}

	n := float64(len(items))
	for i, item := range items {
		var m model.Macros
		matched := false
		for _, rule := range rules {
			if rule.Matches(item) {
				m = model.Macros{
					Calories: total.Calories * rule.Share.Calories,
					ProteinG: total.ProteinG * rule.Share.Protein,
					CarbsG:   total.CarbsG * rule.Share.Carbs,
					FatG:     total.FatG * rule.Share.Fat,
				}
				matched = true
				break
			}
		}
		if !matched {
			m = model.Macros{
				Calories: total.Calories / n,
				ProteinG: total.ProteinG * fallbackProteinWeight / n,
				CarbsG:   total.CarbsG * fallbackCarbsWeight / n,
				FatG:     total.FatG * fallbackFatWeight / n,
			}
		}
		m = m.Rounded()
		m.Calories = math.Max(m.Calories, minItemCalories)
		out[i] = m
	}
	return out
}
