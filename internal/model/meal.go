package model

import "time"

// Meal is a resolved meal persisted by the meal log.
type Meal struct {
	ID        string      `json:"id" yaml:"id"`
	Query     string      `json:"query" yaml:"query"`
	Servings  float64     `json:"servings" yaml:"servings"`
	Result    MacroResult `json:"result" yaml:"result"`
	Breakdown []MealItem  `json:"breakdown" yaml:"breakdown"`
	EatenAt   time.Time   `json:"eaten_at" yaml:"eaten_at"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
}

// MealItem is one line item of a logged meal with its estimated macros.
type MealItem struct {
	Name   string `json:"name" yaml:"name"`
	Macros Macros `json:"macros" yaml:"macros"`
}

// NewMeal builds a meal entry for a resolved result. The result and its
// breakdown are scaled by servings (values <= 0 mean one serving) and
// re-rounded.
func NewMeal(query string, servings float64, result MacroResult, breakdown []MealItem, eatenAt time.Time) Meal {
	if servings <= 0 {
		servings = 1
	}

	scaled := result
	scaled.SetMacros(result.Macros().Scale(servings).Rounded())
	if len(result.ItemMacros) > 0 {
		scaled.ItemMacros = make([]Macros, len(result.ItemMacros))
		for i, m := range result.ItemMacros {
			scaled.ItemMacros[i] = m.Scale(servings).Rounded()
		}
	}

	items := make([]MealItem, len(breakdown))
	for i, it := range breakdown {
		items[i] = MealItem{Name: it.Name, Macros: it.Macros.Scale(servings).Rounded()}
	}

	return Meal{
		Query:     query,
		Servings:  servings,
		Result:    scaled,
		Breakdown: items,
		EatenAt:   eatenAt.UTC(),
	}
}

// Totals returns the meal's macros.
func (m Meal) Totals() Macros {
	return m.Result.Macros()
}

// SumMeals adds up the totals of meals, rounded.
func SumMeals(meals []Meal) Macros {
	var total Macros
	for _, m := range meals {
		total = total.Add(m.Totals())
	}
	return total.Rounded()
}
