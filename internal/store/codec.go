package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/macro-cli/internal/model"
)

// mealColumns is the column order shared by both backends.
var mealColumns = []string{
	"id", "query", "servings", "calories", "protein_g", "carbs_g", "fat_g",
	"source", "confidence", "result", "breakdown", "eaten_at", "created_at",
}

// stamp fills the ID and timestamps of a new meal.
func stamp(m *model.Meal, now time.Time) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = now.UTC().Truncate(time.Second)
	if m.EatenAt.IsZero() {
		m.EatenAt = m.CreatedAt
	}
	m.EatenAt = m.EatenAt.UTC().Truncate(time.Second)
	if m.Servings <= 0 {
		m.Servings = 1
	}
}

// mealRow flattens a meal into column values. The totals are denormalized
// next to the JSON result so they can be filtered and summed in SQL.
func mealRow(m *model.Meal) ([]any, error) {
	resultJSON, err := json.Marshal(m.Result)
	if err != nil {
		return nil, eris.Wrap(err, "marshal result")
	}
	breakdown := m.Breakdown
	if breakdown == nil {
		breakdown = []model.MealItem{}
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return nil, eris.Wrap(err, "marshal breakdown")
	}
	return []any{
		m.ID, m.Query, m.Servings,
		m.Result.Calories, m.Result.ProteinG, m.Result.CarbsG, m.Result.FatG,
		string(m.Result.Source), m.Result.Confidence,
		string(resultJSON), string(breakdownJSON),
		m.EatenAt.UTC(), m.CreatedAt.UTC(),
	}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

// scanMeal reads the columns selected by selectMeal. Totals come from the
// JSON result; the denormalized columns are not read back.
func scanMeal(row scannable) (*model.Meal, error) {
	var m model.Meal
	var resultJSON, breakdownJSON string
	if err := row.Scan(&m.ID, &m.Query, &m.Servings, &resultJSON, &breakdownJSON, &m.EatenAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resultJSON), &m.Result); err != nil {
		return nil, eris.Wrap(err, "unmarshal result")
	}
	if err := json.Unmarshal([]byte(breakdownJSON), &m.Breakdown); err != nil {
		return nil, eris.Wrap(err, "unmarshal breakdown")
	}
	m.EatenAt = m.EatenAt.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}
