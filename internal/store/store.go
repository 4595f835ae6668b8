// Package store persists logged meals.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/macro-cli/internal/model"
)

// DefaultListLimit caps ListMeals when the filter sets no limit.
const DefaultListLimit = 100

// ErrMealNotFound is returned when a meal ID does not exist.
var ErrMealNotFound = eris.New("meal not found")

// MealFilter specifies criteria for listing meals. Zero times are unbounded.
type MealFilter struct {
	Since time.Time `json:"since,omitempty"`
	Until time.Time `json:"until,omitempty"`
	Limit int       `json:"limit,omitempty"`
}

func (f MealFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// MealStore defines the persistence interface for the meal log.
type MealStore interface {
	// SaveMeal assigns an ID and creation time and stores m.
	SaveMeal(ctx context.Context, m *model.Meal) error
	// SaveMeals stores several meals at once.
	SaveMeals(ctx context.Context, meals []*model.Meal) error
	GetMeal(ctx context.Context, id string) (*model.Meal, error)
	// ListMeals returns meals ordered by eaten_at, newest first.
	ListMeals(ctx context.Context, filter MealFilter) ([]model.Meal, error)
	DeleteMeal(ctx context.Context, id string) error

	Migrate(ctx context.Context) error
	Close() error
}
