package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/macro-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS meals`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveMeal(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	m := testMeal("2 large eggs", 143, time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC))
	mock.ExpectExec(`INSERT INTO meals \(id, query, servings`).
		WithArgs(
			pgxmock.AnyArg(), "2 large eggs", 1.0,
			143.0, 10.0, 20.0, 5.0,
			"usda", 75.0,
			pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveMeal(context.Background(), m))
	assert.NotEmpty(t, m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveMeals_CopyFrom(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"meals"}, mealColumns).WillReturnResult(2)

	batch := []*model.Meal{
		testMeal("apple", 95, time.Now()),
		testMeal("yogurt", 100, time.Now()),
	}
	require.NoError(t, s.SaveMeals(context.Background(), batch))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveMeals_ShortCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"meals"}, mealColumns).WillReturnResult(1)

	batch := []*model.Meal{
		testMeal("apple", 95, time.Now()),
		testMeal("yogurt", 100, time.Now()),
	}
	err := s.SaveMeals(context.Background(), batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copied 1 of 2")
}

func TestPostgresStore_SaveMeals_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"meals"}, mealColumns).WillReturnError(errors.New("copy failed"))

	err := s.SaveMeals(context.Background(), []*model.Meal{testMeal("apple", 95, time.Now())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy meals")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMeal(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	eaten := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "query", "servings", "result", "breakdown", "eaten_at", "created_at"}).
		AddRow("meal-1", "banana", 2.0,
			`{"calories":210,"protein_g":2.6,"carbs_g":54,"fat_g":0.8,"source":"usda","items":["Bananas, raw"],"confidence":80,"validation_flags":[]}`,
			`[{"name":"banana","macros":{"calories":210,"protein_g":2.6,"carbs_g":54,"fat_g":0.8}}]`,
			eaten, eaten)
	mock.ExpectQuery(`SELECT id, query, servings, result::text, breakdown::text, eaten_at, created_at FROM meals WHERE id = \$1`).
		WithArgs("meal-1").
		WillReturnRows(rows)

	m, err := s.GetMeal(context.Background(), "meal-1")
	require.NoError(t, err)
	assert.Equal(t, "banana", m.Query)
	assert.Equal(t, 2.0, m.Servings)
	assert.Equal(t, 210.0, m.Result.Calories)
	assert.Equal(t, model.SourceUSDA, m.Result.Source)
	require.Len(t, m.Breakdown, 1)
	assert.Equal(t, 54.0, m.Breakdown[0].Macros.CarbsG)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMeal_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM meals WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetMeal(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMealNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListMeals_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	since := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)
	rows := pgxmock.NewRows([]string{"id", "query", "servings", "result", "breakdown", "eaten_at", "created_at"}).
		AddRow("m2", "pasta", 1.0, `{"calories":600,"source":"nutritionix","confidence":85,"validation_flags":[]}`, `[]`, since.Add(18*time.Hour), since.Add(18*time.Hour)).
		AddRow("m1", "oatmeal", 1.0, `{"calories":150,"source":"usda","confidence":80,"validation_flags":[]}`, `[]`, since.Add(8*time.Hour), since.Add(8*time.Hour))
	mock.ExpectQuery(`eaten_at >= \$1 AND eaten_at < \$2 ORDER BY eaten_at DESC, created_at DESC LIMIT \$3`).
		WithArgs(since, until, 10).
		WillReturnRows(rows)

	meals, err := s.ListMeals(context.Background(), MealFilter{Since: since, Until: until, Limit: 10})
	require.NoError(t, err)
	require.Len(t, meals, 2)
	assert.Equal(t, "pasta", meals[0].Query)
	assert.Equal(t, 750.0, model.SumMeals(meals).Calories)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListMeals_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE 1=1 ORDER BY eaten_at DESC, created_at DESC LIMIT \$1`).
		WithArgs(DefaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "query", "servings", "result", "breakdown", "eaten_at", "created_at"}))

	meals, err := s.ListMeals(context.Background(), MealFilter{})
	require.NoError(t, err)
	assert.Empty(t, meals)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteMeal(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM meals WHERE id = \$1`).
		WithArgs("meal-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM meals WHERE id = \$1`).
		WithArgs("meal-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteMeal(context.Background(), "meal-1"))
	err := s.DeleteMeal(context.Background(), "meal-1")
	assert.ErrorIs(t, err, ErrMealNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
