package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/macro-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testMeal(query string, calories float64, eatenAt time.Time) *model.Meal {
	m := model.NewMeal(query, 1, model.MacroResult{
		Calories:        calories,
		ProteinG:        10,
		CarbsG:          20,
		FatG:            5,
		Source:          model.SourceUSDA,
		Items:           []string{query},
		Confidence:      75,
		ValidationFlags: []string{},
	}, []model.MealItem{
		{Name: query, Macros: model.Macros{Calories: calories, ProteinG: 10, CarbsG: 20, FatG: 5}},
	}, eatenAt)
	return &m
}

func TestSQLite_SaveAndGetMeal(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	eaten := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	m := testMeal("2 large eggs", 143, eaten)
	require.NoError(t, st.SaveMeal(ctx, m))
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())

	got, err := st.GetMeal(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "2 large eggs", got.Query)
	assert.Equal(t, 1.0, got.Servings)
	assert.Equal(t, 143.0, got.Result.Calories)
	assert.Equal(t, model.SourceUSDA, got.Result.Source)
	assert.Equal(t, 75.0, got.Result.Confidence)
	require.Len(t, got.Breakdown, 1)
	assert.Equal(t, "2 large eggs", got.Breakdown[0].Name)
	assert.True(t, eaten.Equal(got.EatenAt), "eaten_at %s", got.EatenAt)
	assert.Equal(t, time.UTC, got.EatenAt.Location())
}

func TestSQLite_SaveMeal_DefaultsEatenAt(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	m := testMeal("banana", 105, time.Time{})
	m.EatenAt = time.Time{}
	require.NoError(t, st.SaveMeal(ctx, m))
	assert.Equal(t, m.CreatedAt, m.EatenAt)
}

func TestSQLite_GetMeal_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetMeal(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMealNotFound)
}

func TestSQLite_ListMeals_OrderAndFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	breakfast := testMeal("oatmeal", 150, base)
	lunch := testMeal("chicken salad", 400, base.Add(4*time.Hour))
	dinner := testMeal("pasta", 600, base.Add(10*time.Hour))
	for _, m := range []*model.Meal{breakfast, dinner, lunch} {
		require.NoError(t, st.SaveMeal(ctx, m))
	}

	all, err := st.ListMeals(ctx, MealFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "pasta", all[0].Query)
	assert.Equal(t, "chicken salad", all[1].Query)
	assert.Equal(t, "oatmeal", all[2].Query)

	window, err := st.ListMeals(ctx, MealFilter{
		Since: base.Add(time.Hour),
		Until: base.Add(10 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "chicken salad", window[0].Query)

	limited, err := st.ListMeals(ctx, MealFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "pasta", limited[0].Query)

	total := model.SumMeals(all)
	assert.Equal(t, 1150.0, total.Calories)
}

func TestSQLite_ListMeals_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	meals, err := st.ListMeals(context.Background(), MealFilter{})
	require.NoError(t, err)
	assert.Empty(t, meals)
}

func TestSQLite_SaveMeals(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	batch := []*model.Meal{
		testMeal("apple", 95, now.Add(-time.Hour)),
		testMeal("yogurt", 100, now),
	}
	require.NoError(t, st.SaveMeals(ctx, batch))
	require.NoError(t, st.SaveMeals(ctx, nil))

	meals, err := st.ListMeals(ctx, MealFilter{})
	require.NoError(t, err)
	require.Len(t, meals, 2)
	assert.Equal(t, "yogurt", meals[0].Query)
	assert.NotEqual(t, batch[0].ID, batch[1].ID)
}

func TestSQLite_DeleteMeal(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	m := testMeal("toast", 80, time.Now())
	require.NoError(t, st.SaveMeal(ctx, m))
	require.NoError(t, st.DeleteMeal(ctx, m.ID))

	_, err := st.GetMeal(ctx, m.ID)
	assert.ErrorIs(t, err, ErrMealNotFound)

	err = st.DeleteMeal(ctx, m.ID)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMealNotFound))
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)

	// Migrate already ran in the helper.
	require.NoError(t, st.Migrate(context.Background()))
}
