package nutrition

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/resilience"
)

const bigMacMeal = `{
	"foods": [
		{
			"food_name": "Big Mac",
			"brand_name": "McDonald's",
			"serving_qty": 1,
			"serving_unit": "burger",
			"serving_weight_grams": 219,
			"nf_calories": 563,
			"nf_protein": 25.9,
			"nf_total_carbohydrate": 45,
			"nf_total_fat": 32.8
		},
		{
			"food_name": "french fries",
			"brand_name": "McDonald's",
			"serving_qty": 1,
			"serving_unit": "medium",
			"serving_weight_grams": 111,
			"nf_calories": 320,
			"nf_protein": 4.3,
			"nf_total_carbohydrate": 43,
			"nf_total_fat": 15
		}
	]
}`

func TestNutritionix_Fetch(t *testing.T) {
	var gotQuery string
	_, opts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/natural/nutrients", r.URL.Path)
		assert.Equal(t, "app", r.Header.Get("x-app-id"))
		assert.Equal(t, "key", r.Header.Get("x-app-key"))

		var body nutritionixRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotQuery = body.Query

		jsonHandler(bigMacMeal)(w, r)
	})

	n := NewNutritionix("app", "key", opts...)
	res, err := n.Fetch(context.Background(), "Big Mac and medium fries from McDonald's")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "Big Mac and medium fries from McDonald's", gotQuery)
	assert.Equal(t, model.SourceNutritionix, res.Source)
	assert.InDelta(t, 883, res.Calories, 0.01)
	assert.InDelta(t, 30.2, res.ProteinG, 0.01)
	assert.InDelta(t, 88, res.CarbsG, 0.01)
	assert.InDelta(t, 47.8, res.FatG, 0.01)
	assert.Equal(t, []string{"1 burger McDonald's Big Mac", "1 medium McDonald's french fries"}, res.Items)
	require.Len(t, res.ItemMacros, 2)
	assert.InDelta(t, 563, res.ItemMacros[0].Calories, 0.01)
	// Preprocessing 70 (brand + phrase) plus the brand bonus.
	assert.InDelta(t, 80, res.Confidence, 0.01)
	assert.Empty(t, res.ValidationFlags)
	require.NotNil(t, res.PortionInfo)
	assert.Equal(t, "1 burger", res.PortionInfo.DetectedSize)
	assert.InDelta(t, 219, res.PortionInfo.StandardizedAmount, 0.01)
}

func TestNutritionix_NoMatch(t *testing.T) {
	_, opts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"We couldn't match any of your foods"}`))
	})

	res, err := NewNutritionix("a", "b", opts...).Fetch(context.Background(), "asdfgh")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestNutritionix_EmptyFoods(t *testing.T) {
	_, opts := newTestServer(t, jsonHandler(`{"foods": []}`))

	res, err := NewNutritionix("a", "b", opts...).Fetch(context.Background(), "something")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestNutritionix_EmptyQuerySkipsRequest(t *testing.T) {
	var hits atomic.Int32
	_, opts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		jsonHandler(bigMacMeal)(w, r)
	})

	res, err := NewNutritionix("a", "b", opts...).Fetch(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Zero(t, hits.Load())
}

func TestNutritionix_ServerErrorUnavailable(t *testing.T) {
	_, opts := newTestServer(t, statusHandler(http.StatusInternalServerError))

	res, err := NewNutritionix("a", "b", opts...).Fetch(context.Background(), "big mac")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsUnavailable(err))
	assert.True(t, resilience.IsTransient(err))

	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, model.SourceNutritionix, ue.Source)
}

func TestNutritionix_AuthErrorUnavailable(t *testing.T) {
	_, opts := newTestServer(t, statusHandler(http.StatusUnauthorized))

	_, err := NewNutritionix("a", "b", opts...).Fetch(context.Background(), "big mac")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.False(t, resilience.IsTransient(err))
}

func TestNutritionix_MalformedBody(t *testing.T) {
	_, opts := newTestServer(t, jsonHandler(`{"foods": [`))

	_, err := NewNutritionix("a", "b", opts...).Fetch(context.Background(), "big mac")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestNutritionix_ValidationRejects(t *testing.T) {
	// 9000 kcal is outside the hard calorie bound.
	_, opts := newTestServer(t, jsonHandler(`{"foods": [{
		"food_name": "mystery", "serving_qty": 1, "serving_unit": "plate",
		"nf_calories": 9000, "nf_protein": 100, "nf_total_carbohydrate": 1000, "nf_total_fat": 500
	}]}`))

	res, err := NewNutritionix("a", "b", opts...).Fetch(context.Background(), "mystery plate")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestNutritionix_CircuitOpens(t *testing.T) {
	var hits atomic.Int32
	_, opts := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1})
	opts = append(opts, WithGuard(resilience.NewGuard(breaker, resilience.DefaultRetryConfig())))
	n := NewNutritionix("a", "b", opts...)

	_, err := n.Fetch(context.Background(), "big mac")
	require.Error(t, err)

	_, err = n.Fetch(context.Background(), "big mac")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(1), hits.Load())
}

func TestNutritionix_RetriesTransient(t *testing.T) {
	var hits atomic.Int32
	_, opts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		jsonHandler(bigMacMeal)(w, r)
	})

	retry := resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	opts = append(opts, WithGuard(resilience.NewGuard(nil, retry)))

	res, err := NewNutritionix("a", "b", opts...).Fetch(context.Background(), "big mac and fries")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(NewUSDA("k"), NewNutritionix("a", "b"))
	reg.Register(NewOpenFoodFacts(""))

	assert.Equal(t, []model.Source{model.SourceNutritionix, model.SourceOpenFoodFacts, model.SourceUSDA}, reg.List())
	assert.NotNil(t, reg.Get(model.SourceUSDA))
	assert.Nil(t, NewRegistry().Get(model.SourceUSDA))
}
