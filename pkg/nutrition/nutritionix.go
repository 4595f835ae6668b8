package nutrition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/preprocess"
)

const (
	defaultNutritionixURL = "https://trackapi.nutritionix.com"

	nutritionixBrandBonus = 10.0
	nutritionixCeiling    = 95.0
)

// Nutritionix resolves natural-language meals (restaurant items, composite
// dishes) through the Nutritionix natural nutrients endpoint.
type Nutritionix struct {
	*client
	appID  string
	appKey string
}

// NewNutritionix creates a Nutritionix adapter.
func NewNutritionix(appID, appKey string, opts ...Option) *Nutritionix {
	return &Nutritionix{
		client: newClient(model.SourceNutritionix, defaultNutritionixURL, opts),
		appID:  appID,
		appKey: appKey,
	}
}

// Name implements Provider.
func (n *Nutritionix) Name() model.Source { return model.SourceNutritionix }

type nutritionixRequest struct {
	Query string `json:"query"`
}

type nutritionixResponse struct {
	Foods []nutritionixFood `json:"foods"`
}

type nutritionixFood struct {
	FoodName           string  `json:"food_name"`
	BrandName          string  `json:"brand_name"`
	ServingQty         float64 `json:"serving_qty"`
	ServingUnit        string  `json:"serving_unit"`
	ServingWeightGrams float64 `json:"serving_weight_grams"`
	Calories           float64 `json:"nf_calories"`
	Protein            float64 `json:"nf_protein"`
	Carbs              float64 `json:"nf_total_carbohydrate"`
	Fat                float64 `json:"nf_total_fat"`
}

// Fetch implements Provider. The raw text is sent as-is since Nutritionix
// does its own parsing.
func (n *Nutritionix) Fetch(ctx context.Context, query string) (*model.MacroResult, error) {
	q := preprocess.Preprocess(query)
	if q.Normalized == "" {
		return nil, nil
	}

	payload, err := json.Marshal(nutritionixRequest{Query: q.Original})
	if err != nil {
		return nil, eris.Wrap(err, "nutritionix: marshal request")
	}

	var resp nutritionixResponse
	found, err := n.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v2/natural/nutrients", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-app-id", n.appID)
		req.Header.Set("x-app-key", n.appKey)
		req.Header.Set("x-remote-user-id", "0")
		return req, nil
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !found || len(resp.Foods) == 0 {
		return nil, nil
	}

	return finalize(model.SourceNutritionix, q, nutritionixResult(q, resp.Foods)), nil
}

func nutritionixResult(q preprocess.Query, foods []nutritionixFood) *model.MacroResult {
	r := &model.MacroResult{Confidence: q.Confidence}

	var total model.Macros
	branded := false
	for _, f := range foods {
		m := model.Macros{
			Calories: f.Calories,
			ProteinG: f.Protein,
			CarbsG:   f.Carbs,
			FatG:     f.Fat,
		}
		total = total.Add(m)
		r.Items = append(r.Items, nutritionixLabel(f))
		r.ItemMacros = append(r.ItemMacros, m)
		if f.BrandName != "" {
			branded = true
		}
	}
	r.SetMacros(total)

	if branded {
		r.Confidence += nutritionixBrandBonus
	}
	r.Confidence = model.Clamp(r.Confidence, 0, nutritionixCeiling)

	first := foods[0]
	r.PortionInfo = &model.PortionInfo{
		DetectedSize:       strings.TrimSpace(fmt.Sprintf("%g %s", first.ServingQty, first.ServingUnit)),
		StandardizedAmount: model.Round1(first.ServingWeightGrams),
		Unit:               "g",
	}
	return r
}

func nutritionixLabel(f nutritionixFood) string {
	name := f.FoodName
	if f.BrandName != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(f.BrandName)) {
		name = f.BrandName + " " + name
	}
	if f.ServingQty > 0 && f.ServingUnit != "" {
		return fmt.Sprintf("%g %s %s", f.ServingQty, f.ServingUnit, name)
	}
	return name
}
