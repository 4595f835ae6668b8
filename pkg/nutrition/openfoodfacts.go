package nutrition

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/preprocess"
)

const (
	defaultOpenFoodFactsURL = "https://world.openfoodfacts.org"
	defaultOFFPageSize      = 10
	defaultOFFUserAgent     = "macro-cli/1.0 (https://github.com/sells-group/macro-cli)"

	offBrandBonus = 10.0
	offCeiling    = 80.0
	kjPerKcal     = 4.184
)

// OpenFoodFacts resolves packaged consumer products.
type OpenFoodFacts struct {
	*client
	userAgent string
	pageSize  int
}

// NewOpenFoodFacts creates an Open Food Facts adapter. The public API asks
// every client to identify itself with a User-Agent.
func NewOpenFoodFacts(userAgent string, opts ...Option) *OpenFoodFacts {
	if userAgent == "" {
		userAgent = defaultOFFUserAgent
	}
	return &OpenFoodFacts{
		client:    newClient(model.SourceOpenFoodFacts, defaultOpenFoodFactsURL, opts),
		userAgent: userAgent,
		pageSize:  defaultOFFPageSize,
	}
}

// WithPageSize sets the number of products requested.
func (o *OpenFoodFacts) WithPageSize(n int) *OpenFoodFacts {
	if n > 0 {
		o.pageSize = n
	}
	return o
}

// Name implements Provider.
func (o *OpenFoodFacts) Name() model.Source { return model.SourceOpenFoodFacts }

type offSearchResponse struct {
	Count    flexFloat    `json:"count"`
	Products []offProduct `json:"products"`
}

type offProduct struct {
	Code            string               `json:"code"`
	ProductName     string               `json:"product_name"`
	Brands          string               `json:"brands"`
	ServingSize     string               `json:"serving_size"`
	ServingQuantity flexFloat            `json:"serving_quantity"`
	Nutriments      map[string]flexFloat `json:"nutriments"`
}

// flexFloat accepts JSON numbers and numeric strings. Anything else decodes
// to zero without error.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			v = 0
		}
		*f = flexFloat(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		v = 0
	}
	*f = flexFloat(v)
	return nil
}

// Fetch implements Provider.
func (o *OpenFoodFacts) Fetch(ctx context.Context, query string) (*model.MacroResult, error) {
	q := preprocess.Preprocess(query)
	if q.Normalized == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("search_terms", q.Original)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(o.pageSize))
	params.Set("fields", "code,product_name,brands,serving_size,serving_quantity,nutriments")

	var resp offSearchResponse
	found, err := o.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/cgi/search.pl?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", o.userAgent)
		return req, nil
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	for i := range resp.Products {
		p := &resp.Products[i]
		m, grams, ok := p.portionMacros()
		if !ok {
			continue
		}
		return finalize(model.SourceOpenFoodFacts, q, offResult(q, p, m, grams)), nil
	}
	return nil, nil
}

func (p *offProduct) nutriment(key string) float64 {
	return float64(p.Nutriments[key])
}

// energy100g returns kcal per 100 g, converting from kJ when only energy is
// reported.
func (p *offProduct) energy100g() float64 {
	if v := p.nutriment("energy-kcal_100g"); v > 0 {
		return v
	}
	return p.nutriment("energy_100g") / kjPerKcal
}

// portionMacros returns macros for one serving of the product. Per-serving
// values win; otherwise per-100 g values are scaled by the serving quantity
// (or 100 g when unknown).
func (p *offProduct) portionMacros() (model.Macros, float64, bool) {
	grams := float64(p.ServingQuantity)

	if kcal := p.nutriment("energy-kcal_serving"); kcal > 0 {
		return model.Macros{
			Calories: kcal,
			ProteinG: p.nutriment("proteins_serving"),
			CarbsG:   p.nutriment("carbohydrates_serving"),
			FatG:     p.nutriment("fat_serving"),
		}, grams, true
	}

	kcal := p.energy100g()
	if kcal <= 0 {
		return model.Macros{}, 0, false
	}
	if grams <= 0 {
		grams = 100
	}
	per100 := model.Macros{
		Calories: kcal,
		ProteinG: p.nutriment("proteins_100g"),
		CarbsG:   p.nutriment("carbohydrates_100g"),
		FatG:     p.nutriment("fat_100g"),
	}
	return per100.Scale(grams / 100), grams, true
}

func (p *offProduct) label() string {
	brand := p.primaryBrand()
	if brand == "" || strings.Contains(strings.ToLower(p.ProductName), strings.ToLower(brand)) {
		return p.ProductName
	}
	return brand + " " + p.ProductName
}

func (p *offProduct) primaryBrand() string {
	first, _, _ := strings.Cut(p.Brands, ",")
	return strings.TrimSpace(first)
}

// brandInQuery reports whether any of the product's brands appears in the
// normalized query.
func (p *offProduct) brandInQuery(normalized string) bool {
	for _, b := range strings.Split(p.Brands, ",") {
		b = preprocess.Normalize(b)
		if b != "" && strings.Contains(normalized, b) {
			return true
		}
	}
	return false
}

func offResult(q preprocess.Query, p *offProduct, serving model.Macros, grams float64) *model.MacroResult {
	m := serving.Scale(q.Quantity)

	confidence := q.Confidence
	if p.brandInQuery(q.Normalized) {
		confidence += offBrandBonus
	}

	size := p.ServingSize
	if size == "" {
		size = "100 g"
	}

	r := &model.MacroResult{
		Items:      []string{p.label()},
		ItemMacros: []model.Macros{m},
		Confidence: model.Clamp(confidence, 0, offCeiling),
		PortionInfo: &model.PortionInfo{
			DetectedSize:       size,
			StandardizedAmount: model.Round1(grams * q.Quantity),
			Unit:               "g",
		},
	}
	r.SetMacros(m)
	return r
}
