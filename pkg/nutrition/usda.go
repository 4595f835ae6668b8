package nutrition

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/preprocess"
)

const (
	defaultUSDAURL      = "https://api.nal.usda.gov"
	defaultUSDAPageSize = 25
	usdaDataTypes       = "Foundation,SR Legacy,Survey (FNDDS)"

	usdaCandidates     = 10
	usdaOverlapBonus   = 10.0
	usdaCeiling        = 90.0
	usdaDefaultGrams   = 100.0
	usdaMaxDescription = 6
)

// FoodData Central nutrient IDs.
const (
	nutrientEnergy         = 1008
	nutrientEnergyAtwaterG = 2047
	nutrientEnergyAtwaterS = 2048
	nutrientProtein        = 1003
	nutrientFat            = 1004
	nutrientCarbs          = 1005
)

// unitGrams converts household units to grams when the food has no
// matching measure.
var unitGrams = map[string]float64{
	"ounce":      28.35,
	"pound":      453.59,
	"gram":       1,
	"kilogram":   1000,
	"milliliter": 1,
	"liter":      1000,
	"cup":        240,
	"tablespoon": 15,
	"teaspoon":   5,
	"slice":      30,
	"piece":      50,
	"pint":       473,
	"quart":      946,
	"gallon":     3785,
}

// sizeWords are units that name a portion size rather than a measure.
var sizeWords = map[string]bool{"extra large": true, "large": true, "medium": true, "small": true}

var preparedWords = []string{"cooked", "fried", "canned", "prepared", "baked", "boiled", "roasted", "with", "sauce"}

// USDA resolves whole foods against the FoodData Central reference database.
type USDA struct {
	*client
	apiKey   string
	pageSize int
}

// NewUSDA creates a FoodData Central adapter.
func NewUSDA(apiKey string, opts ...Option) *USDA {
	return &USDA{
		client:   newClient(model.SourceUSDA, defaultUSDAURL, opts),
		apiKey:   apiKey,
		pageSize: defaultUSDAPageSize,
	}
}

// WithPageSize sets the number of search candidates requested.
func (u *USDA) WithPageSize(n int) *USDA {
	if n > 0 {
		u.pageSize = n
	}
	return u
}

// Name implements Provider.
func (u *USDA) Name() model.Source { return model.SourceUSDA }

type usdaSearchResponse struct {
	TotalHits int        `json:"totalHits"`
	Foods     []usdaFood `json:"foods"`
}

type usdaFood struct {
	FdcID           int            `json:"fdcId"`
	Description     string         `json:"description"`
	DataType        string         `json:"dataType"`
	BrandOwner      string         `json:"brandOwner"`
	ServingSize     float64        `json:"servingSize"`
	ServingSizeUnit string         `json:"servingSizeUnit"`
	FoodNutrients   []usdaNutrient `json:"foodNutrients"`
	FoodMeasures    []usdaMeasure  `json:"foodMeasures"`
}

type usdaNutrient struct {
	NutrientID int     `json:"nutrientId"`
	UnitName   string  `json:"unitName"`
	Value      float64 `json:"value"`
}

type usdaMeasure struct {
	DisseminationText string  `json:"disseminationText"`
	GramWeight        float64 `json:"gramWeight"`
}

// Fetch implements Provider. The core phrase is searched and the best
// matching candidate is scaled to the requested portion.
func (u *USDA) Fetch(ctx context.Context, query string) (*model.MacroResult, error) {
	q := preprocess.Preprocess(query)
	phrase := q.CorePhrase
	if phrase == "" {
		phrase = q.Normalized
	}
	if phrase == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", phrase)
	params.Set("pageSize", strconv.Itoa(u.pageSize))
	params.Set("dataType", usdaDataTypes)
	params.Set("api_key", u.apiKey)

	var resp usdaSearchResponse
	found, err := u.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+"/fdc/v1/foods/search?"+params.Encode(), nil)
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !found || len(resp.Foods) == 0 {
		return nil, nil
	}

	best, overlap := bestUSDAFood(phrase, resp.Foods)
	if best == nil {
		return nil, nil
	}

	return finalize(model.SourceUSDA, q, usdaResult(q, best, overlap)), nil
}

// bestUSDAFood scores the leading candidates and returns the winner with its
// phrase overlap. Candidates without energy data are skipped. Ties keep the
// earlier candidate.
func bestUSDAFood(phrase string, foods []usdaFood) (*usdaFood, float64) {
	words := strings.Fields(phrase)
	if len(foods) > usdaCandidates {
		foods = foods[:usdaCandidates]
	}

	var best *usdaFood
	bestScore, bestOverlap := -1.0, 0.0
	for i := range foods {
		f := &foods[i]
		if f.per100g().Calories <= 0 {
			continue
		}
		overlap := phraseOverlap(words, strings.ToLower(f.Description))
		s := scoreUSDAFood(f, overlap)
		if s > bestScore {
			best, bestScore, bestOverlap = f, s, overlap
		}
	}
	return best, bestOverlap
}

func scoreUSDAFood(f *usdaFood, overlap float64) float64 {
	desc := strings.ToLower(f.Description)
	score := overlap * 30
	if strings.Contains(desc, "raw") || strings.Contains(desc, "fresh") {
		score += 10
	}
	if !containsWord(desc, preparedWords) {
		score += 5
	}
	if len(strings.Fields(desc)) <= usdaMaxDescription {
		score += 5
	}
	return score
}

// phraseOverlap is the fraction of query words found in desc. Plural query
// words also match their singular form.
func phraseOverlap(words []string, desc string) float64 {
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if strings.Contains(desc, w) {
			hits++
			continue
		}
		if len(w) > 3 && strings.HasSuffix(w, "s") && strings.Contains(desc, strings.TrimSuffix(w, "s")) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

func containsWord(desc string, words []string) bool {
	for _, tok := range strings.FieldsFunc(desc, func(r rune) bool { return r == ' ' || r == ',' }) {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

// per100g returns the food's macros per 100 grams.
func (f *usdaFood) per100g() model.Macros {
	var m model.Macros
	var atwater float64
	for _, n := range f.FoodNutrients {
		switch n.NutrientID {
		case nutrientEnergy:
			if strings.EqualFold(n.UnitName, "kj") {
				m.Calories = n.Value / 4.184
			} else {
				m.Calories = n.Value
			}
		case nutrientEnergyAtwaterG, nutrientEnergyAtwaterS:
			if atwater == 0 {
				atwater = n.Value
			}
		case nutrientProtein:
			m.ProteinG = n.Value
		case nutrientCarbs:
			m.CarbsG = n.Value
		case nutrientFat:
			m.FatG = n.Value
		}
	}
	if m.Calories == 0 {
		m.Calories = atwater
	}
	return m
}

// gramsPerUnit resolves one unit of the query to grams for this food. A unit
// that is neither a measure nor a size ("2 eggs") is sized like a medium item.
func (f *usdaFood) gramsPerUnit(unit string) float64 {
	tableGrams, known := unitGrams[unit]
	want := unit
	if unit == preprocess.DefaultUnit || (!known && !sizeWords[unit]) {
		want = "medium"
	}
	for _, m := range f.FoodMeasures {
		text := strings.ToLower(m.DisseminationText)
		if m.GramWeight > 0 && measureMatches(text, want) {
			return m.GramWeight / measureCount(text)
		}
	}
	if known {
		return tableGrams
	}
	if f.ServingSize > 0 && strings.EqualFold(f.ServingSizeUnit, "g") {
		return f.ServingSize
	}
	return usdaDefaultGrams
}

// measureMatches reports whether the words of want appear as whole tokens in
// a measure description. "large" does not match "1 extra large".
func measureMatches(text, want string) bool {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '/'
	})
	words := strings.Fields(want)
	if len(words) == 0 {
		return false
	}
	for i := 0; i+len(words) <= len(tokens); i++ {
		if i > 0 && tokens[i-1] == "extra" && words[0] != "extra" {
			continue
		}
		ok := true
		for j, w := range words {
			tok := tokens[i+j]
			if tok != w && tok != w+"s" && tok != w+"es" {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// measureCount parses the leading count of a measure like "2 slices".
func measureCount(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 1
	}
	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

func usdaResult(q preprocess.Query, f *usdaFood, overlap float64) *model.MacroResult {
	grams := q.Quantity * f.gramsPerUnit(q.Unit)
	m := f.per100g().Scale(grams / 100)

	r := &model.MacroResult{
		Items:      []string{f.Description},
		ItemMacros: []model.Macros{m},
		Confidence: model.Clamp(q.Confidence+overlap*usdaOverlapBonus, 0, usdaCeiling),
		PortionInfo: &model.PortionInfo{
			DetectedSize:       fmt.Sprintf("%g %s", q.Quantity, q.Unit),
			StandardizedAmount: model.Round1(grams),
			Unit:               "g",
		},
	}
	r.SetMacros(m)
	return r
}
