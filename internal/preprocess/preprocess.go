// Package preprocess extracts quantity, unit, and brand signals from a free-text
// meal description.
package preprocess

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultUnit is the unit assumed when none is detected.
const DefaultUnit = "serving"

// Confidence contributions for each detected signal.
const (
	baseConfidence     = 50.0
	quantityBonus      = 20.0
	unitBonus          = 10.0
	brandBonus         = 15.0
	corePhraseBonus    = 5.0
	minCorePhraseChars = 3
)

// Query is the structured form of a raw meal description. It is created once
// per resolution and never modified.
type Query struct {
	Original   string  `json:"original_text"`
	Normalized string  `json:"normalized_text"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	CorePhrase string  `json:"core_phrase"`
	Brand      string  `json:"brand,omitempty"`
	Confidence float64 `json:"preprocessing_confidence"`
}

// HasBrand reports whether a known brand or restaurant was detected.
func (q Query) HasBrand() bool {
	return q.Brand != ""
}

// Words returns the normalized text split on whitespace.
func (q Query) Words() []string {
	return strings.Fields(q.Normalized)
}

const numberPattern = `(\d+\s+\d+/\d+|\d+/\d+|\d*\.\d+|\d+)`

var (
	gluedUnitRe = regexp.MustCompile(`(\d)(oz|lbs|lb|kg|g|ml|tbsp|tsp|c|pt|qt|gal)\b`)
	abbrevRe    = regexp.MustCompile(`\b(oz|lbs|lb|tbsp|tsp|c|pt|qt|gal|med|lg|sm|xl)\b`)
	metricRe    = regexp.MustCompile(`(\d) (kg|g|ml)\b`)

	measureRe = regexp.MustCompile(`\b` + numberPattern + `\s+(ounce|pound|kilogram|gram|milliliter|liter|cup|tablespoon|teaspoon|slice|piece|pint|quart|gallon)(?:e?s)?\b`)
	sizeRe    = regexp.MustCompile(`\b` + numberPattern + `\s+(extra large|large|medium|small)\b`)
	leadingRe = regexp.MustCompile(`^` + numberPattern + `\s+(\S+)`)
	wordNumRe = regexp.MustCompile(`\b(one|two|three|four|five|six|seven|eight|nine|ten)\b`)
)

var abbreviations = map[string]string{
	"oz":   "ounce",
	"lbs":  "pounds",
	"lb":   "pound",
	"tbsp": "tablespoon",
	"tsp":  "teaspoon",
	"c":    "cup",
	"pt":   "pint",
	"qt":   "quart",
	"gal":  "gallon",
	"med":  "medium",
	"lg":   "large",
	"sm":   "small",
	"xl":   "extra large",
}

// metricUnits are expanded only directly after a number, so a stray "g" in a
// product name is left alone.
var metricUnits = map[string]string{
	"g":  "gram",
	"kg": "kilogram",
	"ml": "milliliter",
}

var wordNumbers = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// Preprocess converts raw text into a Query. It never fails: empty or
// unparseable input yields the defaults.
func Preprocess(text string) Query {
	normalized := Normalize(text)

	q := Query{
		Original:   text,
		Normalized: normalized,
		Quantity:   1,
		Unit:       DefaultUnit,
		CorePhrase: normalized,
	}

	extractQuantity(&q)
	q.Brand = DetectBrand(normalized)
	q.Confidence = score(q)
	return q
}

// Normalize lowercases, folds accents, collapses whitespace, and expands
// unit abbreviations as whole words.
func Normalize(text string) string {
	s := strings.ToLower(collapse(text))
	s = foldAccents(s)
	s = gluedUnitRe.ReplaceAllString(s, "$1 $2")
	s = abbrevRe.ReplaceAllStringFunc(s, func(m string) string {
		return abbreviations[m]
	})
	s = metricRe.ReplaceAllStringFunc(s, func(m string) string {
		num, unit, _ := strings.Cut(m, " ")
		return num + " " + metricUnits[unit]
	})
	return collapse(s)
}

func extractQuantity(q *Query) {
	s := q.Normalized

	if loc := measureRe.FindStringSubmatchIndex(s); loc != nil {
		if qty, ok := parseQuantity(s[loc[2]:loc[3]]); ok {
			q.Quantity = qty
			q.Unit = s[loc[4]:loc[5]]
			q.CorePhrase = collapse(s[:loc[0]] + " " + s[loc[1]:])
			return
		}
	}

	if loc := sizeRe.FindStringSubmatchIndex(s); loc != nil {
		if qty, ok := parseQuantity(s[loc[2]:loc[3]]); ok {
			q.Quantity = qty
			q.Unit = s[loc[4]:loc[5]]
			q.CorePhrase = collapse(s[:loc[0]] + " " + s[loc[1]:])
			return
		}
	}

	// Only the number is stripped here: the captured word is a unit guess that
	// is usually the food itself ("3 apples").
	if loc := leadingRe.FindStringSubmatchIndex(s); loc != nil {
		if qty, ok := parseQuantity(s[loc[2]:loc[3]]); ok {
			q.Quantity = qty
			q.Unit = s[loc[4]:loc[5]]
			q.CorePhrase = collapse(s[loc[3]:])
			return
		}
	}

	if m := wordNumRe.FindStringSubmatch(s); m != nil {
		q.Quantity = wordNumbers[m[1]]
	}
}

// parseQuantity parses integers, decimals, simple fractions, and mixed
// numbers ("1 1/2"). Non-positive values are rejected.
func parseQuantity(s string) (float64, bool) {
	var total float64
	for _, part := range strings.Fields(s) {
		if num, den, ok := strings.Cut(part, "/"); ok {
			n, err1 := strconv.ParseFloat(num, 64)
			d, err2 := strconv.ParseFloat(den, 64)
			if err1 != nil || err2 != nil || d == 0 {
				return 0, false
			}
			total += n / d
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, false
		}
		total += v
	}
	if total <= 0 {
		return 0, false
	}
	return total, true
}

func score(q Query) float64 {
	c := baseConfidence
	if q.Quantity != 1 {
		c += quantityBonus
	}
	if q.Unit != DefaultUnit {
		c += unitBonus
	}
	if q.HasBrand() {
		c += brandBonus
	}
	if len(q.CorePhrase) > minCorePhraseChars {
		c += corePhraseBonus
	}
	if c > 100 {
		return 100
	}
	if c < 0 {
		return 0
	}
	return c
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
