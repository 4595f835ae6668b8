// Package export writes the meal log to spreadsheet files.
package export

import (
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/macro-cli/internal/model"
)

// Sheet names written by WriteXLSX.
const (
	MealsSheet  = "Meals"
	TotalsSheet = "Totals"
)

var mealHeader = []string{
	"Eaten At", "Query", "Servings", "Calories", "Protein (g)", "Carbs (g)", "Fat (g)",
	"Source", "Confidence", "Flags", "ID",
}

var totalsHeader = []string{"Date", "Meals", "Calories", "Protein (g)", "Carbs (g)", "Fat (g)"}

// WriteXLSX writes meals to path as a workbook with one row per meal and a
// per-day totals sheet. Days are calendar days in loc (UTC when nil).
func WriteXLSX(path string, meals []model.Meal, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(MealsSheet)
	if err != nil {
		return eris.Wrap(err, "export: add meals sheet")
	}
	addStringRow(sheet, mealHeader)

	for _, m := range meals {
		row := sheet.AddRow()
		row.AddCell().SetString(m.EatenAt.In(loc).Format(time.DateTime))
		row.AddCell().SetString(m.Query)
		row.AddCell().SetFloat(m.Servings)
		addMacroCells(row, m.Totals())
		row.AddCell().SetString(string(m.Result.Source))
		row.AddCell().SetFloat(m.Result.Confidence)
		row.AddCell().SetString(strings.Join(m.Result.ValidationFlags, "; "))
		row.AddCell().SetString(m.ID)
	}

	totals, err := f.AddSheet(TotalsSheet)
	if err != nil {
		return eris.Wrap(err, "export: add totals sheet")
	}
	addStringRow(totals, totalsHeader)
	for _, d := range DailyTotals(meals, loc) {
		row := totals.AddRow()
		row.AddCell().SetString(d.Date)
		row.AddCell().SetInt(d.Meals)
		addMacroCells(row, d.Macros)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// DayTotal is the summed macros for one calendar day.
type DayTotal struct {
	Date   string       `json:"date"`
	Meals  int          `json:"meals"`
	Macros model.Macros `json:"macros"`
}

// DailyTotals groups meals by calendar day in loc, oldest day first.
func DailyTotals(meals []model.Meal, loc *time.Location) []DayTotal {
	if loc == nil {
		loc = time.UTC
	}

	byDay := make(map[string][]model.Meal)
	var days []string
	for _, m := range meals {
		day := m.EatenAt.In(loc).Format(time.DateOnly)
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], m)
	}
	// DateOnly sorts lexically.
	slices.Sort(days)

	out := make([]DayTotal, 0, len(days))
	for _, day := range days {
		out = append(out, DayTotal{
			Date:   day,
			Meals:  len(byDay[day]),
			Macros: model.SumMeals(byDay[day]),
		})
	}
	return out
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addMacroCells(row *xlsx.Row, m model.Macros) {
	row.AddCell().SetFloat(m.Calories)
	row.AddCell().SetFloat(m.ProteinG)
	row.AddCell().SetFloat(m.CarbsG)
	row.AddCell().SetFloat(m.FatG)
}
