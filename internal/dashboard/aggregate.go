// Package dashboard is the consumer side of the weather API: it fetches
// current conditions and the forecast, folds forecast entries into daily
// cards, tracks the display state and renders it for a terminal.
package dashboard

import (
	"strings"

	"atmos/internal/types"
)

// MaxDailyCards is the number of daily cards the dashboard displays.
const MaxDailyCards = 5

// DailyAggregate summarizes the forecast entries of one calendar date.
type DailyAggregate struct {
	// Date is the "YYYY-MM-DD" part of the entries' dt_txt.
	Date string
	// DateText is the full dt_txt of the first entry seen for the date.
	DateText  string
	TempMin   float64
	TempMax   float64
	Condition types.Condition
}

// Aggregate groups entries by calendar date in first-seen order and returns
// at most MaxDailyCards groups. The min/max temperatures are folded across
// all entries of a date; the condition is the first entry's and is never
// replaced by later entries of the same date.
func Aggregate(entries []types.ForecastEntry) []DailyAggregate {
	days := make([]DailyAggregate, 0, MaxDailyCards)
	index := make(map[string]int)

	for _, e := range entries {
		date, _, _ := strings.Cut(e.DtTxt, " ")

		if i, seen := index[date]; seen {
			days[i].TempMin = min(days[i].TempMin, e.Main.TempMin)
			days[i].TempMax = max(days[i].TempMax, e.Main.TempMax)
			continue
		}

		index[date] = len(days)
		days = append(days, DailyAggregate{
			Date:      date,
			DateText:  e.DtTxt,
			TempMin:   e.Main.TempMin,
			TempMax:   e.Main.TempMax,
			Condition: e.Condition(),
		})
	}

	if len(days) > MaxDailyCards {
		days = days[:MaxDailyCards]
	}
	return days
}
