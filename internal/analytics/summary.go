package analytics

import (
	"time"

	"github.com/dvloznov/mpesa-insights/internal/domain"
)

// topSpendingCategories is how many expense categories the insight summary carries.
const topSpendingCategories = 5

// InsightSummary is the payload handed to the narrative generator.
type InsightSummary struct {
	PeriodSummary         KPIs            `json:"period_summary"`
	TopSpendingCategories []CategoryTotal `json:"top_spending_categories"`
}

// BuildInsightSummary collects the KPIs and the five largest expense categories.
func BuildInsightSummary(ledger domain.Ledger) InsightSummary {
	top := CategoryBreakdown(ledger, Expense)
	if len(top) > topSpendingCategories {
		top = top[:topSpendingCategories]
	}
	if top == nil {
		top = []CategoryTotal{}
	}
	return InsightSummary{
		PeriodSummary:         CalculateKPIs(ledger),
		TopSpendingCategories: top,
	}
}

// ActivityCell counts transactions for one weekday and hour of day.
type ActivityCell struct {
	Weekday time.Weekday `json:"weekday"`
	Hour    int          `json:"hour"`
	Count   int          `json:"count"`
}

// DailyActivity counts transactions per weekday and hour (UTC), Sunday first.
// Only cells with at least one transaction are returned.
func DailyActivity(ledger domain.Ledger) []ActivityCell {
	var grid [7][24]int
	for _, tx := range ledger {
		if tx.CompletionTime == nil {
			continue
		}
		ts := tx.CompletionTime.UTC()
		grid[ts.Weekday()][ts.Hour()]++
	}

	var out []ActivityCell
	for d := 0; d < 7; d++ {
		for h := 0; h < 24; h++ {
			if grid[d][h] > 0 {
				out = append(out, ActivityCell{Weekday: time.Weekday(d), Hour: h, Count: grid[d][h]})
			}
		}
	}
	return out
}
