// Package analytics computes read-only views over a transaction ledger.
// Every function here is pure: the input ledger is never modified, so many
// views may be computed concurrently over the same snapshot.
package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// Kind selects which side of the ledger a breakdown covers.
type Kind string

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// ParseKind parses "income" or "expense", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Income, Expense:
		return k, nil
	default:
		return "", fmt.Errorf("unknown breakdown kind %q", s)
	}
}

// KPIs are the headline figures of a ledger.
type KPIs struct {
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	NetSavings       decimal.Decimal `json:"net_savings"`
	TransactionCount int             `json:"transaction_count"`
}

// CalculateKPIs sums credits and debits. TotalExpenses is reported as a
// non-negative magnitude.
func CalculateKPIs(ledger domain.Ledger) KPIs {
	income, expenses := decimal.Zero, decimal.Zero
	for _, tx := range ledger {
		switch {
		case tx.IsIncome():
			income = income.Add(tx.Amount)
		case tx.IsExpense():
			expenses = expenses.Add(tx.Amount.Abs())
		}
	}
	return KPIs{
		TotalIncome:      income,
		TotalExpenses:    expenses,
		NetSavings:       income.Sub(expenses),
		TransactionCount: len(ledger),
	}
}

// CategoryTotal is one row of a category breakdown.
type CategoryTotal struct {
	Category domain.Category `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// CategoryBreakdown groups one side of the ledger by category and returns the
// totals largest first. Expense totals are absolute values. Equal totals keep
// the order in which their category first appears in the ledger.
func CategoryBreakdown(ledger domain.Ledger, kind Kind) []CategoryTotal {
	index := make(map[domain.Category]int)
	var out []CategoryTotal

	for _, tx := range ledger {
		var amt decimal.Decimal
		switch {
		case kind == Income && tx.IsIncome():
			amt = tx.Amount
		case kind == Expense && tx.IsExpense():
			amt = tx.Amount.Abs()
		default:
			continue
		}

		i, ok := index[tx.Category]
		if !ok {
			i = len(out)
			index[tx.Category] = i
			out = append(out, CategoryTotal{Category: tx.Category, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(amt)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Amount.GreaterThan(out[b].Amount)
	})
	return out
}

// MonthBucket holds the credits and debits of one calendar month.
type MonthBucket struct {
	Month   time.Time       `json:"month"`
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// MonthLabelLayout formats bucket labels, e.g. "Jan 2024".
const MonthLabelLayout = "Jan 2006"

// MonthlyTrends buckets transactions by the calendar month of their completion
// time, in UTC. Transactions without a completion time are left out of this
// view only. Months between the first and last bucket with no activity are
// returned with zero totals so the series has no gaps.
func MonthlyTrends(ledger domain.Ledger) []MonthBucket {
	first, last, ok := ledger.DateRange()
	if !ok {
		return nil
	}

	start := monthStart(first)
	end := monthStart(last)

	var out []MonthBucket
	index := make(map[int]int)
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		index[monthKey(m)] = len(out)
		out = append(out, MonthBucket{
			Month:   m,
			Label:   m.Format(MonthLabelLayout),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
		})
	}

	for _, tx := range ledger {
		if tx.CompletionTime == nil {
			continue
		}
		b := &out[index[monthKey(*tx.CompletionTime)]]
		switch {
		case tx.IsIncome():
			b.Income = b.Income.Add(tx.Amount)
		case tx.IsExpense():
			b.Expense = b.Expense.Add(tx.Amount.Abs())
		}
	}
	return out
}

func monthKey(t time.Time) int {
	t = t.UTC()
	return t.Year()*12 + int(t.Month())
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Counterparty is a spending total for one raw Details value.
type Counterparty struct {
	Details string          `json:"details"`
	Total   decimal.Decimal `json:"total"`
}

// DefaultTopCounterparties is the ranking size used when none is given.
const DefaultTopCounterparties = 5

// TopCounterparties ranks outgoing transactions by their exact Details text and
// returns the n largest spending totals. Ties keep first-seen order.
func TopCounterparties(ledger domain.Ledger, n int) []Counterparty {
	if n <= 0 {
		return nil
	}

	index := make(map[string]int)
	var out []Counterparty
	for _, tx := range ledger {
		if !tx.IsExpense() {
			continue
		}
		i, ok := index[tx.Details]
		if !ok {
			i = len(out)
			index[tx.Details] = i
			out = append(out, Counterparty{Details: tx.Details, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(tx.Amount.Abs())
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Total.GreaterThan(out[b].Total)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
