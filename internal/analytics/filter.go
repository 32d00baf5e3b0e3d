package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/domain"
)

// DateRange keeps transactions completed on or between the calendar dates of
// start and end (UTC). A zero start or end leaves that side open. Transactions
// without a completion time are dropped whenever a bound is set.
func DateRange(ledger domain.Ledger, start, end time.Time) domain.Ledger {
	if start.IsZero() && end.IsZero() {
		return ledger.Filter(func(domain.Transaction) bool { return true })
	}

	var from, until time.Time
	if !start.IsZero() {
		from = dayStart(start)
	}
	if !end.IsZero() {
		until = dayStart(end).AddDate(0, 0, 1)
	}

	return ledger.Filter(func(tx domain.Transaction) bool {
		if tx.CompletionTime == nil {
			return false
		}
		ts := tx.CompletionTime.UTC()
		if !from.IsZero() && ts.Before(from) {
			return false
		}
		if !until.IsZero() && !ts.Before(until) {
			return false
		}
		return true
	})
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Search keeps transactions whose Details or receipt number contains term,
// ignoring case. An empty term keeps everything.
func Search(ledger domain.Ledger, term string) domain.Ledger {
	term = strings.ToLower(strings.TrimSpace(term))
	return ledger.Filter(func(tx domain.Transaction) bool {
		if term == "" {
			return true
		}
		return strings.Contains(strings.ToLower(tx.Details), term) ||
			strings.Contains(strings.ToLower(tx.ReceiptNo), term)
	})
}

// NewestFirst returns a copy of ledger ordered by completion time, latest first.
// Transactions without a completion time go last, in ledger order.
func NewestFirst(ledger domain.Ledger) domain.Ledger {
	out := make(domain.Ledger, len(ledger))
	copy(out, ledger)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CompletionTime, out[j].CompletionTime
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})
	return out
}
