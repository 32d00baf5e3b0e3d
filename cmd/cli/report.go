package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/analytics"
	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/dvloznov/mpesa-insights/internal/statement"
)

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

// filterLedger applies the optional date range and search term.
func filterLedger(ledger domain.Ledger, start, end, search string) (domain.Ledger, error) {
	if start != "" || end != "" {
		var from, to time.Time
		var err error
		if start != "" {
			if from, err = parseDate(start); err != nil {
				return nil, err
			}
		}
		if end != "" {
			if to, err = parseDate(end); err != nil {
				return nil, err
			}
		}
		if !from.IsZero() && !to.IsZero() && to.Before(from) {
			return nil, fmt.Errorf("end date %s is before start date %s", end, start)
		}
		ledger = analytics.DateRange(ledger, from, to)
	}
	return analytics.Search(ledger, search), nil
}

func printReport(w io.Writer, filename string, report *statement.Report) {
	if report == nil {
		return
	}
	fmt.Fprintf(w, "Statement: %s\n", filename)
	fmt.Fprintf(w, "Rows: %d read, %d dropped, %d warnings\n\n", report.RowsSeen, report.RowsDropped, len(report.Warnings))
}

func printAnalysis(w io.Writer, ledger domain.Ledger, top int) {
	kpis := analytics.CalculateKPIs(ledger)

	fmt.Fprintln(w, "=== Summary ===")
	fmt.Fprintf(w, "Transactions:   %d\n", kpis.TransactionCount)
	fmt.Fprintf(w, "Total income:   KES %s\n", kpis.TotalIncome.StringFixed(2))
	fmt.Fprintf(w, "Total expenses: KES %s\n", kpis.TotalExpenses.StringFixed(2))
	fmt.Fprintf(w, "Net savings:    KES %s\n", kpis.NetSavings.StringFixed(2))
	if first, last, ok := ledger.DateRange(); ok {
		fmt.Fprintf(w, "Period:         %s to %s\n", first.Format(dateLayout), last.Format(dateLayout))
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(w, "\n=== Spending by category ===")
	for _, c := range analytics.CategoryBreakdown(ledger, analytics.Expense) {
		fmt.Fprintf(tw, "%s\t%s\t\n", c.Category, c.Amount.StringFixed(2))
	}
	tw.Flush()

	fmt.Fprintln(w, "\n=== Monthly trends ===")
	fmt.Fprintf(tw, "Month\tIncome\tExpense\t\n")
	for _, m := range analytics.MonthlyTrends(ledger) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", m.Label, m.Income.StringFixed(2), m.Expense.StringFixed(2))
	}
	tw.Flush()

	fmt.Fprintln(w, "\n=== Top counterparties ===")
	for i, c := range analytics.TopCounterparties(ledger, top) {
		fmt.Fprintf(tw, "%d.\t%s\t%s\t\n", i+1, c.Details, c.Total.StringFixed(2))
	}
	tw.Flush()
}
