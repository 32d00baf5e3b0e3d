package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/shopspring/decimal"
)

func cliLedger() domain.Ledger {
	jan := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 3, 18, 30, 0, 0, time.UTC)
	return domain.Ledger{
		{
			ReceiptNo:      "SAA0000001",
			CompletionTime: &jan,
			Details:        "Merchant Payment to Naivas",
			Withdrawn:      decimal.NewFromInt(300),
			Amount:         decimal.NewFromInt(-300),
			Category:       domain.CategoryBuyGoods,
		},
		{
			ReceiptNo:      "SAA0000002",
			CompletionTime: &feb,
			Details:        "Airtime Purchase",
			Withdrawn:      decimal.NewFromInt(50),
			Amount:         decimal.NewFromInt(-50),
			Category:       domain.CategoryAirtime,
		},
	}
}

func TestFilterLedger(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		search  string
		want    int
		wantErr bool
	}{
		{name: "no filters", want: 2},
		{name: "start only", start: "2024-02-01", want: 1},
		{name: "end only", end: "2024-01-31", want: 1},
		{name: "inclusive end day", start: "2024-01-10", end: "2024-01-10", want: 1},
		{name: "search", search: "naivas", want: 1},
		{name: "bad date", start: "10/01/2024", wantErr: true},
		{name: "inverted range", start: "2024-02-01", end: "2024-01-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := filterLedger(cliLedger(), tt.start, tt.end, tt.search)
			if (err != nil) != tt.wantErr {
				t.Fatalf("filterLedger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Len() != tt.want {
				t.Errorf("filterLedger() = %d transactions, want %d", got.Len(), tt.want)
			}
		})
	}
}

func TestPrintAnalysis(t *testing.T) {
	var buf bytes.Buffer
	printAnalysis(&buf, cliLedger(), 5)
	out := buf.String()

	for _, want := range []string{
		"Transactions:   2",
		"Total expenses: KES 350.00",
		"Net savings:    KES -350.00",
		"Period:         2024-01-10 to 2024-02-03",
		"Jan 2024",
		"Feb 2024",
		"Merchant Payment to Naivas",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintAnalysis_Empty(t *testing.T) {
	var buf bytes.Buffer
	printAnalysis(&buf, domain.Ledger{}, 5)
	if !strings.Contains(buf.String(), "Total income:   KES 0.00") {
		t.Errorf("empty ledger output:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Period:") {
		t.Error("empty ledger should have no period line")
	}
}
