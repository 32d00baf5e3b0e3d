package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/dvloznov/mpesa-insights/internal/statement"
	"github.com/shopspring/decimal"
)

func sample() domain.Ledger {
	t1 := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 6, 12, 30, 15, 0, time.UTC)
	return domain.Ledger{
		{
			ReceiptNo:         "RKA1234567",
			CompletionTime:    &t1,
			Details:           "Buy Goods Store X, Nairobi",
			TransactionStatus: "Completed",
			Withdrawn:         decimal.RequireFromString("500"),
			Balance:           decimal.RequireFromString("1500"),
			Amount:            decimal.RequireFromString("-500"),
			Category:          domain.CategoryBuyGoods,
		},
		{
			ReceiptNo:         "RKB7654321",
			CompletionTime:    &t2,
			Details:           "Funds received from \"JOHN\"",
			TransactionStatus: "Completed",
			PaidIn:            decimal.RequireFromString("2000.5"),
			Balance:           decimal.RequireFromString("3500.5"),
			Amount:            decimal.RequireFromString("2000.5"),
			Category:          domain.CategoryReceivedMpesa,
		},
		{
			ReceiptNo: "RKC0000001",
			Details:   "Received for Art",
			PaidIn:    decimal.RequireFromString("10"),
			Amount:    decimal.RequireFromString("10"),
			Category:  domain.CategoryOther,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("WriteCSV() wrote %d lines, want 4:\n%s", len(lines), buf.String())
	}

	wantHeader := "Receipt No.,Completion Time,Details,Transaction Status,Paid In,Withdrawn,Balance,Amount,Category"
	if lines[0] != wantHeader {
		t.Errorf("header = %q, want %q", lines[0], wantHeader)
	}
	wantFirst := `RKA1234567,2024-01-05 10:00:00,"Buy Goods Store X, Nairobi",Completed,0.00,500.00,1500.00,-500.00,Buy Goods`
	if lines[1] != wantFirst {
		t.Errorf("first row = %q, want %q", lines[1], wantFirst)
	}
	if !strings.HasPrefix(lines[3], "RKC0000001,,") {
		t.Errorf("null completion time should export empty: %q", lines[3])
	}
}

func TestMoney(t *testing.T) {
	tests := map[string]string{
		"500":     "500.00",
		"2000.5":  "2000.50",
		"0":       "0.00",
		"0.004":   "0.004",
		"-12.345": "-12.345",
		"1.2500":  "1.2500",
	}
	for in, want := range tests {
		if got := money(decimal.RequireFromString(in)); got != want {
			t.Errorf("money(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	t3 := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)
	original := append(sample(),
		domain.Transaction{
			ReceiptNo:         "RKD0000001",
			CompletionTime:    &t3,
			Details:           "Interest earned",
			TransactionStatus: "Completed",
			PaidIn:            decimal.RequireFromString("0.004"),
			Balance:           decimal.RequireFromString("3500.504"),
			Amount:            decimal.RequireFromString("0.004"),
			Category:          domain.CategoryOther,
		},
		domain.Transaction{
			ReceiptNo:         "RKD0000002",
			CompletionTime:    &t3,
			Details:           "Airtime Purchase",
			TransactionStatus: "Completed",
			Withdrawn:         decimal.RequireFromString("12.345"),
			Balance:           decimal.RequireFromString("3488.159"),
			Amount:            decimal.RequireFromString("-12.345"),
			Category:          domain.CategoryAirtime,
		},
	)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, original); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	ctx := context.Background()
	table, err := statement.NewNormalizer(nil).Normalize(ctx, buf.Bytes(), domain.FormatCSV)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	again, _, err := statement.NewCleaner(statement.Options{}, nil).Clean(ctx, table)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	if again.Len() != original.Len() {
		t.Fatalf("round trip rows = %d, want %d", again.Len(), original.Len())
	}
	for i := range original {
		want, got := original[i], again[i]
		if got.ReceiptNo != want.ReceiptNo {
			t.Errorf("row %d ReceiptNo = %q, want %q", i, got.ReceiptNo, want.ReceiptNo)
		}
		if !got.Amount.Equal(want.Amount) {
			t.Errorf("row %d Amount = %s, want %s", i, got.Amount, want.Amount)
		}
		if got.Category != want.Category {
			t.Errorf("row %d Category = %q, want %q", i, got.Category, want.Category)
		}
		switch {
		case want.CompletionTime == nil:
			if got.CompletionTime != nil {
				t.Errorf("row %d CompletionTime = %v, want nil", i, got.CompletionTime)
			}
		case got.CompletionTime == nil || !got.CompletionTime.Equal(want.CompletionTime.Truncate(time.Second)):
			t.Errorf("row %d CompletionTime = %v, want %v", i, got.CompletionTime, want.CompletionTime)
		}
	}
}

func TestFilename(t *testing.T) {
	tests := map[string]string{
		"":                 "mpesa_transactions.csv",
		"statement.pdf":    "mpesa_transactions_statement.csv",
		"dir/jan.2024.csv": "mpesa_transactions_jan.2024.csv",
		"no_extension":     "mpesa_transactions_no_extension.csv",
	}
	for in, want := range tests {
		if got := Filename(in); got != want {
			t.Errorf("Filename(%q) = %q, want %q", in, got, want)
		}
	}
}
