package statement

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"1,500.00", "1500", true},
		{" 2 000.50 ", "2000.5", true},
		{"-500.00", "500", true},
		{"1 000", "1000", true},
		{"", "0", true},
		{"   ", "0", true},
		{"abc", "0", false},
		{"Ksh 100", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			if ok != tt.wantOK {
				t.Errorf("ParseAmount(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAmount_ExactSum(t *testing.T) {
	a, _ := ParseAmount("0.10")
	b, _ := ParseAmount("0.20")
	if !a.Add(b).Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("0.10 + 0.20 = %s, want exactly 0.30", a.Add(b))
	}
}

func TestParseTimestamp(t *testing.T) {
	jan5 := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-05 10:00:00", jan5},
		{"05-01-2024 10:00:00", jan5},
		{"5-1-2024 10:00:00", jan5},
		{"05/01/2024 10:00", jan5},
		{"2024/01/05 10:00:00", jan5},
		{"2024-01-05T10:00:00", jan5},
		{"2024-01-05T10:00:00Z", jan5},
		{"2024-01-05T13:00:00+03:00", jan5},
		{"  2024-01-05   10:00:00 ", jan5},
		{"2024-01-05 10:00:00.123", jan5.Add(123 * time.Millisecond)},
		{"2024-01-05", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"05/01/2024", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			if !ok || got == nil {
				t.Fatalf("ParseTimestamp(%q) failed", tt.in)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("ParseTimestamp(%q) location = %v, want UTC", tt.in, got.Location())
			}
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "not a date", "32-13-2024 10:00:00", "2024-01-05 25:00:00"} {
		if got, ok := ParseTimestamp(in); ok || got != nil {
			t.Errorf("ParseTimestamp(%q) = %v, %v; want nil, false", in, got, ok)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{newIngestError(ErrUnsupportedFormat, "xls", nil), "unsupported_format"},
		{newIngestError(ErrHeaderNotFound, "csv", nil), "header_not_found"},
		{newIngestError(ErrNoTransactionsFound, "pdf", nil), "no_transactions_found"},
		{newIngestError(ErrParseFailure, "csv", ErrMissingReceiptColumn), "parse_failure"},
		{fmt.Errorf("pipeline: %w", newIngestError(ErrParseFailure, "pdf", errors.New("boom"))), "parse_failure"},
		{errors.New("disk full"), "internal"},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestIngestError_Message(t *testing.T) {
	err := newIngestError(ErrHeaderNotFound, "csv", errors.New("scanned 20 lines"))
	want := "statement: transaction header not found (format csv): scanned 20 lines"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestUserMessage(t *testing.T) {
	cause := errors.New("ExtractTables: generate content: quota exceeded")
	tests := []struct {
		err  error
		want string
	}{
		{newIngestError(ErrUnsupportedFormat, "xls", cause), "Unsupported file type. Please upload a PDF or CSV M-Pesa statement."},
		{newIngestError(ErrHeaderNotFound, "csv", cause), "Could not find the transaction table header in this CSV statement."},
		{newIngestError(ErrParseFailure, "", fmt.Errorf("clean: mapping headers: %w", ErrMissingReceiptColumn)), "The statement has no Receipt No. column."},
		{newIngestError(ErrParseFailure, "pdf", cause), "The statement could not be read."},
	}

	for _, tt := range tests {
		got := UserMessage(tt.err)
		if got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
		if strings.Contains(got, "quota") || strings.Contains(got, "clean:") {
			t.Errorf("UserMessage(%v) leaks the cause: %q", tt.err, got)
		}
	}
}
