package analytics

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/domain"
)

func receipts(l domain.Ledger) []string {
	var out []string
	for _, tx := range l {
		out = append(out, tx.ReceiptNo)
	}
	return out
}

func TestDateRange(t *testing.T) {
	ledger := sampleLedger()
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 15, 30, 0, 0, time.UTC) }

	tests := []struct {
		name       string
		start, end time.Time
		want       string
	}{
		{"open", time.Time{}, time.Time{}, "RKA0000001,RKA0000002,RKA0000003,RKA0000004,RKA0000005,RKA0000006,RKA0000007"},
		{"inclusive calendar days", day(1, 6), day(3, 1), "RKA0000002,RKA0000003,RKA0000004"},
		{"start only", day(3, 2), time.Time{}, "RKA0000005,RKA0000007"},
		{"end only", time.Time{}, day(1, 5), "RKA0000001"},
		{"empty window", day(2, 1), day(2, 28), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(receipts(DateRange(ledger, tt.start, tt.end)), ",")
			if got != tt.want {
				t.Errorf("DateRange() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewestFirst(t *testing.T) {
	at := func(d int) *time.Time {
		ts := time.Date(2024, 1, d, 8, 0, 0, 0, time.UTC)
		return &ts
	}
	ledger := domain.Ledger{
		{ReceiptNo: "RKA0000001", CompletionTime: at(3)},
		{ReceiptNo: "RKA0000002"},
		{ReceiptNo: "RKA0000003", CompletionTime: at(9)},
		{ReceiptNo: "RKA0000004", CompletionTime: at(3)},
		{ReceiptNo: "RKA0000005"},
	}

	got := strings.Join(receipts(NewestFirst(ledger)), ",")
	if want := "RKA0000003,RKA0000001,RKA0000004,RKA0000002,RKA0000005"; got != want {
		t.Errorf("NewestFirst() = %s, want %s", got, want)
	}
	if ledger[0].ReceiptNo != "RKA0000001" || ledger[2].ReceiptNo != "RKA0000003" {
		t.Error("NewestFirst() reordered its input")
	}
}

func TestSearch(t *testing.T) {
	ledger := sampleLedger()

	tests := []struct {
		term string
		want string
	}{
		{"", "RKA0000001,RKA0000002,RKA0000003,RKA0000004,RKA0000005,RKA0000006,RKA0000007"},
		{"store x", "RKA0000001,RKA0000004"},
		{"kplc", "RKA0000005"},
		{"rka0000003", "RKA0000003"},
		{"nothing matches", ""},
	}

	for _, tt := range tests {
		got := strings.Join(receipts(Search(ledger, tt.term)), ",")
		if got != tt.want {
			t.Errorf("Search(%q) = %s, want %s", tt.term, got, tt.want)
		}
	}
}

func TestBuildInsightSummary(t *testing.T) {
	ledger := sampleLedger()
	for i, cat := range []domain.Category{domain.CategoryLoan, domain.CategorySentToMpesa, domain.CategoryWithdrawCash} {
		ledger = append(ledger, tx("RKB000000"+string(rune('1'+i)), nil, "extra", "-1", cat))
	}

	summary := BuildInsightSummary(ledger)
	if len(summary.TopSpendingCategories) != 5 {
		t.Fatalf("TopSpendingCategories = %d entries, want 5", len(summary.TopSpendingCategories))
	}
	if summary.TopSpendingCategories[0].Category != domain.CategoryBuyGoods {
		t.Errorf("largest expense category = %q, want Buy Goods", summary.TopSpendingCategories[0].Category)
	}
	if summary.PeriodSummary.TransactionCount != ledger.Len() {
		t.Errorf("PeriodSummary.TransactionCount = %d, want %d", summary.PeriodSummary.TransactionCount, ledger.Len())
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	for _, key := range []string{`"period_summary"`, `"top_spending_categories"`, `"total_income"`, `"net_savings"`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("summary JSON missing %s: %s", key, raw)
		}
	}
}

func TestBuildInsightSummary_Empty(t *testing.T) {
	raw, err := json.Marshal(BuildInsightSummary(nil))
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if !strings.Contains(string(raw), `"top_spending_categories":[]`) {
		t.Errorf("empty summary should carry an empty list: %s", raw)
	}
}

func TestDailyActivity(t *testing.T) {
	ledger := domain.Ledger{
		tx("RKA0000001", at(2024, 1, 1, 9), "a", "-1", domain.CategoryOther), // Monday
		tx("RKA0000002", at(2024, 1, 8, 9), "b", "-1", domain.CategoryOther), // Monday
		tx("RKA0000003", at(2024, 1, 7, 23), "c", "1", domain.CategoryOther), // Sunday
		tx("RKA0000004", nil, "d", "1", domain.CategoryOther),
	}

	got := DailyActivity(ledger)
	want := []ActivityCell{
		{Weekday: time.Sunday, Hour: 23, Count: 1},
		{Weekday: time.Monday, Hour: 9, Count: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("DailyActivity() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
