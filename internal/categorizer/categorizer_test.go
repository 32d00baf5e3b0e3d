package categorizer

import (
	"testing"

	"github.com/dvloznov/mpesa-insights/internal/domain"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name    string
		details string
		want    domain.Category
	}{
		{"airtime", "Airtime Purchase", domain.CategoryAirtime},
		{"pay bill with space", "Pay Bill via 12345", domain.CategoryPayBill},
		{"paybill joined", "PayBill Online to KPLC", domain.CategoryPayBill},
		{"buy goods", "Buy Goods Store X", domain.CategoryBuyGoods},
		{"sent to", "Sent to 0712...", domain.CategorySentToMpesa},
		{"customer transfer", "Customer Transfer to JOHN DOE", domain.CategorySentToMpesa},
		{"received from", "Funds Received from ...", domain.CategoryReceivedMpesa},
		{"withdraw", "Customer Withdrawal At Agent Till 1234", domain.CategoryWithdrawCash},
		{"deposit", "Deposit of Funds at Agent Till", domain.CategoryDeposit},
		{"loan", "Loan Repayment", domain.CategoryLoan},
		{"fuliza", "OverDraft of Credit Party Fuliza", domain.CategoryLoan},
		{"m-shwari", "M-Shwari Withdraw", domain.CategoryWithdrawCash},
		{"m-shwari transfer", "M-Shwari Transfer", domain.CategoryLoan},
		{"no rule", "Something else entirely", domain.CategoryOther},
		{"empty", "", domain.CategoryOther},
		// "received for" is not "received from"; the rule set is literal.
		{"received for is not received from", "Received for Art", domain.CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.details); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.details, got, tt.want)
			}
		})
	}
}

func TestCategorize_RuleOrder(t *testing.T) {
	tests := []struct {
		details string
		want    domain.Category
	}{
		{"Pay Bill loan repayment", domain.CategoryPayBill},
		{"Airtime via Pay Bill", domain.CategoryAirtime},
		{"Buy Goods sent to till", domain.CategoryBuyGoods},
		{"Customer Transfer received from bank", domain.CategorySentToMpesa},
		{"Deposit to loan account", domain.CategoryDeposit},
	}

	for _, tt := range tests {
		t.Run(tt.details, func(t *testing.T) {
			if got := Categorize(tt.details); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.details, got, tt.want)
			}
		})
	}
}

func TestCategorize_AlwaysValid(t *testing.T) {
	inputs := []string{"", "x", "AIRTIME", "pay bill", "random", "FULIZA", "bank transfer"}
	for _, in := range inputs {
		if got := Categorize(in); !got.Valid() {
			t.Errorf("Categorize(%q) = %q, not in the category set", in, got)
		}
	}
}

func TestNew_CustomRules(t *testing.T) {
	// Bank Transfer is only reachable through additional rules.
	c := New(append([]Rule{
		{Name: "bank", Keywords: []string{"BANK TRANSFER"}, Category: domain.CategoryBankTransfer},
	}, DefaultRules()...)...)

	if got := c.Categorize("Bank Transfer from Equity"); got != domain.CategoryBankTransfer {
		t.Errorf("Categorize() = %q, want %q", got, domain.CategoryBankTransfer)
	}
	if got := c.Categorize("Airtime Purchase"); got != domain.CategoryAirtime {
		t.Errorf("Categorize() = %q, want %q", got, domain.CategoryAirtime)
	}
	if !domain.CategoryBankTransfer.Valid() {
		t.Error("Bank Transfer should be a valid category")
	}
}

func TestRules_ReturnsCopy(t *testing.T) {
	c := New()
	rules := c.Rules()
	rules[0].Category = domain.CategoryLoan

	if got := c.Categorize("airtime"); got != domain.CategoryAirtime {
		t.Errorf("mutating Rules() result changed categorizer: got %q", got)
	}

	for i := range rules {
		for j := range rules[i].Keywords {
			rules[i].Keywords[j] = "zzz-no-match"
		}
	}
	if got := c.Categorize("Airtime Purchase"); got != domain.CategoryAirtime {
		t.Errorf("mutating Rules() keywords changed categorizer: got %q", got)
	}
}
