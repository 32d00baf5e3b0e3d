// Package categorizer assigns a purpose category to statement transactions
// using an ordered list of keyword rules.
package categorizer

import (
	"slices"
	"strings"

	"github.com/dvloznov/mpesa-insights/internal/domain"
)

// Rule maps a set of keywords to a category. A rule matches when the
// lower-cased details text contains any of its keywords.
type Rule struct {
	Name     string
	Keywords []string
	Category domain.Category
}

// Matches reports whether the rule applies to already lower-cased text.
func (r Rule) Matches(lowered string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// DefaultRules returns the M-Pesa rule set. Order matters: the first match wins,
// so "Pay Bill loan repayment" resolves to Pay Bill, not Loan.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "airtime", Keywords: []string{"airtime"}, Category: domain.CategoryAirtime},
		{Name: "pay_bill", Keywords: []string{"pay bill", "paybill"}, Category: domain.CategoryPayBill},
		{Name: "buy_goods", Keywords: []string{"buy goods"}, Category: domain.CategoryBuyGoods},
		{Name: "sent", Keywords: []string{"customer transfer", "sent to"}, Category: domain.CategorySentToMpesa},
		{Name: "received", Keywords: []string{"received from"}, Category: domain.CategoryReceivedMpesa},
		{Name: "withdraw", Keywords: []string{"withdraw"}, Category: domain.CategoryWithdrawCash},
		{Name: "deposit", Keywords: []string{"deposit"}, Category: domain.CategoryDeposit},
		{Name: "loan", Keywords: []string{"loan", "fuliza", "m-shwari"}, Category: domain.CategoryLoan},
	}
}

// Categorizer evaluates rules in order and returns the first match.
// It is safe for concurrent use; rules are never modified after New.
type Categorizer struct {
	rules []Rule
}

// New creates a Categorizer. With no rules it uses DefaultRules.
func New(rules ...Rule) *Categorizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	own := make([]Rule, len(rules))
	for i, r := range rules {
		kws := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		own[i] = Rule{Name: r.Name, Keywords: kws, Category: r.Category}
	}
	return &Categorizer{rules: own}
}

// Categorize returns the category of the first matching rule, or Other.
func (c *Categorizer) Categorize(details string) domain.Category {
	lowered := strings.ToLower(details)
	for _, r := range c.rules {
		if r.Matches(lowered) {
			return r.Category
		}
	}
	return domain.CategoryOther
}

// Rules returns a copy of the configured rules in evaluation order.
func (c *Categorizer) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = Rule{Name: r.Name, Keywords: slices.Clone(r.Keywords), Category: r.Category}
	}
	return out
}

var defaultCategorizer = New()

// Categorize classifies details with the default rule set.
func Categorize(details string) domain.Category {
	return defaultCategorizer.Categorize(details)
}
