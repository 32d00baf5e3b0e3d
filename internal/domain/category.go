package domain

// Category is the purpose label assigned to a transaction.
type Category string

const (
	CategorySentToMpesa   Category = "Sent to M-Pesa"
	CategoryReceivedMpesa Category = "Received M-Pesa"
	CategoryPayBill       Category = "Pay Bill"
	CategoryBuyGoods      Category = "Buy Goods"
	CategoryAirtime       Category = "Airtime"
	CategoryWithdrawCash  Category = "Withdraw Cash"
	CategoryDeposit       Category = "Deposit"
	// CategoryBankTransfer is part of the closed set but no default rule produces it.
	CategoryBankTransfer Category = "Bank Transfer"
	CategoryLoan         Category = "Loan"
	CategoryOther        Category = "Other"
)

var allCategories = []Category{
	CategorySentToMpesa,
	CategoryReceivedMpesa,
	CategoryPayBill,
	CategoryBuyGoods,
	CategoryAirtime,
	CategoryWithdrawCash,
	CategoryDeposit,
	CategoryBankTransfer,
	CategoryLoan,
	CategoryOther,
}

// AllCategories returns every valid category in declaration order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
