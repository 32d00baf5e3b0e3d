package statement

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount cleans a statement currency cell and parses it as a decimal.
// Thousands separators, whitespace and minus signs are stripped: the sign of a
// movement is carried by the column it appears in, never by the cell text.
// An empty cell is zero. An unparseable cell yields zero and ok=false.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	if cleaned == "" {
		return decimal.Zero, true
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
