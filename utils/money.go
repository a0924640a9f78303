package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var amountCleaner = strings.NewReplacer("₦", "", "NGN", "", ",", "", " ", "", "\u00a0", "")

// ParseAmount reads a typed or spreadsheet amount such as "5000", "₦5,000.50"
// or "NGN 12 000". Anything else that does not parse as a number is rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := amountCleaner.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Decimal{}, errors.New("amount is required")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// FormatNaira renders a receipt amount with grouping and two decimals, e.g. ₦5,000.00.
func FormatNaira(d decimal.Decimal) string {
	return "₦" + groupFixed(d.StringFixed(2))
}

// FormatNairaShort drops the decimals for whole amounts, e.g. ₦15,000 or ₦1,250.5.
func FormatNairaShort(d decimal.Decimal) string {
	return "₦" + GroupDigits(d)
}

// GroupDigits groups the integer part with commas and keeps at most two
// significant decimals. It works on the decimal text, so amounts of any
// size keep every digit.
func GroupDigits(d decimal.Decimal) string {
	s := groupFixed(d.StringFixed(2))
	switch {
	case strings.HasSuffix(s, ".00"):
		return s[:len(s)-3]
	case strings.HasSuffix(s, "0"):
		// 1,250.50 -> 1,250.5
		return s[:len(s)-1]
	}
	return s
}

// groupFixed inserts thousands separators into a plain decimal string such
// as "-1234567.89".
func groupFixed(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	b.Grow(len(s) + len(intPart)/3 + 1)
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
