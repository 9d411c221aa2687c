// Package units formats microstacks and satoshis as decimal strings.
package units

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	StacksDecimals = 6
	BTCDecimals    = 8

	// MicroStacksPerStacks is the number of microstacks in one STX.
	MicroStacksPerStacks = 1_000_000
)

// TotalStacks is the genesis supply in STX, airdrop included.
var TotalStacks = decimal.NewFromInt(1_320_000_000).Add(decimal.NewFromInt(322_146*100 + 5*50_000))

// Stacks renders microstacks as STX with six fixed decimals, e.g. "8649.000000".
func Stacks(micro int64) string {
	return decimal.New(micro, -StacksDecimals).StringFixed(StacksDecimals)
}

// StacksFormatted renders microstacks as STX with thousands separators.
func StacksFormatted(micro int64) string {
	return Thousands(Stacks(micro))
}

// StacksFromString renders a decimal microstacks string as STX. Values beyond
// int64 are accepted.
func StacksFromString(micro string) (string, error) {
	d, err := decimal.NewFromString(micro)
	if err != nil {
		return "", fmt.Errorf("parse microstacks %q: %w", micro, err)
	}
	return d.Shift(-StacksDecimals).StringFixed(StacksDecimals), nil
}

// BTC renders satoshis as BTC with eight fixed decimals.
func BTC(sats int64) string {
	return decimal.New(sats, -BTCDecimals).StringFixed(BTCDecimals)
}

// BTCFormatted renders satoshis as BTC with thousands separators.
func BTCFormatted(sats int64) string {
	return Thousands(BTC(sats))
}

// Percent renders part/whole*100 with two decimals. A zero whole yields "0.00".
func Percent(part, whole decimal.Decimal) string {
	if whole.IsZero() {
		return "0.00"
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).StringFixed(2)
}

// Thousands inserts comma separators into the integer part of a decimal string.
func Thousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
