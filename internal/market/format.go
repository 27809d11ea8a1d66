package market

import (
	"math/big"
	"strings"
)

// FixedBase is the fixed-point scale of on-chain numeric fields.
var FixedBase = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

const fixedDecimals = 18

// FormatFixed renders a fixed-point value as a decimal string with trailing
// fractional zeros trimmed.
func FormatFixed(v *big.Int) string {
	if v == nil {
		return "0"
	}
	abs := new(big.Int).Abs(v)
	intPart, frac := new(big.Int).QuoRem(abs, FixedBase, new(big.Int))

	var b strings.Builder
	if v.Sign() < 0 {
		b.WriteByte('-')
	}
	b.WriteString(intPart.String())
	if frac.Sign() != 0 {
		digits := frac.String()
		digits = strings.Repeat("0", fixedDecimals-len(digits)) + digits
		b.WriteByte('.')
		b.WriteString(strings.TrimRight(digits, "0"))
	}
	return b.String()
}

// ParseFixed converts a decimal string into its fixed-point integer form.
func ParseFixed(s string) (*big.Int, bool) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, false
	}
	r.Mul(r, new(big.Rat).SetInt(FixedBase))
	if !r.IsInt() {
		return nil, false
	}
	return new(big.Int).Set(r.Num()), true
}

// FormatAddress normalizes a hex value to a lowercase 0x-prefixed 20-byte
// address. Short values are left-padded, 32-byte words keep the low 20 bytes.
func FormatAddress(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")
	if len(s) > 40 {
		s = s[len(s)-40:]
	}
	return "0x" + strings.Repeat("0", 40-len(s)) + s
}

// FormatTradeType maps a wire trade type ("1", "0x1", "2", ...) to "buy" or
// "sell". Unparseable input yields "".
func FormatTradeType(s string) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok {
		return ""
	}
	return tradeType(n)
}

func tradeType(n *big.Int) string {
	if n != nil && n.Cmp(big.NewInt(1)) == 0 {
		return "buy"
	}
	return "sell"
}
