package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the scale applied when comparing or presenting monetary
// amounts. Intermediate arithmetic is never rounded, only boundaries are.
const AmountScale = 2

// DefaultMaxNumericDigits caps the digit count of a parsed token. Anything
// longer is treated as extraction noise rather than a real amount.
const DefaultMaxNumericDigits = 18

var ErrMalformedNumber = errors.New("malformed regional number")

// ParseRegionalDecimal converts a token in Argentine statement format
// ("1.234.567,89": '.' groups thousands, ',' starts decimals) into an exact
// decimal. The value never passes through a float64.
func ParseRegionalDecimal(token string, maxDigits int) (decimal.Decimal, error) {
	if maxDigits <= 0 {
		maxDigits = DefaultMaxNumericDigits
	}

	cleaned := strings.TrimSpace(token)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimSpace(cleaned)

	neg := strings.HasPrefix(cleaned, "-")
	if neg {
		cleaned = cleaned[1:]
	}
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty token", ErrMalformedNumber)
	}

	if strings.Count(cleaned, ",") > 1 {
		return decimal.Zero, fmt.Errorf("%w: %q has more than one decimal separator", ErrMalformedNumber, token)
	}

	intPart := cleaned
	fracPart := ""
	if i := strings.IndexByte(cleaned, ','); i >= 0 {
		intPart, fracPart = cleaned[:i], cleaned[i+1:]
		if fracPart == "" || strings.ContainsAny(fracPart, ".") {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedNumber, token)
		}
	}

	intDigits := strings.ReplaceAll(intPart, ".", "")
	if intDigits == "" {
		return decimal.Zero, fmt.Errorf("%w: %q has no integer digits", ErrMalformedNumber, token)
	}
	if !allDigits(intDigits) || !allDigits(fracPart) {
		return decimal.Zero, fmt.Errorf("%w: %q contains non-numeric characters", ErrMalformedNumber, token)
	}
	if len(intDigits)+len(fracPart) > maxDigits {
		return decimal.Zero, fmt.Errorf("%w: %q exceeds %d digits", ErrMalformedNumber, token, maxDigits)
	}

	// Thousands groups, when dots are present, must be groups of three.
	if strings.Contains(intPart, ".") {
		groups := strings.Split(intPart, ".")
		for i, g := range groups {
			if i == 0 {
				if len(g) == 0 || len(g) > 3 {
					return decimal.Zero, fmt.Errorf("%w: %q has bad thousands grouping", ErrMalformedNumber, token)
				}
				continue
			}
			if len(g) != 3 {
				return decimal.Zero, fmt.Errorf("%w: %q has bad thousands grouping", ErrMalformedNumber, token)
			}
		}
	}

	normalized := intDigits
	if fracPart != "" {
		normalized += "." + fracPart
	}
	if neg {
		normalized = "-" + normalized
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrMalformedNumber, token, err)
	}
	return d, nil
}

// FormatRegionalDecimal renders a decimal back into statement format with the
// given scale, so that ParseRegionalDecimal round-trips.
func FormatRegionalDecimal(d decimal.Decimal, scale int) string {
	s := d.StringFixed(int32(scale))

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	if fracPart != "" {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}

// RoundAmount applies the documented boundary rounding rule (half-even at
// AmountScale). Use only when comparing or presenting, never mid-computation.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(AmountScale)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
