package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegionalDecimal(t *testing.T) {
	t.Run("parses plain and grouped amounts", func(t *testing.T) {
		cases := map[string]string{
			"1.234.567,89":  "1234567.89",
			"1.000,00":      "1000",
			"100,50":        "100.5",
			"0,00000001":    "0.00000001",
			"$ 15.000,00":   "15000",
			"$1.500,25":     "1500.25",
			"-2.500,75":     "-2500.75",
			"7":             "7",
			"123":           "123",
		}
		for token, want := range cases {
			got, err := ParseRegionalDecimal(token, 0)
			require.NoError(t, err, "token %q", token)
			assert.True(t, got.Equal(decimal.RequireFromString(want)),
				"token %q: got %s, want %s", token, got, want)
		}
	})

	t.Run("rejects malformed tokens", func(t *testing.T) {
		for _, token := range []string{
			"",
			"$",
			"1,234,56",
			"12.34,56",
			"1.23",
			"1234.567,89",
			"abc",
			"12a,50",
			"1.000,",
			",50",
		} {
			_, err := ParseRegionalDecimal(token, 0)
			assert.ErrorIs(t, err, ErrMalformedNumber, "token %q", token)
		}
	})

	t.Run("enforces the digit cap", func(t *testing.T) {
		_, err := ParseRegionalDecimal("1.234.567,89", 8)
		assert.ErrorIs(t, err, ErrMalformedNumber)

		got, err := ParseRegionalDecimal("1.234.567,89", 10)
		require.NoError(t, err)
		assert.Equal(t, "1234567.89", got.String())
	})

	t.Run("never loses precision on multiplication", func(t *testing.T) {
		qty, err := ParseRegionalDecimal("1.000,00", 0)
		require.NoError(t, err)
		unit, err := ParseRegionalDecimal("100,50", 0)
		require.NoError(t, err)

		product := qty.Mul(unit)
		assert.True(t, product.Equal(decimal.RequireFromString("100500")),
			"got %s", product)
	})
}

func TestFormatRegionalDecimal(t *testing.T) {
	t.Run("round-trips through the parser", func(t *testing.T) {
		for _, s := range []string{"1234567.89", "-1234567.89", "0", "999.99", "1000", "12.3"} {
			d := decimal.RequireFromString(s)
			formatted := FormatRegionalDecimal(d, 2)
			parsed, err := ParseRegionalDecimal(formatted, 0)
			require.NoError(t, err, "formatted %q", formatted)
			assert.True(t, parsed.Equal(d.RoundBank(2)), "formatted %q parsed to %s", formatted, parsed)
		}
	})

	t.Run("groups thousands with dots", func(t *testing.T) {
		assert.Equal(t, "1.234.567,89", FormatRegionalDecimal(decimal.RequireFromString("1234567.89"), 2))
		assert.Equal(t, "-1.000,00", FormatRegionalDecimal(decimal.RequireFromString("-1000"), 2))
		assert.Equal(t, "100,50", FormatRegionalDecimal(decimal.RequireFromString("100.5"), 2))
	})
}

func TestRoundAmount(t *testing.T) {
	// Half-even: .005 rounds toward the even cent.
	assert.Equal(t, "2.00", RoundAmount(decimal.RequireFromString("2.005")).StringFixed(2))
	assert.Equal(t, "2.02", RoundAmount(decimal.RequireFromString("2.015")).StringFixed(2))
	assert.Equal(t, "2.01", RoundAmount(decimal.RequireFromString("2.012")).StringFixed(2))
}
