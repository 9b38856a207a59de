package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount Amount
		want   string
	}{
		{Amount{Currency: "GBP", MinorUnits: 1234}, "(£12.34)"},
		{Amount{Currency: "USD", MinorUnits: 100}, "($1.00)"},
		{Amount{Currency: "EUR", MinorUnits: 5}, "(€0.05)"},
		{Amount{Currency: "gbp", MinorUnits: 0}, "(£0.00)"},
		{Amount{Currency: "GBP", MinorUnits: -150}, "(£-1.50)"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatAmount(tc.amount))
	}
}

func TestSymbolFallsBackToCode(t *testing.T) {
	assert.Equal(t, "QQQ", Symbol("QQQ"))
	assert.Equal(t, "NOTACODE", Symbol("notacode"))
}

func TestMajor(t *testing.T) {
	assert.Equal(t, "12.34", Major(1234))
	assert.Equal(t, "0.05", Major(5))
	assert.Equal(t, "1.00", Major(100))
	assert.Equal(t, "-0.05", Major(-5))
	assert.Equal(t, "1000000.10", Major(100000010))
}
