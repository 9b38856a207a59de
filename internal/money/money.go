// Package money renders upstream minor-unit amounts for calendar titles.
package money

import (
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Amount is an integer number of minor currency units (pence, cents)
// together with its ISO 4217 code.
type Amount struct {
	Currency   string
	MinorUnits int64
}

var symbolPrinter = message.NewPrinter(language.English)

// Symbol returns the display symbol for an ISO currency code. Codes
// without a known symbol fall back to the upper-cased code itself.
func Symbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return code
	}
	return symbolPrinter.Sprint(currency.NarrowSymbol(unit))
}

// Major renders minor units as a decimal with exactly two places,
// e.g. 1234 -> "12.34", -5 -> "-0.05".
func Major(minorUnits int64) string {
	sign := ""
	if minorUnits < 0 {
		sign = "-"
		minorUnits = -minorUnits
	}
	whole := strconv.FormatInt(minorUnits/100, 10)
	frac := minorUnits % 100
	if frac < 10 {
		return sign + whole + ".0" + strconv.FormatInt(frac, 10)
	}
	return sign + whole + "." + strconv.FormatInt(frac, 10)
}

// FormatAmount returns "(<symbol><major>)", e.g. "(£12.34)".
func FormatAmount(a Amount) string {
	return "(" + Symbol(a.Currency) + Major(a.MinorUnits) + ")"
}
