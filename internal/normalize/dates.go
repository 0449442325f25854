package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/calwatch/warchest/internal/model"
)

// pivotWindow is how far into the future a parsed year may land before the
// two-digit-year pivot rolls it back a century.
const pivotWindow = 30

// parseDate tries each configured format in order. When pivot is enabled
// for the source, years landing implausibly far in the future are treated
// as last-century dates (a "68" meant 1968, not 2068).
func parseDate(value string, formats []string, pivot bool, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, format := range formats {
		t, err := time.Parse(format, value)
		if err != nil {
			continue
		}
		if pivot && t.Year() > now.Year()+pivotWindow {
			t = t.AddDate(-100, 0, 0)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("date %q matches none of the configured formats", value)
}

// parseAmount accepts plain decimals plus the currency noise real exports
// carry: dollar signs, thousands separators, parenthesized negatives.
func parseAmount(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not a number", value)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

var triBoolValues = map[string]model.TriBool{
	"true": model.True, "t": model.True, "yes": model.True, "y": model.True, "1": model.True,
	"s": model.True, "support": model.True,
	"false": model.False, "f": model.False, "no": model.False, "n": model.False, "0": model.False,
	"o": model.False, "oppose": model.False,
	"": model.Unknown, "unknown": model.Unknown, "x": model.Unknown,
}

// parseTriBool maps source boolean spellings onto three values. Anything
// unrecognized is an error, not a silent false.
func parseTriBool(value string) (model.TriBool, error) {
	b, ok := triBoolValues[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return model.Unknown, fmt.Errorf("boolean %q not recognized", value)
	}
	return b, nil
}
