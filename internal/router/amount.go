package router

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// maxUnits keeps units*100+frac inside int64.
const maxUnits = (math.MaxInt64 - 99) / 100

// errMalformedAmount marks input that is not a parseable amount. The flow
// re-prompts without advancing state.
var errMalformedAmount = errors.New("malformed amount")

// parseAmount converts amount text to minor units plus a currency, following
// the original deployment's convention: a decimal amount ("12.50", "12,5")
// is USD cents, a plain integer ("3500") is CLP pesos.
func parseAmount(text string) (int64, string, error) {
	token := strings.TrimSpace(text)
	if fields := strings.Fields(token); len(fields) > 0 {
		token = fields[0]
	}
	if token == "" {
		return 0, "", errMalformedAmount
	}

	token = strings.ReplaceAll(token, ",", ".")

	if !strings.Contains(token, ".") {
		units, err := strconv.ParseInt(token, 10, 64)
		if err != nil || units <= 0 {
			return 0, "", errMalformedAmount
		}
		return units, "CLP", nil
	}

	parts := strings.SplitN(token, ".", 2)
	if parts[0] == "" || parts[1] == "" || len(parts[1]) > 2 || strings.Contains(parts[1], ".") {
		return 0, "", errMalformedAmount
	}

	units, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || units < 0 || units > maxUnits {
		return 0, "", errMalformedAmount
	}
	frac, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", errMalformedAmount
	}
	if len(parts[1]) == 1 {
		frac *= 10
	}

	minor := units*100 + frac
	if minor <= 0 {
		return 0, "", errMalformedAmount
	}
	return minor, "USD", nil
}
