package utils

import (
	"encoding/json" // json.Number input
	"errors"        // Error construction
	"fmt"           // Error wrapping
	"math"          // int64 bounds

	"github.com/shopspring/decimal" // Exact decimal parsing
)

// ErrNotWholeAmount is returned for amounts that are not positive whole numbers
var ErrNotWholeAmount = errors.New("amount must be a positive whole number of minor units")

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a JSON number to minor units. "50", "50.0" and "5e1"
// are accepted; fractions, zero, negatives and values beyond int64 are not.
func ParseAmount(n json.Number) (int64, error) {
	if n == "" {
		return 0, fmt.Errorf("%w: missing", ErrNotWholeAmount)
	}
	d, err := decimal.NewFromString(n.String()) // Parse without float rounding
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotWholeAmount, n.String())
	}
	if !d.IsInteger() || !d.IsPositive() || d.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %s", ErrNotWholeAmount, d.String())
	}
	return d.IntPart(), nil
}
