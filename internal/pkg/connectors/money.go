package connectors

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DecimalToCents converts a decimal major-unit amount to integer cents using
// round-half-to-even, so repeated normalization of the same payload agrees
// bit-for-bit.
func DecimalToCents(amount float64) int64 {
	return int64(math.RoundToEven(amount * 100))
}

// ParseDecimalAmount parses provider amount fields that arrive as either a
// JSON number or a decimal string ("150.00", "1.234,56" is NOT supported) and
// converts to cents.
func ParseDecimalAmount(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return DecimalToCents(v), nil
	case int64:
		return v * 100, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid decimal amount %q: %w", v, err)
		}
		return DecimalToCents(f), nil
	default:
		return 0, fmt.Errorf("unsupported amount type %T", raw)
	}
}
