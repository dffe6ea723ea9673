package event

import (
	"math"
	"strconv"
)

// ParseCents converts a decimal major-unit amount ("49.99") to minor units
// (4999). Monetary values stay integral everywhere past this boundary.
func ParseCents(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

// MajorToMinor converts a float major-unit amount to minor units, rounding
// half away from zero. Only used at ingress where upstream payloads carry
// floats; internal code never does float money arithmetic.
func MajorToMinor(v float64) int64 {
	return int64(math.Round(v * 100))
}
