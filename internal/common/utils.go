package common

import "math"

// Round2 rounds v to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Ptr returns a pointer to v.
func Ptr(v float64) *float64 {
	return &v
}
