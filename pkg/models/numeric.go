package models

import "math"

// Optional numbers are *float64 throughout: nil means "no value" and is
// excluded from every max/average, never coerced to zero.

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Div divides num by den. A zero denominator yields nil instead of Inf/NaN.
func Div(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	return Float(num / den)
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// RoundPtr rounds an optional value, keeping nil as nil.
func RoundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	return Float(Round(*v, places))
}

// MaxOf returns the largest non-nil value, or nil when there is none.
func MaxOf(vals ...*float64) *float64 {
	var out *float64
	for _, v := range vals {
		if v == nil {
			continue
		}
		if out == nil || *v > *out {
			out = Float(*v)
		}
	}
	return out
}

// MeanOf averages the non-nil values, or returns nil when there is none.
func MeanOf(vals ...*float64) *float64 {
	var sum float64
	var n int
	for _, v := range vals {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	return Div(sum, float64(n))
}

// MinOf returns the smaller of a and b when both are set, otherwise whichever is set.
func MinOf(a, b *float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return Float(*b)
	case b == nil:
		return Float(*a)
	case *b < *a:
		return Float(*b)
	default:
		return Float(*a)
	}
}
