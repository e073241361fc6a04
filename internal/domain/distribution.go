package domain

import "math"

// DistributionTolerance is the allowed deviation of a distribution's sum from 1.
const DistributionTolerance = 1e-6

// Distribution is a categorical probability distribution over vocabulary indices.
type Distribution []float64

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	var s float64
	for _, p := range d {
		s += p
	}
	return s
}

// Valid reports whether all entries are finite, non-negative and sum to 1 within tolerance.
func (d Distribution) Valid(tolerance float64) bool {
	if len(d) == 0 {
		return false
	}
	for _, p := range d {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	return math.Abs(d.Sum()-1) <= tolerance
}
