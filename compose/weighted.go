package compose

import (
	"math/rand/v2"
)

// Weighted pairs a value with its selection weight.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// WeightedChoice draws u ~ Uniform(0, Σw) and returns the first choice, in
// slice order, whose cumulative weight reaches u. Zero-weight choices are
// never returned. With no positive weight the zero value is returned.
func WeightedChoice[T any](rng *rand.Rand, choices []Weighted[T]) T {
	total := 0.0
	for _, c := range choices {
		if c.Weight > 0 {
			total += c.Weight
		}
	}

	var last T
	if total <= 0 {
		return last
	}

	u := rng.Float64() * total
	counter := 0.0
	for _, c := range choices {
		if c.Weight <= 0 {
			continue
		}
		if counter+c.Weight >= u {
			return c.Value
		}
		counter += c.Weight
		last = c.Value
	}
	// Rounding left u just above the final cumulative sum
	return last
}

// uniform returns a value in [lo, hi)
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// gauss returns a normal variate with the given mean and standard deviation
func gauss(rng *rand.Rand, mean, sd float64) float64 {
	return mean + sd*rng.NormFloat64()
}

// randRange returns an integer in [lo, hi), or lo when the range is empty
func randRange(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo)
}
