package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic signal statistics used across the generator, backed by gonum

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 2) / math.Sqrt(float64(len(data)))
}

// Scale multiplies data by c in place
func Scale(c float64, data []float64) {
	floats.Scale(c, data)
}

// AddScaled adds c*src into dst element-wise over the shorter length
func AddScaled(dst []float64, c float64, src []float64) {
	n := min(len(dst), len(src))
	floats.AddScaled(dst[:n], c, src[:n])
}

// Roll returns data circularly shifted right by shift: out[i] = data[(i-shift) mod n].
func Roll(data []float64, shift int) []float64 {
	n := len(data)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	shift = Mod(shift, n)
	copy(out[shift:], data[:n-shift])
	copy(out[:shift], data[n-shift:])
	return out
}

// Mod returns the non-negative remainder of a divided by n
func Mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

// Clamp restricts value to [lo, hi]
func Clamp(value, lo, hi int) int {
	return max(lo, min(value, hi))
}
