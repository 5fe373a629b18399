package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Peak returns the largest absolute value in signal
func Peak(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	return math.Max(floats.Max(signal), -floats.Min(signal))
}

// PeakNormalize returns signal divided by its peak, or by floor when floor
// is larger. The result stays within [-1, 1]; silence stays silent.
func PeakNormalize(signal []float64, floor float64) []float64 {
	normalized := make([]float64, len(signal))
	div := math.Max(Peak(signal), floor)
	if div < 1e-10 {
		return normalized
	}
	floats.ScaleTo(normalized, 1/div, signal)
	return normalized
}

// MeanStd returns the mean and sample standard deviation of data
func MeanStd(data []float64) (mean, std float64) {
	if len(data) < 2 {
		return Mean(data), 0
	}
	return stat.MeanStdDev(data, nil)
}

// MeanStd32 is MeanStd over float32 values
func MeanStd32(data []float32) (mean, std float64) {
	wide := make([]float64, len(data))
	for i, v := range data {
		wide[i] = float64(v)
	}
	return MeanStd(wide)
}
