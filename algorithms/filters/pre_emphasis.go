package filters

import (
	"fmt"
)

// PreEmphasis implements the first-order high-pass filter
//
//	y[n] = x[n] - α*x[n-1]
//
// with x[-1] = 0, so the first output sample equals the first input sample.
type PreEmphasis struct {
	coefficient float64 // Pre-emphasis coefficient α
	lastSample  float64 // Previous input sample x[n-1]
}

// NewPreEmphasis creates a pre-emphasis filter with the given coefficient.
func NewPreEmphasis(coefficient float64) (*PreEmphasis, error) {
	if coefficient < 0.0 || coefficient >= 1.0 {
		return nil, fmt.Errorf("coefficient must be in [0, 1), got %f", coefficient)
	}
	return &PreEmphasis{coefficient: coefficient}, nil
}

// Coefficient returns α
func (pe *PreEmphasis) Coefficient() float64 {
	return pe.coefficient
}

// Process filters one sample, carrying state across calls.
func (pe *PreEmphasis) Process(input float64) float64 {
	output := input - pe.coefficient*pe.lastSample
	pe.lastSample = input
	return output
}

// ProcessBuffer filters a whole signal as one independent block. The
// filter state is reset first and left untouched afterwards, so a single
// PreEmphasis can be shared between goroutines.
func (pe *PreEmphasis) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	if len(input) == 0 {
		return output
	}

	output[0] = input[0]
	for i := 1; i < len(input); i++ {
		output[i] = input[i] - pe.coefficient*input[i-1]
	}
	return output
}

// Reset clears the filter's internal state.
// Call this when processing discontinuous audio segments.
func (pe *PreEmphasis) Reset() {
	pe.lastSample = 0.0
}
