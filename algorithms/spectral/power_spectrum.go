package spectral

import (
	"math"
)

// PowerSpectrum computes periodogram power |X|^2 / N over the
// positive-frequency half of a spectrum.
type PowerSpectrum struct {
	fftSize int
}

// NewPowerSpectrum creates a power spectrum calculator for an N-point FFT
func NewPowerSpectrum(fftSize int) *PowerSpectrum {
	return &PowerSpectrum{fftSize: fftSize}
}

// Bins returns the number of positive-frequency bins, N/2 + 1
func (ps *PowerSpectrum) Bins() int {
	return ps.fftSize/2 + 1
}

// ComputeInto writes the power of the first N/2+1 bins of spectrum into dst.
func (ps *PowerSpectrum) ComputeInto(dst []float64, spectrum []complex128) {
	n := float64(ps.fftSize)
	bins := min(ps.Bins(), len(spectrum), len(dst))
	for i := range bins {
		re, im := real(spectrum[i]), imag(spectrum[i])
		dst[i] = (re*re + im*im) / n
	}
}

// Compute returns the power of the positive-frequency bins of spectrum
func (ps *PowerSpectrum) Compute(spectrum []complex128) []float64 {
	if len(spectrum) == 0 {
		return []float64{}
	}

	power := make([]float64, ps.Bins())
	ps.ComputeInto(power, spectrum)
	return power
}

// LogFloor replaces exact zeros with the float64 machine epsilon and takes
// the natural log in place.
func LogFloor(values []float64) {
	for i, v := range values {
		if v == 0 {
			v = Epsilon
		}
		values[i] = math.Log(v)
	}
}

// Epsilon is the float64 machine epsilon (2^-52).
const Epsilon = 2.220446049250313e-16
