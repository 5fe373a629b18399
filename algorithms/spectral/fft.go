package spectral

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"
)

// FFT is an N-point real-input transform backed by mjibson/go-dsp.
// go-dsp caches twiddle factors per size, so one FFT may be shared by
// concurrent frame workers.
type FFT struct {
	size int
}

// NewFFT creates an N-point transform
func NewFFT(size int) *FFT {
	return &FFT{size: size}
}

// Size returns N
func (f *FFT) Size() int {
	return f.size
}

// Compute returns the full N-point spectrum of frame.
func (f *FFT) Compute(frame []float64) ([]complex128, error) {
	if len(frame) != f.size {
		return nil, fmt.Errorf("frame has %d samples, want %d", len(frame), f.size)
	}
	return fft.FFTReal(frame), nil
}
