package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// HzToMel converts frequency in Hz to mel scale
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// MelFilterBank is a triangular filterbank laid out as a
// (filters x bins) matrix so whole spectrograms project in one multiply.
type MelFilterBank struct {
	weights *mat.Dense
	centers []float64
	bins    []int
}

// NewMelFilterBank builds numFilters triangular filters equally spaced in mel
// between lowFreq and highFreq for an fftSize-point transform.
//
// Edge bins are floor((N+1)*hz/sr). Filters whose edges collapse onto the
// same bin keep only their center weight of 1.
func NewMelFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) (*MelFilterBank, error) {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid filterbank geometry: filters=%d fft=%d rate=%d", numFilters, fftSize, sampleRate)
	}
	if highFreq <= lowFreq {
		return nil, fmt.Errorf("invalid frequency range [%g, %g]", lowFreq, highFreq)
	}

	numBins := fftSize/2 + 1

	lowMel := HzToMel(lowFreq)
	highMel := HzToMel(highFreq)
	melStep := (highMel - lowMel) / float64(numFilters+1)

	hzPoints := make([]float64, numFilters+2)
	binPoints := make([]int, numFilters+2)
	for i := range hzPoints {
		hzPoints[i] = MelToHz(lowMel + float64(i)*melStep)
		binPoints[i] = int(math.Floor(float64(fftSize+1) * hzPoints[i] / float64(sampleRate)))
		if binPoints[i] >= numBins {
			return nil, fmt.Errorf("filter edge %.1f Hz falls outside %d bins", hzPoints[i], numBins)
		}
	}

	weights := mat.NewDense(numFilters, numBins, nil)
	for m := 1; m <= numFilters; m++ {
		left, center, right := binPoints[m-1], binPoints[m], binPoints[m+1]

		// Rising edge
		for k := left; k < center; k++ {
			weights.Set(m-1, k, float64(k-left)/float64(center-left))
		}
		// Falling edge
		for k := center; k < right; k++ {
			weights.Set(m-1, k, float64(right-k)/float64(right-center))
		}
		weights.Set(m-1, center, 1)
	}

	return &MelFilterBank{
		weights: weights,
		centers: hzPoints[1 : numFilters+1],
		bins:    binPoints,
	}, nil
}

// NumFilters returns the number of mel bands
func (fb *MelFilterBank) NumFilters() int {
	r, _ := fb.weights.Dims()
	return r
}

// NumBins returns the number of spectrum bins each filter spans
func (fb *MelFilterBank) NumBins() int {
	_, c := fb.weights.Dims()
	return c
}

// Centers returns the center frequency in Hz of every filter
func (fb *MelFilterBank) Centers() []float64 {
	out := make([]float64, len(fb.centers))
	copy(out, fb.centers)
	return out
}

// Weight returns the weight of filter m at bin k
func (fb *MelFilterBank) Weight(m, k int) float64 {
	return fb.weights.At(m, k)
}

// Apply projects one power spectrum onto the filterbank
func (fb *MelFilterBank) Apply(power []float64) ([]float64, error) {
	if len(power) != fb.NumBins() {
		return nil, fmt.Errorf("power spectrum has %d bins, filterbank expects %d", len(power), fb.NumBins())
	}

	out := mat.NewVecDense(fb.NumFilters(), nil)
	out.MulVec(fb.weights, mat.NewVecDense(len(power), power))
	return out.RawVector().Data, nil
}

// ApplyFrames projects a (frames x bins) power spectrogram into a
// (frames x filters) mel spectrogram.
func (fb *MelFilterBank) ApplyFrames(power *mat.Dense) (*mat.Dense, error) {
	frames, bins := power.Dims()
	if bins != fb.NumBins() {
		return nil, fmt.Errorf("power spectrogram has %d bins, filterbank expects %d", bins, fb.NumBins())
	}

	out := mat.NewDense(frames, fb.NumFilters(), nil)
	out.Mul(power, fb.weights.T())
	return out, nil
}
