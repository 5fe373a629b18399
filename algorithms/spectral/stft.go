package spectral

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// STFT slices a signal into overlapping windowed frames and computes the
// power spectrum of each one.
type STFT struct {
	fft        *FFT
	windowSize int
	hopSize    int
	window     Window
	power      *PowerSpectrum
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a new STFT calculator. window may be nil for a
// rectangular window.
func NewSTFT(windowSize, hopSize int, window Window) (*STFT, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	return &STFT{
		fft:        NewFFT(windowSize),
		windowSize: windowSize,
		hopSize:    hopSize,
		window:     window,
		power:      NewPowerSpectrum(windowSize),
	}, nil
}

// FreqBins returns the number of positive-frequency bins per frame
func (s *STFT) FreqBins() int {
	return s.power.Bins()
}

// PadLength returns the zero-padded signal length needed for numFrames frames
func (s *STFT) PadLength(numFrames int) int {
	return numFrames*s.hopSize + s.windowSize
}

// PowerFrames computes a (numFrames x bins) power spectrogram. Frame i covers
// samples [i*hop, i*hop+window) of the signal zero-padded to PadLength.
func (s *STFT) PowerFrames(signal []float64, numFrames int) (*mat.Dense, error) {
	if len(signal) == 0 {
		return nil, errors.New("empty signal")
	}
	if numFrames <= 0 {
		return nil, fmt.Errorf("frame count must be positive, got %d", numFrames)
	}

	padded := make([]float64, max(s.PadLength(numFrames), len(signal)))
	copy(padded, signal)

	freqBins := s.FreqBins()
	power := mat.NewDense(numFrames, freqBins, nil)

	numWorkers := s.getOptimalWorkerCount(numFrames)
	jobs := make(chan int, numFrames)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		frameErr error
	)

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffers for this worker
			frameBuffer := make([]float64, s.windowSize)
			row := make([]float64, freqBins)

			for frameIdx := range jobs {
				start := frameIdx * s.hopSize
				copy(frameBuffer, padded[start:start+s.windowSize])

				if s.window != nil {
					if err := s.window.ApplyInPlace(frameBuffer); err != nil {
						errOnce.Do(func() { frameErr = fmt.Errorf("frame %d: %w", frameIdx, err) })
						continue
					}
				}

				spectrum, err := s.fft.Compute(frameBuffer)
				if err != nil {
					errOnce.Do(func() { frameErr = fmt.Errorf("frame %d: %w", frameIdx, err) })
					continue
				}
				s.power.ComputeInto(row, spectrum)
				// Each worker owns distinct rows
				power.SetRow(frameIdx, row)
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()

	if frameErr != nil {
		return nil, frameErr
	}
	return power, nil
}

// getOptimalWorkerCount determines the optimal number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	// For medium workloads, use most CPUs
	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
