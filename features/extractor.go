package features

import (
	"fmt"

	"github.com/RyanBlaney/sonido-corpus/algorithms/filters"
	"github.com/RyanBlaney/sonido-corpus/algorithms/spectral"
	"github.com/RyanBlaney/sonido-corpus/algorithms/windowing"
	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/logging"
)

// Features is a (frames x filters) log-mel spectrogram stored flat.
type Features struct {
	Frames  int
	Filters int
	Data    []float32
}

// At returns the log energy of mel band m in frame f
func (ft *Features) At(f, m int) float32 {
	return ft.Data[f*ft.Filters+m]
}

// Extractor turns waveforms into log-mel features: pre-emphasis, zero
// padding, overlapping Hamming-windowed frames, power spectrum, mel
// projection and natural log. The filterbank is built once; an Extractor
// is safe for concurrent use.
type Extractor struct {
	frameLength int
	frameStep   int
	preEmphasis *filters.PreEmphasis
	stft        *spectral.STFT
	bank        *spectral.MelFilterBank
	logger      logging.Logger
}

// New creates an extractor for cfg's frame and mel geometry.
func New(cfg *config.Config, logger logging.Logger) (*Extractor, error) {
	pe, err := filters.NewPreEmphasis(cfg.Mel.PreEmphasis)
	if err != nil {
		return nil, err
	}

	frameLength := cfg.Frames.FrameLength
	stft, err := spectral.NewSTFT(frameLength, cfg.FrameStep(), windowing.NewHamming(frameLength, true))
	if err != nil {
		return nil, err
	}

	bank, err := spectral.NewMelFilterBank(cfg.Mel.NumFilters, frameLength, cfg.Audio.SampleRate, cfg.Mel.LowFreq, cfg.Mel.HighFreq)
	if err != nil {
		return nil, fmt.Errorf("failed to build mel filterbank: %w", err)
	}

	logger = logging.Or(logger).WithFields(logging.Fields{
		"component": "feature_extractor",
	})
	logger.Debug("Mel filterbank built", logging.Fields{
		"filters":      bank.NumFilters(),
		"bins":         bank.NumBins(),
		"frame_length": frameLength,
		"frame_step":   cfg.FrameStep(),
	})

	return &Extractor{
		frameLength: frameLength,
		frameStep:   cfg.FrameStep(),
		preEmphasis: pe,
		stft:        stft,
		bank:        bank,
		logger:      logger,
	}, nil
}

// NumFilters returns the number of mel bands per frame
func (e *Extractor) NumFilters() int {
	return e.bank.NumFilters()
}

// NumFrames returns the frame count for a signal of n samples
func (e *Extractor) NumFrames(n int) int {
	return config.FrameCount(n, e.frameLength, e.frameStep)
}

// FilterBank returns the shared mel filterbank
func (e *Extractor) FilterBank() *spectral.MelFilterBank {
	return e.bank
}

// Extract computes the log-mel spectrogram of signal.
func (e *Extractor) Extract(signal []float64) (*Features, error) {
	numFrames := e.NumFrames(len(signal))
	ft := &Features{
		Frames:  numFrames,
		Filters: e.NumFilters(),
		Data:    make([]float32, numFrames*e.NumFilters()),
	}
	if err := e.ExtractInto(ft.Data, signal); err != nil {
		return nil, err
	}
	return ft, nil
}

// ExtractInto writes the log-mel spectrogram of signal into dst, which
// must hold exactly NumFrames(len(signal)) * NumFilters() values.
func (e *Extractor) ExtractInto(dst []float32, signal []float64) error {
	numFrames := e.NumFrames(len(signal))
	if numFrames == 0 {
		return fmt.Errorf("signal of %d samples yields no frames", len(signal))
	}
	if want := numFrames * e.NumFilters(); len(dst) != want {
		return fmt.Errorf("destination holds %d values, want %d", len(dst), want)
	}

	emphasized := e.preEmphasis.ProcessBuffer(signal)

	power, err := e.stft.PowerFrames(emphasized, numFrames)
	if err != nil {
		return fmt.Errorf("failed to frame signal: %w", err)
	}

	mel, err := e.bank.ApplyFrames(power)
	if err != nil {
		return err
	}

	bands := e.NumFilters()
	row := make([]float64, bands)
	for f := range numFrames {
		copy(row, mel.RawRowView(f))
		spectral.LogFloor(row)
		for m, v := range row {
			dst[f*bands+m] = float32(v)
		}
	}
	return nil
}
