package library

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/RyanBlaney/sonido-corpus/algorithms/common"
	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/logging"
	"github.com/RyanBlaney/sonido-corpus/transcode"
)

// Library is one category of recordings (melodic, noise or percussive)
// with RMS-equalized waveforms.
type Library struct {
	name    string
	samples []*Sample
	avgRMS  float64
}

// New builds a library from samples, rescaling every waveform in place by
// avgRMS/rms so all samples share the same RMS.
func New(name string, samples []*Sample) (*Library, error) {
	if len(samples) == 0 {
		return nil, &Error{Path: name, Err: ErrEmpty}
	}

	rms := make([]float64, len(samples))
	for i, s := range samples {
		if !(s.RMS > 0) || math.IsInf(s.RMS, 0) {
			return nil, &Error{Path: s.Name, Err: ErrSilent}
		}
		rms[i] = s.RMS
	}
	avg := common.Mean(rms)

	for _, s := range samples {
		common.Scale(avg/s.RMS, s.PCM)
		s.RMS = avg
	}

	return &Library{
		name:    name,
		samples: samples,
		avgRMS:  avg,
	}, nil
}

// Load decodes every .wav and .flac file in dir, in lexical order.
// Waveforms are lifted to cfg.Library.AmplitudeScale full scale before RMS
// equalization.
func Load(dir string, cfg *config.Config, logger logging.Logger) (*Library, error) {
	logger = logging.Or(logger).WithFields(logging.Fields{
		"component": "sample_library",
		"dir":       dir,
	})

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &Error{Path: dir, Err: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || transcode.FormatOf(e.Name()) == "" {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	if len(names) == 0 {
		return nil, &Error{Path: dir, Err: ErrEmpty}
	}

	decoder := transcode.NewDecoder(logger)
	samples := make([]*Sample, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)

		audio, err := decoder.DecodeFile(path)
		if err != nil {
			return nil, &Error{Path: path, Err: err}
		}
		if audio.SampleRate != cfg.Audio.SampleRate {
			return nil, &Error{
				Path: path,
				Err:  fmt.Errorf("%w: got %d Hz, want %d Hz", ErrSampleRate, audio.SampleRate, cfg.Audio.SampleRate),
			}
		}

		common.Scale(cfg.Library.AmplitudeScale, audio.PCM)

		sample, err := NewSample(path, audio.PCM, audio.SampleRate, cfg.Labels)
		if err != nil {
			var libErr *Error
			if errors.As(err, &libErr) {
				return nil, err
			}
			return nil, &Error{Path: path, Err: err}
		}
		samples = append(samples, sample)
	}

	lib, err := New(filepath.Base(dir), samples)
	if err != nil {
		return nil, err
	}

	logger.Info("Sample library loaded", logging.Fields{
		"samples": len(samples),
		"avg_rms": lib.avgRMS,
	})
	return lib, nil
}

// Name returns the library name
func (l *Library) Name() string {
	return l.name
}

// Samples returns the loaded samples. Callers must not modify them.
func (l *Library) Samples() []*Sample {
	return l.samples
}

// Len returns the number of samples
func (l *Library) Len() int {
	return len(l.samples)
}

// AverageRMS returns the common RMS every sample was scaled to
func (l *Library) AverageRMS() float64 {
	return l.avgRMS
}

// Set groups the three sample categories the composer draws from.
// Percussive may be nil.
type Set struct {
	Melodic    *Library
	Noise      *Library
	Percussive *Library
}

// LoadSet loads the configured sample directories. The percussive directory
// is skipped when unset or when no percussion layers are configured.
func LoadSet(cfg *config.Config, logger logging.Logger) (*Set, error) {
	melodic, err := Load(cfg.Library.MelodicDir, cfg, logger)
	if err != nil {
		return nil, err
	}
	noise, err := Load(cfg.Library.NoiseDir, cfg, logger)
	if err != nil {
		return nil, err
	}

	set := &Set{Melodic: melodic, Noise: noise}
	if cfg.Library.PercussiveDir != "" && cfg.Noise.PercussionLayers > 0 {
		if set.Percussive, err = Load(cfg.Library.PercussiveDir, cfg, logger); err != nil {
			return nil, err
		}
	}

	if err := set.Validate(cfg); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate checks that every melodic instrument can play at least one
// labelled pitch.
func (s *Set) Validate(cfg *config.Config) error {
	if s.Melodic == nil || s.Noise == nil {
		return &Error{Path: "set", Err: ErrEmpty}
	}
	full := FullRange(cfg)
	for _, sample := range s.Melodic.Samples() {
		if sample.RangeOr(full).Len() == 0 {
			return &Error{Path: sample.Name, Err: ErrNoRange}
		}
	}
	return nil
}

// FullRange is the labelled pitch range, used by instruments without a
// range token in their file name.
func FullRange(cfg *config.Config) PitchRange {
	return PitchRange{Start: cfg.Labels.StartPitch, End: cfg.Labels.EndPitch}
}
