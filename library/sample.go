package library

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-corpus/algorithms/common"
	"github.com/RyanBlaney/sonido-corpus/config"
)

// PitchRange is the half-open MIDI pitch interval [Start, End).
type PitchRange struct {
	Start int
	End   int
}

// Contains reports whether pitch lies in the range
func (r PitchRange) Contains(pitch int) bool {
	return pitch >= r.Start && pitch < r.End
}

// Len returns the number of pitches in the range
func (r PitchRange) Len() int {
	return max(0, r.End-r.Start)
}

func (r PitchRange) String() string {
	return fmt.Sprintf("[%d-%d)", r.Start, r.End)
}

// Sample is a decoded mono recording. Melodic recordings hold one note per
// pitch, laid out back to back at a fixed stride. Samples are read-only once
// their library is built.
type Sample struct {
	Name       string
	PCM        []float64
	SampleRate int
	RMS        float64

	pitchRange PitchRange
	hasRange   bool
}

var rangePattern = regexp.MustCompile(`\[(\d*)-(\d*)\]`)

// ParseRange extracts a "[start-end]" pitch token from a file name. The
// token is honored only when it occurs exactly once. The start is raised to
// labels.StartPitch; an end of 0 means labels.EndPitch, otherwise it is
// lowered to labels.EndPitch. Empty digits read as 0.
func ParseRange(name string, labels config.LabelConfig) (PitchRange, bool) {
	matches := rangePattern.FindAllStringSubmatch(name, -1)
	if len(matches) != 1 {
		return PitchRange{}, false
	}

	start, _ := strconv.Atoi(matches[0][1])
	end, _ := strconv.Atoi(matches[0][2])

	r := PitchRange{Start: max(labels.StartPitch, start)}
	if end == 0 {
		r.End = labels.EndPitch
	} else {
		r.End = min(labels.EndPitch, end)
	}
	return r, true
}

// NewSample wraps decoded PCM, measuring its RMS and parsing a pitch range
// from name.
func NewSample(name string, pcm []float64, sampleRate int, labels config.LabelConfig) (*Sample, error) {
	rms := common.RMS(pcm)
	if rms == 0 || math.IsNaN(rms) || math.IsInf(rms, 0) {
		return nil, &Error{Path: name, Err: ErrSilent}
	}

	r, ok := ParseRange(filepath.Base(name), labels)
	return &Sample{
		Name:       strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)),
		PCM:        pcm,
		SampleRate: sampleRate,
		RMS:        rms,
		pitchRange: r,
		hasRange:   ok,
	}, nil
}

// Range returns the pitch range parsed from the file name, if any
func (s *Sample) Range() (PitchRange, bool) {
	return s.pitchRange, s.hasRange
}

// RangeOr returns the parsed pitch range, or def when the name carried none
func (s *Sample) RangeOr(def PitchRange) PitchRange {
	if s.hasRange {
		return s.pitchRange
	}
	return def
}

// Len returns the number of samples in the recording
func (s *Sample) Len() int {
	return len(s.PCM)
}

func (s *Sample) String() string {
	if s.hasRange {
		return fmt.Sprintf("%s %s (%d samples)", s.Name, s.pitchRange, len(s.PCM))
	}
	return fmt.Sprintf("%s (%d samples)", s.Name, len(s.PCM))
}
