package synth

import (
	"fmt"

	"github.com/RyanBlaney/sonido-corpus/algorithms/common"
	"github.com/RyanBlaney/sonido-corpus/compose"
	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/logging"
)

// RenderError describes a note whose source window falls outside its
// instrument recording. The note is left silent and unlabelled; rendering
// carries on.
type RenderError struct {
	Note        compose.Note
	SourceStart int
	SourceLen   int
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("pitch %d of %s needs samples [%d, %d) but the recording has %d",
		e.Note.Pitch, e.Note.Instrument.Name, e.SourceStart, e.SourceStart+e.Note.Duration, e.SourceLen)
}

// maxKeptErrors caps the render errors kept in Stats; the rest are only
// counted.
const maxKeptErrors = 8

// Stats summarizes one render.
type Stats struct {
	RenderedNotes int
	SilentNotes   int
	LabelledNotes int
	DroppedLabels int // labelled notes ending on or after the last frame
	Errors        []*RenderError
}

// Add accumulates other into s
func (s *Stats) Add(other Stats) {
	s.RenderedNotes += other.RenderedNotes
	s.SilentNotes += other.SilentNotes
	s.LabelledNotes += other.LabelledNotes
	s.DroppedLabels += other.DroppedLabels
	for _, e := range other.Errors {
		if len(s.Errors) >= maxKeptErrors {
			break
		}
		s.Errors = append(s.Errors, e)
	}
}

// Rendered is the waveform and frame labels of one timeline.
type Rendered struct {
	Waveform []float64
	Labels   *Labels
}

// Synthesizer mixes timelines into waveforms and label tensors.
type Synthesizer struct {
	cfg       *config.Config
	numFrames int
	stride    int
	logger    logging.Logger
}

// New creates a synthesizer
func New(cfg *config.Config, logger logging.Logger) *Synthesizer {
	return &Synthesizer{
		cfg:       cfg,
		numFrames: cfg.NumFrames(),
		stride:    cfg.MaxNoteSamples(),
		logger: logging.Or(logger).WithFields(logging.Fields{
			"component": "synthesizer",
		}),
	}
}

// Render mixes every noise layer and note of tl, scales by the overall
// volume and labels the notes that emit labels.
func (s *Synthesizer) Render(tl *compose.Timeline) (*Rendered, Stats) {
	var stats Stats
	out := make([]float64, tl.Length)

	for _, layer := range tl.Noise {
		s.addNoise(out, layer)
	}

	labels := NewLabels(s.numFrames, s.cfg.PitchClasses())
	for _, note := range tl.Notes {
		if err := s.addNote(out, note); err != nil {
			stats.SilentNotes++
			if len(stats.Errors) < maxKeptErrors {
				stats.Errors = append(stats.Errors, err)
			}
			s.logger.Debug("Note left silent", logging.Fields{"error": err.Error()})
			continue
		}
		stats.RenderedNotes++

		if !note.EmitsLabel {
			continue
		}
		if s.label(labels, note) {
			stats.LabelledNotes++
		} else {
			stats.DroppedLabels++
		}
	}

	common.Scale(tl.Volume, out)

	return &Rendered{Waveform: out, Labels: labels}, stats
}

// addNoise adds the source tiled and circularly shifted right by the layer
// offset: out[i] += v * src[(i - offset) mod len(src)].
func (s *Synthesizer) addNoise(out []float64, layer compose.NoiseLayer) {
	src := layer.Source.PCM
	n := len(src)
	if n == 0 {
		return
	}
	for i := range out {
		out[i] += layer.Volume * src[common.Mod(i-layer.Offset, n)]
	}
}

// addNote adds the note's window of its instrument recording, rolled by
// note.Roll, into [Start, Start+Duration).
func (s *Synthesizer) addNote(out []float64, note compose.Note) *RenderError {
	if note.Duration <= 0 {
		return nil
	}

	data := note.Instrument.PCM
	srcStart := (note.Pitch - s.cfg.Labels.StartPitch) * s.stride
	if srcStart < 0 || srcStart+note.Duration > len(data) {
		return &RenderError{Note: note, SourceStart: srcStart, SourceLen: len(data)}
	}

	start := common.Clamp(note.Start, 0, len(out))
	end := common.Clamp(note.Start+note.Duration, 0, len(out))
	if start >= end {
		return nil
	}

	rolled := common.Roll(data[srcStart:srcStart+note.Duration], note.Roll)
	common.AddScaled(out[start:end], note.Volume, rolled[start-note.Start:])
	return nil
}

// label marks the note's frames. It reports false when the note runs to or
// past the last frame and was left out.
func (s *Synthesizer) label(labels *Labels, note compose.Note) bool {
	sr := s.cfg.Audio.SampleRate
	rate := s.cfg.Frames.FrameRate

	startFrame := (note.Start + note.OutputDelay) * rate / sr
	endFrame := min((note.End()+note.OutputDelay)*rate/sr, s.numFrames)
	if endFrame >= s.numFrames || startFrame < 0 {
		return false
	}

	class := note.Pitch - s.cfg.Labels.StartPitch
	if class < 0 || class >= labels.Classes() {
		return false
	}
	labels.Mark(class, startFrame, endFrame)
	return true
}
