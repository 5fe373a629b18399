package compose

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/RyanBlaney/sonido-corpus/chords"
	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/library"
	"github.com/RyanBlaney/sonido-corpus/logging"
)

// Action is one step of the composer state machine.
type Action string

const (
	ActionNote       Action = "note"
	ActionChord      Action = "chord"
	ActionRepeat     Action = "repeat"
	ActionGuitarSwap Action = "guitar_swap"
	ActionPause      Action = "pause"
)

// CompositionError reports a chord with no pitch the current instrument can
// play. The chord action is skipped.
type CompositionError struct {
	Chord      string
	Instrument string
	Range      library.PitchRange
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("chord %s has no pitch in range %s of instrument %s", e.Chord, e.Range, e.Instrument)
}

// Stats counts what one composition did.
type Stats struct {
	Notes               int
	Chords              int
	Repeats             int
	GuitarSwaps         int
	Pauses              int
	SkippedChords       int
	Resonances          int
	DiscardedResonances int
}

// Add accumulates other into s
func (s *Stats) Add(other Stats) {
	s.Notes += other.Notes
	s.Chords += other.Chords
	s.Repeats += other.Repeats
	s.GuitarSwaps += other.GuitarSwaps
	s.Pauses += other.Pauses
	s.SkippedChords += other.SkippedChords
	s.Resonances += other.Resonances
	s.DiscardedResonances += other.DiscardedResonances
}

// Composer generates random performances from a sample set and chord
// catalog. It holds no per-example state and is safe for concurrent use as
// long as every caller brings its own RNG.
type Composer struct {
	cfg        *config.Config
	samples    *library.Set
	chords     []Weighted[chords.Chord]
	labelRange library.PitchRange
	logger     logging.Logger
}

// New creates a composer.
func New(cfg *config.Config, samples *library.Set, catalog *chords.Catalog, logger logging.Logger) (*Composer, error) {
	if samples == nil || samples.Melodic == nil || samples.Melodic.Len() == 0 {
		return nil, errors.New("composer needs at least one melodic instrument")
	}
	if samples.Noise == nil {
		return nil, errors.New("composer needs a noise library")
	}

	var weighted []Weighted[chords.Chord]
	if catalog != nil {
		for _, c := range catalog.AllChords() {
			weighted = append(weighted, Weighted[chords.Chord]{Value: c, Weight: c.Weight})
		}
	}
	if len(weighted) == 0 && cfg.Composer.ChordWeight > 0 {
		return nil, errors.New("chord action is weighted but the catalog is empty")
	}

	return &Composer{
		cfg:        cfg,
		samples:    samples,
		chords:     weighted,
		labelRange: library.FullRange(cfg),
		logger: logging.Or(logger).WithFields(logging.Fields{
			"component": "composer",
		}),
	}, nil
}

// maxStalledActions bounds consecutive actions that leave the clock where
// it was, e.g. a run of unplayable chords.
const maxStalledActions = 10000

// session is the mutable state of one Compose call.
type session struct {
	*Composer
	rng        *rand.Rand
	tl         *Timeline
	stats      Stats
	t          float64
	instrument *library.Sample
	last       []int // indices into tl.Notes of the sustained set
}

// Compose generates one timeline from rng.
func (c *Composer) Compose(rng *rand.Rand) (*Timeline, Stats) {
	cc := &c.cfg.Composer
	sr := float64(c.cfg.Audio.SampleRate)
	length := c.cfg.ExampleLength()

	s := &session{
		Composer: c,
		rng:      rng,
		tl: &Timeline{
			Length: length,
			Volume: math.Pow(10, uniform(rng, math.Log10(c.cfg.Audio.MinVolume), math.Log10(c.cfg.Audio.MaxVolume))),
		},
	}

	s.instrument = s.pickInstrument(nil)
	s.addNoise()

	s.t = sr * cc.InitialPause
	limit := float64(length - c.cfg.FrameStep())
	stalled := 0
	for s.t < limit {
		if stalled > maxStalledActions {
			s.logger.Warn("Composer made no progress, ending example early", logging.Fields{
				"time":    s.t,
				"actions": stalled,
			})
			break
		}
		before := s.t

		switch s.nextAction() {
		case ActionNote:
			s.note()
		case ActionChord:
			if err := s.chord(); err != nil {
				s.stats.SkippedChords++
				s.logger.Debug("Skipping chord", logging.Fields{"error": err.Error()})
			}
		case ActionRepeat:
			s.repeat()
		case ActionGuitarSwap:
			s.instrument = s.pickInstrument(s.instrument)
			s.stats.GuitarSwaps++
		case ActionPause:
			s.t += sr * cc.PauseDuration * uniform(rng, 1, 1.5)
			s.stats.Pauses++
		}

		if s.t > before {
			stalled = 0
		} else {
			stalled++
		}
	}

	return s.tl, s.stats
}

func (s *session) nextAction() Action {
	cc := &s.cfg.Composer
	actions := make([]Weighted[Action], 0, 5)
	actions = append(actions,
		Weighted[Action]{ActionNote, cc.NoteWeight},
		Weighted[Action]{ActionChord, cc.ChordWeight},
	)
	if len(s.last) > 0 {
		actions = append(actions, Weighted[Action]{ActionRepeat, cc.RepeatWeight})
	}
	actions = append(actions,
		Weighted[Action]{ActionGuitarSwap, cc.GuitarSwapWeight},
		Weighted[Action]{ActionPause, cc.PauseWeight},
	)
	return WeightedChoice(s.rng, actions)
}

// pickInstrument draws a melodic instrument different from current when
// more than one is available.
func (s *session) pickInstrument(current *library.Sample) *library.Sample {
	melodic := s.samples.Melodic.Samples()
	if len(melodic) == 1 || current == nil {
		return melodic[s.rng.IntN(len(melodic))]
	}
	for {
		if next := melodic[s.rng.IntN(len(melodic))]; next != current {
			return next
		}
	}
}

func (s *session) addNoise() {
	nc := &s.cfg.Noise
	layers := float64(max(1, nc.Layers))

	add := func(lib *library.Library, count int) {
		if lib == nil || count <= 0 {
			return
		}
		all := lib.Samples()
		for _, idx := range s.rng.Perm(len(all))[:min(count, len(all))] {
			src := all[idx]
			s.tl.Noise = append(s.tl.Noise, NoiseLayer{
				Offset: randRange(s.rng, 0, src.Len()),
				Source: src,
				Volume: nc.Volume * math.Pow(10, gauss(s.rng, 0, nc.VolumeSD)) / math.Sqrt(layers),
			})
		}
	}

	add(s.samples.Noise, nc.Layers)
	add(s.samples.Percussive, nc.PercussionLayers)
}

// truncateLast cuts every sustained note off at the current time, minus a
// little jitter.
func (s *session) truncateLast() {
	for _, i := range s.last {
		n := &s.tl.Notes[i]
		cut := s.t - float64(n.Start) - uniform(s.rng, 0, s.cfg.Composer.TruncateJitter)
		n.Duration = int(max(min(cut, float64(n.Duration)), 0))
	}
}

func (s *session) roll() int {
	r := s.cfg.Composer.Roll
	return randRange(s.rng, -r, r)
}

func (s *session) noteVolume() float64 {
	return math.Pow(10, gauss(s.rng, 0, s.cfg.Composer.NoteVolumeSD))
}

// durationSpan is (max - min) note duration in seconds
func (s *session) durationSpan() float64 {
	return s.cfg.Composer.NoteDurationMax - s.cfg.Composer.NoteDurationMin
}

func (s *session) newNote(start float64, duration float64, pitch, roll int, volume float64, origin string) Note {
	st := max(0, int(start))
	return Note{
		Start:       st,
		Duration:    max(0, int(min(duration, float64(s.tl.Length-st)))),
		Pitch:       pitch,
		Roll:        roll,
		Instrument:  s.instrument,
		Volume:      volume,
		OutputDelay: s.cfg.OutputDelay(),
		Origin:      origin,
		EmitsLabel:  true,
	}
}

// emit appends a note and returns its index
func (s *session) emit(n Note) int {
	s.tl.Notes = append(s.tl.Notes, n)
	return len(s.tl.Notes) - 1
}

func (s *session) note() {
	cc := &s.cfg.Composer
	sr := float64(s.cfg.Audio.SampleRate)

	s.truncateLast()
	s.last = s.last[:0]

	duration := sr * (0.5*s.rng.Float64()*s.durationSpan() + cc.NoteDurationMin)
	r := s.instrument.RangeOr(s.labelRange)
	pitch := randRange(s.rng, r.Start, r.End)
	volume := s.noteVolume()
	roll := s.roll()

	n := s.newNote(s.t, duration, pitch, roll, volume, string(ActionNote))
	s.emit(n)
	s.resonate(n)
	s.stats.Notes++

	s.t += duration * uniform(s.rng, 0.4, 0.6)
}

func (s *session) chord() error {
	cc := &s.cfg.Composer
	sr := float64(s.cfg.Audio.SampleRate)

	chord := WeightedChoice(s.rng, s.chords)
	r := s.instrument.RangeOr(s.labelRange)
	var pitches []int
	for _, p := range chord.Pitches {
		if r.Contains(p) {
			pitches = append(pitches, p)
		}
	}
	if len(pitches) == 0 {
		return &CompositionError{Chord: chord.Name, Instrument: s.instrument.Name, Range: r}
	}

	s.truncateLast()
	s.last = s.last[:0]

	volume := s.noteVolume()
	duration := sr * (0.25 + 0.25*s.rng.Float64()*s.durationSpan() + cc.NoteDurationMin)
	origin := "chord(" + chord.Name + ")"

	for i, p := range pitches {
		roll := s.roll()
		start := s.t + gauss(s.rng, float64(i)*cc.ChordDelay, cc.ChordDelaySD)*sr
		n := s.newNote(start, duration, p, roll, volume, origin)
		s.resonate(n)
		s.last = append(s.last, s.emit(n))
	}
	s.stats.Chords++

	s.t += duration * uniform(s.rng, 0.4, 0.9)
	return nil
}

func (s *session) repeat() {
	s.truncateLast()

	next := make([]int, 0, len(s.last))
	for _, i := range s.last {
		prev := s.tl.Notes[i]
		n := Note{
			Start:       int(s.t),
			Duration:    prev.Duration,
			Pitch:       prev.Pitch,
			Roll:        prev.Roll,
			Instrument:  prev.Instrument,
			Volume:      prev.Volume,
			OutputDelay: prev.OutputDelay,
			Origin:      "re" + prev.Origin,
			EmitsLabel:  prev.EmitsLabel,
		}
		n.Duration = max(0, min(n.Duration, s.tl.Length-n.Start))
		next = append(next, s.emit(n))
		s.resonate(n)
	}
	s.stats.Repeats++

	s.t += float64(s.tl.Notes[s.last[0]].Duration) * uniform(s.rng, 0.4, 0.9)
	s.last = next
}

// resonate computes the harmonic companions of n and, under the audible
// policy, adds them to the timeline. Companions outside the labelled pitch
// range are dropped.
func (s *session) resonate(n Note) {
	rc := &s.cfg.Resonance
	maxDur := s.cfg.MaxNoteSamples()

	for range rc.Amount {
		companion := Note{
			Start:       n.Start,
			Duration:    max(0, min(maxDur, s.tl.Length-n.Start)),
			Pitch:       n.Pitch + rc.Intervals[s.rng.IntN(len(rc.Intervals))],
			Roll:        n.Roll,
			Instrument:  n.Instrument,
			Volume:      n.Volume * max(0, gauss(s.rng, rc.VolumeMean, rc.VolumeSD)),
			OutputDelay: n.OutputDelay,
			Origin:      "res-" + n.Origin,
			EmitsLabel:  false,
		}
		if !s.labelRange.Contains(companion.Pitch) {
			continue
		}
		if rc.Policy == config.ResonanceDiscard {
			s.stats.DiscardedResonances++
			continue
		}
		s.emit(companion)
		s.stats.Resonances++
	}
}
