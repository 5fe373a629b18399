package chords

import (
	"context"
	"fmt"
	"strconv"

	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/logging"
)

// Chord is a named set of absolute MIDI pitches with a selection weight.
type Chord struct {
	Name    string
	Pitches []int
	Weight  float64
}

func (c Chord) String() string {
	return fmt.Sprintf("%s %v w=%g", c.Name, c.Pitches, c.Weight)
}

type triadType struct {
	name      string
	intervals []int
	weight    float64
}

var triadTypes = []triadType{
	{"maj", []int{0, 4, 7}, 30},
	{"min", []int{0, 3, 7}, 30},
	{"dim", []int{0, 3, 6}, 5},
	{"aug", []int{0, 4, 8}, 5},
	{"+7", []int{0, 7}, 15}, // power chord
}

var rootLetters = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Triads generates every chord type on every root in octaves 2 to 4.
// Ordered by root, then octave, then type.
func Triads() []Chord {
	out := make([]Chord, 0, len(rootLetters)*3*len(triadTypes))
	for root, letter := range rootLetters {
		for octave := 2; octave <= 4; octave++ {
			for _, tt := range triadTypes {
				pitches := make([]int, len(tt.intervals))
				for i, iv := range tt.intervals {
					pitches[i] = iv + root + 12*octave
				}
				out = append(out, Chord{
					Name:    letter + tt.name + strconv.Itoa(octave),
					Pitches: pitches,
					Weight:  tt.weight,
				})
			}
		}
	}
	return out
}

// FromFretted converts a chord shape to absolute pitches under tuning,
// skipping muted strings. Its name gains an "@" prefix.
func FromFretted(fc FrettedChord, tuning []int, weight float64) (Chord, error) {
	if len(fc.Frets) > len(tuning) {
		return Chord{}, fmt.Errorf("chord %q has %d strings, tuning has %d", fc.Name, len(fc.Frets), len(tuning))
	}

	var pitches []int
	for i, f := range fc.Frets {
		if f == Muted {
			continue
		}
		pitches = append(pitches, tuning[i]+int(f))
	}
	return Chord{Name: "@" + fc.Name, Pitches: pitches, Weight: weight}, nil
}

// Catalog is the read-only list of chords the composer draws from.
type Catalog struct {
	chords  []Chord
	triads  int
	fretted int
}

// NewCatalog combines the generated triads with every fretted chord src
// provides. Shapes that do not fit the tuning are skipped and logged.
func NewCatalog(ctx context.Context, src ChordSource, cfg *config.Config, logger logging.Logger) (*Catalog, error) {
	logger = logging.Or(logger).WithFields(logging.Fields{
		"component": "chord_catalog",
	})

	chords := Triads()
	triads := len(chords)

	if src != nil {
		shapes, err := src.Chords(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load fretted chords: %w", err)
		}
		for _, shape := range shapes {
			c, err := FromFretted(shape, cfg.Chords.Tuning, cfg.Chords.FrettedWeight)
			if err != nil {
				logger.Warn("Skipping chord shape", logging.Fields{"error": err.Error()})
				continue
			}
			chords = append(chords, c)
		}
	}

	cat := &Catalog{
		chords:  chords,
		triads:  triads,
		fretted: len(chords) - triads,
	}
	logger.Info("Chord catalog built", logging.Fields{
		"triads":  cat.triads,
		"fretted": cat.fretted,
	})
	return cat, nil
}

// AllChords returns every chord. Callers must not modify the result.
func (c *Catalog) AllChords() []Chord {
	return c.chords
}

// Len returns the number of chords
func (c *Catalog) Len() int {
	return len(c.chords)
}

// Counts returns the number of generated triads and fretted chords
func (c *Catalog) Counts() (triads, fretted int) {
	return c.triads, c.fretted
}
