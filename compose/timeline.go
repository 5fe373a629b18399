package compose

import (
	"fmt"

	"github.com/RyanBlaney/sonido-corpus/library"
)

// Note is one rendered instrument event. Times are in samples.
type Note struct {
	Start       int
	Duration    int
	Pitch       int
	Roll        int
	Instrument  *library.Sample
	Volume      float64
	OutputDelay int
	Origin      string
	EmitsLabel  bool
}

// End returns the sample just past the note
func (n Note) End() int {
	return n.Start + n.Duration
}

func (n Note) String() string {
	return fmt.Sprintf("Note{start=%d duration=%d pitch=%d roll=%d instrument=%s volume=%.4f origin=%s labelled=%t}",
		n.Start, n.Duration, n.Pitch, n.Roll, n.Instrument.Name, n.Volume, n.Origin, n.EmitsLabel)
}

// NoiseLayer is a background recording tiled across the whole example.
type NoiseLayer struct {
	Offset int
	Source *library.Sample
	Volume float64
}

func (l NoiseLayer) String() string {
	return fmt.Sprintf("Noise{source=%s offset=%d volume=%.4f}", l.Source.Name, l.Offset, l.Volume)
}

// Timeline is everything needed to render one example.
type Timeline struct {
	Length int // samples
	Volume float64
	Notes  []Note
	Noise  []NoiseLayer
}

// LabelledNotes returns the number of notes that emit labels
func (tl *Timeline) LabelledNotes() int {
	n := 0
	for _, note := range tl.Notes {
		if note.EmitsLabel {
			n++
		}
	}
	return n
}
