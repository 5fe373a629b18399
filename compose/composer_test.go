package compose

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/RyanBlaney/sonido-corpus/chords"
	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/library"
	"github.com/RyanBlaney/sonido-corpus/logging"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.ExampleSeconds = 5
	return &cfg
}

func newSample(t *testing.T, cfg *config.Config, name string, n int) *library.Sample {
	t.Helper()
	pcm := make([]float64, n)
	for i := range pcm {
		pcm[i] = math.Sin(float64(i) / 7)
	}
	s, err := library.NewSample(name, pcm, cfg.Audio.SampleRate, cfg.Labels)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newLibrary(t *testing.T, name string, samples ...*library.Sample) *library.Library {
	t.Helper()
	lib, err := library.New(name, samples)
	if err != nil {
		t.Fatal(err)
	}
	return lib
}

func testSet(t *testing.T, cfg *config.Config) *library.Set {
	t.Helper()
	return &library.Set{
		Melodic: newLibrary(t, "melodic",
			newSample(t, cfg, "low [24-40].wav", 1000),
			newSample(t, cfg, "high [36-60].wav", 1000),
		),
		Noise: newLibrary(t, "noise",
			newSample(t, cfg, "hum.wav", 500),
			newSample(t, cfg, "hiss.wav", 700),
			newSample(t, cfg, "room.wav", 900),
			newSample(t, cfg, "crowd.wav", 300),
		),
		Percussive: newLibrary(t, "percussive",
			newSample(t, cfg, "drum.wav", 400),
		),
	}
}

func newComposer(t *testing.T, cfg *config.Config, set *library.Set) *Composer {
	t.Helper()
	cat, err := chords.NewCatalog(context.Background(), nil, cfg, &logging.NoOpLogger{})
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(cfg, set, cat, &logging.NoOpLogger{})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestWeightedChoiceDistribution(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	choices := []Weighted[string]{{"a", 1}, {"b", 3}}

	const draws = 40000
	counts := map[string]int{}
	for range draws {
		counts[WeightedChoice(rng, choices)]++
	}

	got := float64(counts["a"]) / draws
	if math.Abs(got-0.25) > 0.02 {
		t.Errorf("P(a) = %.3f, want 0.25", got)
	}
}

func TestWeightedChoiceSkipsZeroWeights(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	choices := []Weighted[int]{{1, 0}, {2, 5}, {3, 0}}
	for range 1000 {
		if got := WeightedChoice(rng, choices); got != 2 {
			t.Fatalf("picked %d, want 2", got)
		}
	}

	if got := WeightedChoice(rng, []Weighted[int]{{7, 0}}); got != 0 {
		t.Errorf("all-zero weights picked %d, want zero value", got)
	}
	if got := WeightedChoice[int](rng, nil); got != 0 {
		t.Errorf("empty choices picked %d, want zero value", got)
	}
}

func TestRepeatNeverChosenWithoutSustainedNotes(t *testing.T) {
	cfg := testConfig()
	cfg.Composer.NoteWeight = 0
	cfg.Composer.ChordWeight = 0
	cfg.Composer.GuitarSwapWeight = 0
	cfg.Composer.RepeatWeight = 100
	cfg.Composer.PauseWeight = 1

	s := &session{Composer: newComposer(t, cfg, testSet(t, cfg)), rng: rand.New(rand.NewPCG(5, 6))}
	for range 1000 {
		if a := s.nextAction(); a != ActionPause {
			t.Fatalf("picked %s with empty sustained set", a)
		}
	}

	s.last = []int{0}
	repeats := 0
	for range 1000 {
		if s.nextAction() == ActionRepeat {
			repeats++
		}
	}
	if repeats < 900 {
		t.Errorf("repeat picked %d/1000 times with sustained notes", repeats)
	}
}

func TestComposeInvariants(t *testing.T) {
	cfg := testConfig()
	set := testSet(t, cfg)
	c := newComposer(t, cfg, set)

	for seed := range uint64(20) {
		tl, stats := c.Compose(rand.New(rand.NewPCG(seed, 0)))

		if tl.Length != cfg.ExampleLength() {
			t.Fatalf("Length = %d, want %d", tl.Length, cfg.ExampleLength())
		}
		if tl.Volume < 0.25 || tl.Volume > 4 {
			t.Errorf("seed %d: volume %g outside [0.25, 4]", seed, tl.Volume)
		}
		if len(tl.Noise) != 3+1 {
			t.Errorf("seed %d: %d noise layers, want 4", seed, len(tl.Noise))
		}
		seen := map[*library.Sample]bool{}
		for _, l := range tl.Noise {
			if seen[l.Source] {
				t.Errorf("seed %d: noise source %s used twice", seed, l.Source.Name)
			}
			seen[l.Source] = true
			if l.Offset < 0 || l.Offset >= l.Source.Len() {
				t.Errorf("seed %d: noise offset %d outside recording", seed, l.Offset)
			}
		}

		companions := 0
		for _, n := range tl.Notes {
			if n.Start < 0 || n.Duration < 0 || n.End() > tl.Length {
				t.Fatalf("seed %d: note outside example: %v", seed, n)
			}
			if n.Roll < -cfg.Composer.Roll || n.Roll >= cfg.Composer.Roll {
				t.Errorf("seed %d: roll %d out of range", seed, n.Roll)
			}
			r := n.Instrument.RangeOr(library.FullRange(cfg))
			if n.EmitsLabel && !r.Contains(n.Pitch) {
				t.Errorf("seed %d: labelled pitch %d outside instrument range %v", seed, n.Pitch, r)
			}
			if !n.EmitsLabel {
				companions++
				if n.Pitch < cfg.Labels.StartPitch || n.Pitch >= cfg.Labels.EndPitch {
					t.Errorf("seed %d: companion pitch %d outside label range", seed, n.Pitch)
				}
			}
		}
		if companions != stats.Resonances {
			t.Errorf("seed %d: %d companions, stats say %d", seed, companions, stats.Resonances)
		}
		if stats.Notes+stats.Chords == 0 {
			t.Errorf("seed %d: nothing was played", seed)
		}
	}
}

func TestComposeDeterministic(t *testing.T) {
	cfg := testConfig()
	c := newComposer(t, cfg, testSet(t, cfg))

	render := func(tl *Timeline) string {
		return fmt.Sprint(tl.Volume, tl.Notes, tl.Noise)
	}
	a, _ := c.Compose(rand.New(rand.NewPCG(42, 7)))
	b, _ := c.Compose(rand.New(rand.NewPCG(42, 7)))
	if render(a) != render(b) {
		t.Error("same seed produced different timelines")
	}

	d, _ := c.Compose(rand.New(rand.NewPCG(43, 7)))
	if render(a) == render(d) {
		t.Error("different seeds produced identical timelines")
	}
}

func TestResonancePolicies(t *testing.T) {
	tests := []struct {
		policy      config.ResonancePolicy
		wantAudible bool
	}{
		{config.ResonanceAudible, true},
		{config.ResonanceDiscard, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			cfg := testConfig()
			cfg.Resonance.Policy = tt.policy
			c := newComposer(t, cfg, testSet(t, cfg))

			tl, stats := c.Compose(rand.New(rand.NewPCG(9, 9)))
			companions := len(tl.Notes) - tl.LabelledNotes()

			if tt.wantAudible {
				if companions == 0 || stats.Resonances != companions || stats.DiscardedResonances != 0 {
					t.Errorf("audible: companions=%d stats=%+v", companions, stats)
				}
			} else {
				if companions != 0 || stats.Resonances != 0 || stats.DiscardedResonances == 0 {
					t.Errorf("discard: companions=%d stats=%+v", companions, stats)
				}
			}
		})
	}
}

func TestUnplayableChordIsSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Composer.NoteWeight = 0
	cfg.Composer.RepeatWeight = 0
	cfg.Composer.GuitarSwapWeight = 0

	set := testSet(t, cfg)
	c := newComposer(t, cfg, set)
	c.chords = []Weighted[chords.Chord]{
		{Value: chords.Chord{Name: "high", Pitches: []int{70, 74, 77}, Weight: 1}, Weight: 1},
	}

	s := &session{
		Composer:   c,
		rng:        rand.New(rand.NewPCG(1, 1)),
		tl:         &Timeline{Length: cfg.ExampleLength()},
		instrument: set.Melodic.Samples()[0],
		t:          1000,
	}

	err := s.chord()
	var compErr *CompositionError
	if !errors.As(err, &compErr) {
		t.Fatalf("err = %v, want *CompositionError", err)
	}
	if compErr.Chord != "high" {
		t.Errorf("Chord = %q, want high", compErr.Chord)
	}
	if s.t != 1000 || len(s.tl.Notes) != 0 {
		t.Errorf("skipped chord changed state: t=%g notes=%d", s.t, len(s.tl.Notes))
	}

	tl, stats := c.Compose(rand.New(rand.NewPCG(2, 2)))
	if stats.SkippedChords == 0 || stats.Chords != 0 {
		t.Errorf("stats = %+v, want only skipped chords", stats)
	}
	if len(tl.Notes) != 0 {
		t.Errorf("%d notes emitted, want none", len(tl.Notes))
	}
}

func TestTruncateLast(t *testing.T) {
	cfg := testConfig()
	cfg.Composer.TruncateJitter = 0
	c := newComposer(t, cfg, testSet(t, cfg))

	s := &session{
		Composer: c,
		rng:      rand.New(rand.NewPCG(1, 1)),
		tl: &Timeline{
			Length: cfg.ExampleLength(),
			Notes: []Note{
				{Start: 0, Duration: 1000},
				{Start: 200, Duration: 100},
				{Start: 900, Duration: 1000},
			},
		},
		last: []int{0, 1, 2},
		t:    500,
	}
	s.truncateLast()

	want := []int{500, 100, 0}
	for i, w := range want {
		if got := s.tl.Notes[i].Duration; got != w {
			t.Errorf("note %d duration = %d, want %d", i, got, w)
		}
	}
}

func TestRepeatCopiesSustainedNotes(t *testing.T) {
	cfg := testConfig()
	cfg.Composer.TruncateJitter = 0
	c := newComposer(t, cfg, testSet(t, cfg))
	inst := c.samples.Melodic.Samples()[0]

	s := &session{
		Composer: c,
		rng:      rand.New(rand.NewPCG(1, 1)),
		tl: &Timeline{
			Length: cfg.ExampleLength(),
			Notes: []Note{
				{Start: 0, Duration: 5000, Pitch: 30, Roll: 2, Instrument: inst, Volume: 0.7, Origin: "chord(Cmaj2)", EmitsLabel: true},
			},
		},
		last: []int{0},
		t:    1000,
	}
	s.repeat()

	if s.tl.Notes[0].Duration != 1000 {
		t.Errorf("original truncated to %d, want 1000", s.tl.Notes[0].Duration)
	}
	var re *Note
	for i := range s.tl.Notes {
		if s.tl.Notes[i].Origin == "rechord(Cmaj2)" {
			re = &s.tl.Notes[i]
		}
	}
	if re == nil {
		t.Fatal("no repeated note emitted")
	}
	if re.Start != 1000 || re.Duration != 1000 || re.Pitch != 30 || re.Roll != 2 || re.Volume != 0.7 || !re.EmitsLabel {
		t.Errorf("repeated note = %v", *re)
	}
	if len(s.last) != 1 || s.tl.Notes[s.last[0]].Origin != "rechord(Cmaj2)" {
		t.Error("sustained set not replaced by the repeats")
	}
	if s.t < 1400 || s.t > 1900 {
		t.Errorf("time advanced to %g, want within [1400, 1900]", s.t)
	}
}

func TestGuitarSwapPicksDifferentInstrument(t *testing.T) {
	cfg := testConfig()
	c := newComposer(t, cfg, testSet(t, cfg))
	s := &session{Composer: c, rng: rand.New(rand.NewPCG(8, 8))}

	current := c.samples.Melodic.Samples()[0]
	for range 100 {
		if next := s.pickInstrument(current); next == current {
			t.Fatal("swap returned the current instrument")
		}
	}
}

func TestNewRejectsMissingLibraries(t *testing.T) {
	cfg := testConfig()
	if _, err := New(cfg, &library.Set{}, nil, nil); err == nil {
		t.Error("expected error without melodic instruments")
	}

	set := testSet(t, cfg)
	if _, err := New(cfg, set, nil, nil); err == nil {
		t.Error("expected error for weighted chords with empty catalog")
	}
}
