package corpus

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-corpus/chords"
	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/library"
	"github.com/RyanBlaney/sonido-corpus/logging"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.ExampleSeconds = 1
	cfg.Composer.NoteDurationMax = 0.1
	cfg.Batch.Size = 2
	cfg.Batch.Seed = 7
	return &cfg
}

func sample(t *testing.T, cfg *config.Config, name string, n int, hz float64) *library.Sample {
	t.Helper()
	pcm := make([]float64, n)
	for i := range pcm {
		pcm[i] = 1000 * math.Sin(2*math.Pi*hz*float64(i)/float64(cfg.Audio.SampleRate))
	}
	s, err := library.NewSample(name, pcm, cfg.Audio.SampleRate, cfg.Labels)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func lib(t *testing.T, name string, samples ...*library.Sample) *library.Library {
	t.Helper()
	l, err := library.New(name, samples)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func newGenerator(t *testing.T, cfg *config.Config) *Generator {
	t.Helper()
	stride := cfg.MaxNoteSamples()
	set := &library.Set{
		Melodic: lib(t, "melodic",
			sample(t, cfg, "guitar [24-32].wav", 9*stride, 220),
			sample(t, cfg, "piano [28-36].wav", 13*stride, 330),
		),
		Noise: lib(t, "noise",
			sample(t, cfg, "hum.wav", 2000, 60),
			sample(t, cfg, "hiss.wav", 3000, 5000),
			sample(t, cfg, "room.wav", 5000, 100),
		),
	}
	cat, err := chords.NewCatalog(context.Background(), nil, cfg, &logging.NoOpLogger{})
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGenerator(cfg, set, cat, &logging.NoOpLogger{})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGenerateBatchShape(t *testing.T) {
	cfg := testConfig()
	g := newGenerator(t, cfg)

	frames, filters, classes := g.Shape()
	if frames != cfg.NumFrames() || filters != cfg.Mel.NumFilters || classes != cfg.PitchClasses() {
		t.Fatalf("shape = %d,%d,%d", frames, filters, classes)
	}

	for _, seed := range []uint64{1, 2, 99} {
		cfg.Batch.Seed = seed
		b, err := g.GenerateBatch(context.Background(), 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(b.Features) != cfg.Batch.Size*frames*filters {
			t.Errorf("seed %d: features len = %d", seed, len(b.Features))
		}
		if len(b.Labels) != cfg.Batch.Size*frames*classes*2 {
			t.Errorf("seed %d: labels len = %d", seed, len(b.Labels))
		}
	}
}

func TestGenerateBatchLabelsOneHot(t *testing.T) {
	cfg := testConfig()
	g := newGenerator(t, cfg)

	b, err := g.GenerateBatch(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}

	for i := range b.Size {
		for f := range b.Frames {
			for p := range b.Classes {
				c := b.LabelAt(i, f, p)
				if c[0]+c[1] != 1 || c[0]*c[1] != 0 {
					t.Fatalf("example %d frame %d class %d = %v", i, f, p, c)
				}
			}
		}
	}
	for i, v := range b.Features {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("feature %d = %v", i, v)
		}
	}
	if b.Composition.Notes == 0 {
		t.Error("batch composed no notes")
	}
}

func TestGenerateBatchDeterministic(t *testing.T) {
	cfg := testConfig()
	a, err := newGenerator(t, cfg).GenerateBatch(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	b, err := newGenerator(t, cfg).GenerateBatch(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Features {
		if a.Features[i] != b.Features[i] {
			t.Fatalf("feature %d differs", i)
		}
	}
	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] {
			t.Fatalf("label %d differs", i)
		}
	}

	c, err := newGenerator(t, cfg).GenerateBatch(context.Background(), 6)
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range a.Features {
		if a.Features[i] != c.Features[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("batches 5 and 6 are identical")
	}
}

func TestGenerateExampleMatchesBatch(t *testing.T) {
	cfg := testConfig()
	g := newGenerator(t, cfg)

	b, err := g.GenerateBatch(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	ex, err := g.GenerateExample(g.ExampleRand(2, 1))
	if err != nil {
		t.Fatal(err)
	}

	if err := ex.Labels.Validate(); err != nil {
		t.Fatal(err)
	}
	got := b.ExampleFeatures(1)
	for i, v := range ex.Features.Data {
		if got[i] != v {
			t.Fatalf("feature %d = %g, batch has %g", i, v, got[i])
		}
	}
	labels := b.ExampleLabels(1)
	for i, v := range ex.Labels.Data() {
		if labels[i] != v {
			t.Fatalf("label %d = %g, batch has %g", i, v, labels[i])
		}
	}
	if len(ex.Waveform) != cfg.ExampleLength() {
		t.Errorf("waveform len = %d", len(ex.Waveform))
	}
}

func TestProduceAdvancesIndex(t *testing.T) {
	cfg := testConfig()
	g := newGenerator(t, cfg)
	g.Seek(10)

	for want := uint64(10); want < 12; want++ {
		b, err := g.Produce(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if b.Index != want {
			t.Errorf("index = %d, want %d", b.Index, want)
		}
	}
}

func TestGenerateBatchCanceled(t *testing.T) {
	cfg := testConfig()
	g := newGenerator(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.GenerateBatch(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
