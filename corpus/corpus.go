package corpus

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/sonido-corpus/algorithms/common"
	"github.com/RyanBlaney/sonido-corpus/chords"
	"github.com/RyanBlaney/sonido-corpus/compose"
	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/features"
	"github.com/RyanBlaney/sonido-corpus/library"
	"github.com/RyanBlaney/sonido-corpus/logging"
	"github.com/RyanBlaney/sonido-corpus/synth"
)

// Example is one rendered training example
type Example struct {
	Waveform    []float64
	Features    *features.Features
	Labels      *synth.Labels
	Timeline    *compose.Timeline
	Composition compose.Stats
	Render      synth.Stats
}

// Batch holds B examples as contiguous arrays: Features is
// (Size, Frames, Filters) and Labels is (Size, Frames, Classes, 2).
type Batch struct {
	Index    uint64
	Size     int
	Frames   int
	Filters  int
	Classes  int
	Features []float32
	Labels   []float32

	Composition compose.Stats
	Render      synth.Stats
}

// FeatureAt returns the log-mel energy of band m in frame f of example i
func (b *Batch) FeatureAt(i, f, m int) float32 {
	return b.Features[(i*b.Frames+f)*b.Filters+m]
}

// LabelAt returns the label cell of pitch class p in frame f of example i
func (b *Batch) LabelAt(i, f, p int) [2]float32 {
	j := ((i*b.Frames+f)*b.Classes + p) * 2
	return [2]float32{b.Labels[j], b.Labels[j+1]}
}

// ExampleFeatures returns the (Frames, Filters) slice of example i
func (b *Batch) ExampleFeatures(i int) []float32 {
	n := b.Frames * b.Filters
	return b.Features[i*n : (i+1)*n]
}

// ExampleLabels returns the (Frames, Classes, 2) slice of example i
func (b *Batch) ExampleLabels(i int) []float32 {
	n := b.Frames * b.Classes * 2
	return b.Labels[i*n : (i+1)*n]
}

// Generator turns compositions into examples and batches. Every example
// draws from its own PCG stream keyed by the batch seed and the example's
// global position, so a batch index always yields the same batch.
type Generator struct {
	cfg       *config.Config
	composer  *compose.Composer
	synth     *synth.Synthesizer
	extractor *features.Extractor
	next      atomic.Uint64
	logger    logging.Logger
}

// NewGenerator wires a composer, synthesizer and extractor over the shared
// sample set and chord catalog.
func NewGenerator(cfg *config.Config, samples *library.Set, catalog *chords.Catalog, logger logging.Logger) (*Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger = logging.Or(logger).WithFields(logging.Fields{
		"component": "corpus_generator",
	})

	composer, err := compose.New(cfg, samples, catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create composer: %w", err)
	}

	extractor, err := features.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature extractor: %w", err)
	}

	if got, want := extractor.NumFrames(cfg.ExampleLength()), cfg.NumFrames(); got != want {
		return nil, fmt.Errorf("feature frames (%d) and label frames (%d) disagree", got, want)
	}

	return &Generator{
		cfg:       cfg,
		composer:  composer,
		synth:     synth.New(cfg, logger),
		extractor: extractor,
		logger:    logger,
	}, nil
}

// Shape returns the per-example frame, filter and pitch class counts
func (g *Generator) Shape() (frames, filters, classes int) {
	return g.cfg.NumFrames(), g.extractor.NumFilters(), g.cfg.PitchClasses()
}

// ExampleRand returns the random stream of example i of batch index.
func (g *Generator) ExampleRand(index uint64, i int) *rand.Rand {
	stream := index*uint64(g.cfg.Batch.Size) + uint64(i)
	return rand.New(rand.NewPCG(g.cfg.Batch.Seed, stream))
}

// GenerateExample composes, renders and extracts one example from rng.
func (g *Generator) GenerateExample(rng *rand.Rand) (*Example, error) {
	tl, cstats := g.composer.Compose(rng)
	rendered, rstats := g.synth.Render(tl)

	ft, err := g.extractor.Extract(rendered.Waveform)
	if err != nil {
		return nil, fmt.Errorf("failed to extract features: %w", err)
	}

	return &Example{
		Waveform:    rendered.Waveform,
		Features:    ft,
		Labels:      rendered.Labels,
		Timeline:    tl,
		Composition: cstats,
		Render:      rstats,
	}, nil
}

// GenerateBatch builds batch index. The context is checked once before any
// work starts; a batch in progress always runs to completion.
func (g *Generator) GenerateBatch(ctx context.Context, index uint64) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frames, filters, classes := g.Shape()
	size := g.cfg.Batch.Size
	b := &Batch{
		Index:    index,
		Size:     size,
		Frames:   frames,
		Filters:  filters,
		Classes:  classes,
		Features: make([]float32, size*frames*filters),
		Labels:   make([]float32, size*frames*classes*2),
	}

	logger := g.logger.WithFields(logging.Fields{
		"function": "GenerateBatch",
		"batch":    index,
		"size":     size,
	})
	logger.Debug("Starting batch generation")
	started := time.Now()

	for i := range size {
		rng := g.ExampleRand(index, i)
		tl, cstats := g.composer.Compose(rng)
		rendered, rstats := g.synth.Render(tl)

		if err := g.extractor.ExtractInto(b.ExampleFeatures(i), rendered.Waveform); err != nil {
			logger.Error(err, "Failed to extract features", logging.Fields{"example": i})
			return nil, fmt.Errorf("example %d of batch %d: %w", i, index, err)
		}
		copy(b.ExampleLabels(i), rendered.Labels.Data())

		b.Composition.Add(cstats)
		b.Render.Add(rstats)
	}

	mean, std := common.MeanStd32(b.Features)
	logger.Debug("Batch generation completed", logging.Fields{
		"duration_ms":    time.Since(started).Milliseconds(),
		"feature_mean":   mean,
		"feature_std":    std,
		"notes":          b.Composition.Notes,
		"chords":         b.Composition.Chords,
		"skipped_chords": b.Composition.SkippedChords,
		"silent_notes":   b.Render.SilentNotes,
		"dropped_labels": b.Render.DroppedLabels,
	})
	return b, nil
}

// Produce generates the next batch in index order. It makes Generator a
// pipeline producer.
func (g *Generator) Produce(ctx context.Context) (*Batch, error) {
	return g.GenerateBatch(ctx, g.next.Add(1)-1)
}

// Seek sets the index of the next batch Produce generates
func (g *Generator) Seek(index uint64) {
	g.next.Store(index)
}
