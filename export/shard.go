package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/x448/float16"

	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/corpus"
	"github.com/RyanBlaney/sonido-corpus/logging"
)

// ShardExt is the file extension of batch shards
const ShardExt = ".msgpack"

// Feature precisions stored in a shard
const (
	PrecisionFloat32 = "float32"
	PrecisionFloat16 = "float16"
)

// Shard is the on-disk form of one batch. Labels are one-hot, so only the
// sustain flag of each (example, frame, class) cell is stored.
type Shard struct {
	ID         string    `msgpack:"id"`
	Created    time.Time `msgpack:"created"`
	Index      uint64    `msgpack:"index"`
	Seed       uint64    `msgpack:"seed"`
	SampleRate int       `msgpack:"sample_rate"`
	FrameRate  int       `msgpack:"frame_rate"`
	StartPitch int       `msgpack:"start_pitch"`

	Size    int `msgpack:"size"`
	Frames  int `msgpack:"frames"`
	Filters int `msgpack:"filters"`
	Classes int `msgpack:"classes"`

	Precision  string    `msgpack:"precision"`
	Features   []float32 `msgpack:"features,omitempty"`
	Features16 []uint16  `msgpack:"features_f16,omitempty"`
	Sustain    []byte    `msgpack:"sustain"`
}

// NewShard packs b. With half set, features are stored as IEEE 754
// half-precision bit patterns.
func NewShard(b *corpus.Batch, cfg *config.Config, half bool) *Shard {
	s := &Shard{
		ID:         uuid.New().String(),
		Created:    time.Now().UTC(),
		Index:      b.Index,
		Seed:       cfg.Batch.Seed,
		SampleRate: cfg.Audio.SampleRate,
		FrameRate:  cfg.Frames.FrameRate,
		StartPitch: cfg.Labels.StartPitch,
		Size:       b.Size,
		Frames:     b.Frames,
		Filters:    b.Filters,
		Classes:    b.Classes,
		Sustain:    make([]byte, len(b.Labels)/2),
	}

	if half {
		s.Precision = PrecisionFloat16
		s.Features16 = make([]uint16, len(b.Features))
		for i, v := range b.Features {
			s.Features16[i] = float16.Fromfloat32(v).Bits()
		}
	} else {
		s.Precision = PrecisionFloat32
		s.Features = b.Features
	}

	for i := range s.Sustain {
		if b.Labels[2*i+1] == 1 {
			s.Sustain[i] = 1
		}
	}
	return s
}

// Batch unpacks the shard
func (s *Shard) Batch() (*corpus.Batch, error) {
	cells := s.Size * s.Frames * s.Classes
	if len(s.Sustain) != cells {
		return nil, fmt.Errorf("shard %s has %d label cells, want %d", s.ID, len(s.Sustain), cells)
	}

	values := s.Size * s.Frames * s.Filters
	b := &corpus.Batch{
		Index:   s.Index,
		Size:    s.Size,
		Frames:  s.Frames,
		Filters: s.Filters,
		Classes: s.Classes,
		Labels:  make([]float32, cells*2),
	}

	switch s.Precision {
	case PrecisionFloat32:
		if len(s.Features) != values {
			return nil, fmt.Errorf("shard %s has %d features, want %d", s.ID, len(s.Features), values)
		}
		b.Features = s.Features
	case PrecisionFloat16:
		if len(s.Features16) != values {
			return nil, fmt.Errorf("shard %s has %d features, want %d", s.ID, len(s.Features16), values)
		}
		b.Features = make([]float32, values)
		for i, bits := range s.Features16 {
			b.Features[i] = float16.Frombits(bits).Float32()
		}
	default:
		return nil, fmt.Errorf("shard %s has unknown precision %q", s.ID, s.Precision)
	}

	for i, sustain := range s.Sustain {
		if sustain != 0 {
			b.Labels[2*i+1] = 1
		} else {
			b.Labels[2*i] = 1
		}
	}
	return b, nil
}

// ShardWriter writes batches into a directory, one <uuid>.msgpack file per
// batch.
type ShardWriter struct {
	cfg     *config.Config
	dir     string
	half    bool
	written int
	logger  logging.Logger
}

// NewShardWriter creates cfg.Export.Dir if needed.
func NewShardWriter(cfg *config.Config, logger logging.Logger) (*ShardWriter, error) {
	if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create shard directory: %w", err)
	}
	return &ShardWriter{
		cfg:  cfg,
		dir:  cfg.Export.Dir,
		half: cfg.Export.Float16,
		logger: logging.Or(logger).WithFields(logging.Fields{
			"component": "shard_writer",
			"dir":       cfg.Export.Dir,
		}),
	}, nil
}

// Write encodes b into a new shard file and returns its path.
func (w *ShardWriter) Write(b *corpus.Batch) (string, error) {
	shard := NewShard(b, w.cfg, w.half)
	path := filepath.Join(w.dir, shard.ID+ShardExt)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create shard: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := msgpack.NewEncoder(bw).Encode(shard); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode shard: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write shard: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	w.written++
	w.logger.Debug("Shard written", logging.Fields{
		"shard":     shard.ID,
		"batch":     b.Index,
		"precision": shard.Precision,
	})
	return path, nil
}

// Written returns the number of shards written so far
func (w *ShardWriter) Written() int {
	return w.written
}

// ReadShard decodes the shard file at path.
func ReadShard(path string) (*Shard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Shard
	if err := msgpack.NewDecoder(bufio.NewReader(f)).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &s, nil
}

// ReadBatch decodes the shard file at path into a batch
func ReadBatch(path string) (*corpus.Batch, error) {
	s, err := ReadShard(path)
	if err != nil {
		return nil, err
	}
	return s.Batch()
}
