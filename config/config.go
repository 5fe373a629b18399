package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"
)

// ResonancePolicy decides what happens to the harmonic companions the
// composer computes for every primary note.
type ResonancePolicy string

const (
	// ResonanceAudible renders companions into the waveform without labels.
	ResonanceAudible ResonancePolicy = "audible"
	// ResonanceDiscard computes companions and drops them.
	ResonanceDiscard ResonancePolicy = "discard"
)

// ChordSourceKind selects the fretted chord provider.
type ChordSourceKind string

const (
	ChordSourceStatic ChordSourceKind = "static"
	ChordSourceHTTP   ChordSourceKind = "http"
	ChordSourceNone   ChordSourceKind = "none"
)

// Config is the single configuration value injected into every component.
type Config struct {
	Audio     AudioConfig     `toml:"audio"`
	Labels    LabelConfig     `toml:"labels"`
	Frames    FrameConfig     `toml:"frames"`
	Mel       MelConfig       `toml:"mel"`
	Composer  ComposerConfig  `toml:"composer"`
	Noise     NoiseConfig     `toml:"noise"`
	Resonance ResonanceConfig `toml:"resonance"`
	Batch     BatchConfig     `toml:"batch"`
	Library   LibraryConfig   `toml:"library"`
	Chords    ChordConfig     `toml:"chords"`
	Export    ExportConfig    `toml:"export"`
}

type AudioConfig struct {
	SampleRate     int     `toml:"sample_rate"`
	ExampleSeconds float64 `toml:"example_seconds"`
	MinVolume      float64 `toml:"min_volume"` // overall example gain, linear
	MaxVolume      float64 `toml:"max_volume"`
}

// LabelConfig is the MIDI pitch range [StartPitch, EndPitch) that gets labels.
type LabelConfig struct {
	StartPitch        int `toml:"start_pitch"`
	EndPitch          int `toml:"end_pitch"`
	OutputDelayFrames int `toml:"output_delay_frames"`
}

type FrameConfig struct {
	FrameLength int `toml:"frame_length"` // FFT size in samples
	FrameRate   int `toml:"frame_rate"`   // frames per second
}

type MelConfig struct {
	LowFreq     float64 `toml:"low_freq"`
	HighFreq    float64 `toml:"high_freq"`
	NumFilters  int     `toml:"num_filters"`
	PreEmphasis float64 `toml:"pre_emphasis"`
}

type ComposerConfig struct {
	InitialPause    float64 `toml:"initial_pause"`  // seconds
	PauseDuration   float64 `toml:"pause_duration"` // seconds
	NoteDurationMin float64 `toml:"note_duration_min"`
	NoteDurationMax float64 `toml:"note_duration_max"`
	NoteVolumeSD    float64 `toml:"note_volume_sd"` // log10 units
	Roll            int     `toml:"roll"`
	ChordDelay      float64 `toml:"chord_delay"` // strum delay per string, seconds
	ChordDelaySD    float64 `toml:"chord_delay_sd"`
	TruncateJitter  float64 `toml:"truncate_jitter"` // samples

	NoteWeight       float64 `toml:"note_weight"`
	ChordWeight      float64 `toml:"chord_weight"`
	RepeatWeight     float64 `toml:"repeat_weight"`
	GuitarSwapWeight float64 `toml:"guitar_swap_weight"`
	PauseWeight      float64 `toml:"pause_weight"`
}

type NoiseConfig struct {
	Layers           int     `toml:"layers"`
	Volume           float64 `toml:"volume"`
	VolumeSD         float64 `toml:"volume_sd"` // log10 units
	PercussionLayers int     `toml:"percussion_layers"`
}

type ResonanceConfig struct {
	Policy     ResonancePolicy `toml:"policy"`
	Amount     int             `toml:"amount"`
	VolumeMean float64         `toml:"volume_mean"`
	VolumeSD   float64         `toml:"volume_sd"`
	Intervals  []int           `toml:"intervals"`
}

type BatchConfig struct {
	Size int    `toml:"size"`
	Seed uint64 `toml:"seed"`
}

type LibraryConfig struct {
	MelodicDir     string  `toml:"melodic_dir"`
	NoiseDir       string  `toml:"noise_dir"`
	PercussiveDir  string  `toml:"percussive_dir"`
	AmplitudeScale float64 `toml:"amplitude_scale"`
}

type ChordConfig struct {
	Source        ChordSourceKind `toml:"source"`
	URL           string          `toml:"url"`
	FrettedWeight float64         `toml:"fretted_weight"`
	Tuning        []int           `toml:"tuning"`
}

type ExportConfig struct {
	Dir     string `toml:"dir"`
	Float16 bool   `toml:"float16"`
}

// Default returns the configuration the corpus is tuned for:
// 44.1 kHz, 20 s examples, 30 frames/s, 124 mel filters over 60-1500 Hz.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate:     44100,
			ExampleSeconds: 20,
			MinVolume:      0.25,
			MaxVolume:      4,
		},
		Labels: LabelConfig{
			StartPitch: 24,
			EndPitch:   60,
		},
		Frames: FrameConfig{
			FrameLength: 4096,
			FrameRate:   30,
		},
		Mel: MelConfig{
			LowFreq:     60,
			HighFreq:    1500,
			NumFilters:  124,
			PreEmphasis: 0.95,
		},
		Composer: ComposerConfig{
			InitialPause:     0.1,
			PauseDuration:    0.2,
			NoteDurationMin:  0.1,
			NoteDurationMax:  2.4,
			NoteVolumeSD:     math.Abs(math.Log10(0.9)),
			Roll:             3,
			ChordDelay:       0.002,
			ChordDelaySD:     0.0002,
			TruncateJitter:   500,
			NoteWeight:       8,
			ChordWeight:      6,
			RepeatWeight:     1,
			GuitarSwapWeight: 1,
			PauseWeight:      4,
		},
		Noise: NoiseConfig{
			Layers:           3,
			Volume:           0.25,
			VolumeSD:         math.Abs(math.Log10(0.9)),
			PercussionLayers: 1,
		},
		Resonance: ResonanceConfig{
			Policy:     ResonanceAudible,
			Amount:     4,
			VolumeMean: 0.05,
			VolumeSD:   0.02,
			Intervals:  []int{-12, -4, -3, 3, 4, 12},
		},
		Batch: BatchConfig{
			Size: 10,
			Seed: 1,
		},
		Library: LibraryConfig{
			MelodicDir:     "sounds/guitars",
			NoiseDir:       "sounds/noise",
			PercussiveDir:  "sounds/instruments",
			AmplitudeScale: 32768,
		},
		Chords: ChordConfig{
			Source:        ChordSourceStatic,
			URL:           "http://www.chordie.com/chords.php",
			FrettedWeight: 1,
			Tuning:        []int{28, 33, 38, 43, 47, 52},
		},
		Export: ExportConfig{
			Dir: "batches",
		},
	}
}

// Load decodes the TOML file at path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	add("audio", c.Audio.Validate())
	add("labels", c.Labels.Validate())
	add("frames", c.Frames.Validate(c.Audio.SampleRate))
	add("mel", c.Mel.Validate(c.Audio.SampleRate))
	add("composer", c.Composer.Validate())
	add("noise", c.Noise.Validate())
	add("resonance", c.Resonance.Validate())
	add("batch", c.Batch.Validate())
	add("chords", c.Chords.Validate())

	if c.ExampleLength() <= c.Frames.FrameLength {
		errs = append(errs, fmt.Errorf("example length %d samples must exceed frame length %d",
			c.ExampleLength(), c.Frames.FrameLength))
	}
	return errors.Join(errs...)
}

func (a AudioConfig) Validate() error {
	if a.SampleRate <= 0 {
		return errors.New("sample_rate must be positive")
	}
	if a.ExampleSeconds <= 0 {
		return errors.New("example_seconds must be positive")
	}
	if a.MinVolume <= 0 || a.MaxVolume < a.MinVolume {
		return fmt.Errorf("volume range [%g, %g] is invalid", a.MinVolume, a.MaxVolume)
	}
	return nil
}

func (l LabelConfig) Validate() error {
	if l.StartPitch < 0 || l.EndPitch <= l.StartPitch {
		return fmt.Errorf("pitch range [%d, %d) is empty", l.StartPitch, l.EndPitch)
	}
	if l.OutputDelayFrames < 0 {
		return errors.New("output_delay_frames cannot be negative")
	}
	return nil
}

func (f FrameConfig) Validate(sampleRate int) error {
	if f.FrameLength <= 0 {
		return errors.New("frame_length must be positive")
	}
	if f.FrameRate <= 0 || f.FrameRate > sampleRate {
		return fmt.Errorf("frame_rate %d out of range", f.FrameRate)
	}
	return nil
}

func (m MelConfig) Validate(sampleRate int) error {
	if m.NumFilters <= 0 {
		return errors.New("num_filters must be positive")
	}
	if m.LowFreq < 0 || m.HighFreq <= m.LowFreq {
		return fmt.Errorf("frequency range [%g, %g] is invalid", m.LowFreq, m.HighFreq)
	}
	if m.HighFreq > float64(sampleRate)/2 {
		return fmt.Errorf("high_freq %g above Nyquist", m.HighFreq)
	}
	if m.PreEmphasis < 0 || m.PreEmphasis >= 1 {
		return fmt.Errorf("pre_emphasis %g must be in [0, 1)", m.PreEmphasis)
	}
	return nil
}

func (c ComposerConfig) Validate() error {
	if c.NoteDurationMin <= 0 || c.NoteDurationMax < c.NoteDurationMin {
		return fmt.Errorf("note duration range [%g, %g] is invalid", c.NoteDurationMin, c.NoteDurationMax)
	}
	if c.PauseDuration <= 0 {
		return errors.New("pause_duration must be positive")
	}
	if c.InitialPause < 0 || c.Roll < 0 || c.TruncateJitter < 0 {
		return errors.New("initial_pause, roll and truncate_jitter cannot be negative")
	}
	for name, w := range map[string]float64{
		"note_weight":        c.NoteWeight,
		"chord_weight":       c.ChordWeight,
		"repeat_weight":      c.RepeatWeight,
		"guitar_swap_weight": c.GuitarSwapWeight,
		"pause_weight":       c.PauseWeight,
	} {
		if w < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if c.NoteWeight+c.ChordWeight+c.PauseWeight == 0 {
		return errors.New("at least one of note, chord or pause must have weight")
	}
	return nil
}

func (n NoiseConfig) Validate() error {
	if n.Layers < 0 || n.PercussionLayers < 0 {
		return errors.New("layer counts cannot be negative")
	}
	if n.Volume < 0 {
		return errors.New("volume cannot be negative")
	}
	return nil
}

func (r ResonanceConfig) Validate() error {
	switch r.Policy {
	case ResonanceAudible, ResonanceDiscard:
	default:
		return fmt.Errorf("unknown policy %q", r.Policy)
	}
	if r.Amount < 0 {
		return errors.New("amount cannot be negative")
	}
	if r.Amount > 0 && len(r.Intervals) == 0 {
		return errors.New("intervals cannot be empty")
	}
	return nil
}

func (b BatchConfig) Validate() error {
	if b.Size <= 0 {
		return errors.New("size must be positive")
	}
	return nil
}

func (c ChordConfig) Validate() error {
	switch c.Source {
	case ChordSourceStatic, ChordSourceNone:
	case ChordSourceHTTP:
		if c.URL == "" {
			return errors.New("url required for http source")
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if len(c.Tuning) == 0 {
		return errors.New("tuning cannot be empty")
	}
	if c.FrettedWeight < 0 {
		return errors.New("fretted_weight cannot be negative")
	}
	return nil
}

// ExampleLength is the waveform length of one example in samples.
func (c *Config) ExampleLength() int {
	return int(c.Audio.ExampleSeconds * float64(c.Audio.SampleRate))
}

// FrameStep is the hop between feature frames in samples.
func (c *Config) FrameStep() int {
	return int(math.Round(float64(c.Audio.SampleRate) / float64(c.Frames.FrameRate)))
}

// NumFrames is the number of feature frames per example.
func (c *Config) NumFrames() int {
	return FrameCount(c.ExampleLength(), c.Frames.FrameLength, c.FrameStep())
}

// PitchClasses is the number of labelled pitches.
func (c *Config) PitchClasses() int {
	return c.Labels.EndPitch - c.Labels.StartPitch
}

// MaxNoteSamples is the per-pitch stride inside instrument recordings.
func (c *Config) MaxNoteSamples() int {
	return int(c.Composer.NoteDurationMax * float64(c.Audio.SampleRate))
}

// OutputDelay is the label delay in samples.
func (c *Config) OutputDelay() int {
	return int(float64(c.Labels.OutputDelayFrames) * float64(c.Audio.SampleRate) / float64(c.Frames.FrameRate))
}

// FrameCount returns ceil(|length - frameLength| / step).
func FrameCount(length, frameLength, step int) int {
	d := length - frameLength
	if d < 0 {
		d = -d
	}
	return (d + step - 1) / step
}
