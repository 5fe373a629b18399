package library

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/logging"
	"github.com/RyanBlaney/sonido-corpus/transcode"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.SampleRate = 8000
	return &cfg
}

func writeTone(t *testing.T, dir, name string, amplitude float64, n int) {
	t.Helper()
	pcm := make([]float64, n)
	for i := range pcm {
		pcm[i] = amplitude * math.Sin(2*math.Pi*float64(i)/16)
	}
	if err := transcode.WriteWAVFile(filepath.Join(dir, name), pcm, 8000); err != nil {
		t.Fatal(err)
	}
}

func TestParseRange(t *testing.T) {
	labels := config.LabelConfig{StartPitch: 24, EndPitch: 60}
	tests := []struct {
		name string
		want PitchRange
		ok   bool
	}{
		{"guitar [30-50].wav", PitchRange{30, 50}, true},
		{"bass [10-40].wav", PitchRange{24, 40}, true},
		{"piano [40-0].wav", PitchRange{40, 60}, true},
		{"lead [40-90].wav", PitchRange{40, 60}, true},
		{"open [-].wav", PitchRange{24, 60}, true},
		{"plain.wav", PitchRange{}, false},
		{"twice [30-40] [40-50].wav", PitchRange{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseRange(tt.name, labels)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseRange(%q) = %v, %v, want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoadEqualizesRMS(t *testing.T) {
	dir := t.TempDir()
	writeTone(t, dir, "b quiet.wav", 0.1, 800)
	writeTone(t, dir, "a loud [30-40].wav", 0.4, 800)
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	lib, err := Load(dir, cfg, &logging.NoOpLogger{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lib.Len() != 2 {
		t.Fatalf("Len = %d, want 2", lib.Len())
	}

	samples := lib.Samples()
	if samples[0].Name != "a loud [30-40]" || samples[1].Name != "b quiet" {
		t.Errorf("samples not in lexical order: %s, %s", samples[0].Name, samples[1].Name)
	}

	// int16 full scale: amplitude 0.1 and 0.4 sine RMS ~ 0.0707*32768 and 0.2828*32768
	wantAvg := (0.1 + 0.4) / 2 / math.Sqrt2 * cfg.Library.AmplitudeScale
	if math.Abs(lib.AverageRMS()-wantAvg)/wantAvg > 0.01 {
		t.Errorf("AverageRMS = %g, want ~%g", lib.AverageRMS(), wantAvg)
	}
	for _, s := range samples {
		got := rmsOf(s.PCM)
		if math.Abs(got-lib.AverageRMS())/lib.AverageRMS() > 1e-9 {
			t.Errorf("%s RMS = %g, want %g", s.Name, got, lib.AverageRMS())
		}
	}

	if r, ok := samples[0].Range(); !ok || r != (PitchRange{30, 40}) {
		t.Errorf("Range = %v, %v", r, ok)
	}
	if _, ok := samples[1].Range(); ok {
		t.Error("sample without token should have no range")
	}
	if got := samples[1].RangeOr(FullRange(cfg)); got != (PitchRange{24, 60}) {
		t.Errorf("RangeOr = %v, want full label range", got)
	}
}

func rmsOf(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
		want  error
	}{
		{
			name:  "empty directory",
			setup: func(t *testing.T, dir string) {},
			want:  ErrEmpty,
		},
		{
			name: "sample rate mismatch",
			setup: func(t *testing.T, dir string) {
				if err := transcode.WriteWAVFile(filepath.Join(dir, "x.wav"), []float64{0.5, -0.5}, 16000); err != nil {
					t.Fatal(err)
				}
			},
			want: ErrSampleRate,
		},
		{
			name: "silent recording",
			setup: func(t *testing.T, dir string) {
				writeTone(t, dir, "silence.wav", 0, 100)
			},
			want: ErrSilent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)

			_, err := Load(dir, testConfig(), &logging.NoOpLogger{})
			var libErr *Error
			if !errors.As(err, &libErr) {
				t.Fatalf("err = %v, want *library.Error", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if n := strings.Count(err.Error(), "sample library"); n != 1 {
				t.Errorf("err = %q, wrapped %d times", err, n)
			}
		})
	}
}

func TestNewRejectsSilentSample(t *testing.T) {
	for _, rms := range []float64{0, math.NaN(), math.Inf(1), -1} {
		loud := &Sample{Name: "loud.wav", PCM: []float64{2, -2}, RMS: 2}
		bad := &Sample{Name: "bad.wav", PCM: []float64{0, 0}, RMS: rms}

		_, err := New("melodic", []*Sample{loud, bad})
		if !errors.Is(err, ErrSilent) {
			t.Errorf("RMS %g: err = %v, want ErrSilent", rms, err)
		}
		if loud.PCM[0] != 2 || loud.RMS != 2 {
			t.Errorf("RMS %g: rejected library rescaled %+v", rms, loud)
		}
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), testConfig(), &logging.NoOpLogger{})
	var libErr *Error
	if !errors.As(err, &libErr) {
		t.Errorf("err = %v, want *library.Error", err)
	}
}

func TestLoadSet(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"guitars", "noise", "instruments"} {
		if err := os.Mkdir(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeTone(t, filepath.Join(root, "guitars"), "g [30-40].wav", 0.3, 400)
	writeTone(t, filepath.Join(root, "noise"), "hum.wav", 0.05, 400)
	writeTone(t, filepath.Join(root, "instruments"), "drum.wav", 0.2, 400)

	cfg := testConfig()
	cfg.Library.MelodicDir = filepath.Join(root, "guitars")
	cfg.Library.NoiseDir = filepath.Join(root, "noise")
	cfg.Library.PercussiveDir = filepath.Join(root, "instruments")

	set, err := LoadSet(cfg, &logging.NoOpLogger{})
	if err != nil {
		t.Fatalf("LoadSet: %v", err)
	}
	if set.Melodic.Len() != 1 || set.Noise.Len() != 1 || set.Percussive == nil {
		t.Errorf("unexpected set %+v", set)
	}

	cfg.Noise.PercussionLayers = 0
	set, err = LoadSet(cfg, &logging.NoOpLogger{})
	if err != nil {
		t.Fatal(err)
	}
	if set.Percussive != nil {
		t.Error("percussive library should be skipped without percussion layers")
	}
}

func TestSetRejectsInstrumentOutsideLabels(t *testing.T) {
	cfg := testConfig()
	high, err := NewSample("high [70-80].wav", []float64{1, -1}, 8000, cfg.Labels)
	if err != nil {
		t.Fatal(err)
	}
	noise, err := NewSample("n.wav", []float64{1, -1}, 8000, cfg.Labels)
	if err != nil {
		t.Fatal(err)
	}
	melodic, _ := New("melodic", []*Sample{high})
	noiseLib, _ := New("noise", []*Sample{noise})

	err = (&Set{Melodic: melodic, Noise: noiseLib}).Validate(cfg)
	if !errors.Is(err, ErrNoRange) {
		t.Errorf("err = %v, want ErrNoRange", err)
	}
}
