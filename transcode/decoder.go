package transcode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-corpus/logging"
	"github.com/gopxl/beep/v2/wav"
	"github.com/mewkiz/flac"
)

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64     `json:"-"` // First channel, integer full scale mapped to [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // Channel count of the source
	Duration   time.Duration `json:"duration"`
	Format     string        `json:"format"`
}

// Supported file formats
const (
	FormatWAV  = "wav"
	FormatFLAC = "flac"
)

// ErrUnsupportedFormat is returned for files that are neither WAV nor FLAC.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decoder decodes WAV and FLAC files to mono PCM.
type Decoder struct {
	logger logging.Logger
}

// NewDecoder creates a decoder. A nil logger uses the global one.
func NewDecoder(logger logging.Logger) *Decoder {
	return &Decoder{
		logger: logging.Or(logger).WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// FormatOf returns the audio format implied by a file extension, or "".
func FormatOf(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return FormatWAV
	case ".flac":
		return FormatFLAC
	default:
		return ""
	}
}

// DecodeFile decodes an audio file and returns the PCM of its first channel
func (d *Decoder) DecodeFile(filename string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	var (
		audio *AudioData
		err   error
	)
	switch FormatOf(filename) {
	case FormatWAV:
		var f *os.File
		f, err = os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", filename, err)
		}
		defer f.Close()
		audio, err = d.DecodeWAV(f)
	case FormatFLAC:
		audio, err = d.decodeFLACFile(filename)
	default:
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedFormat)
	}
	if err != nil {
		logger.Error(err, "Failed to decode audio file")
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}

	logger.Debug("Audio file decoded", logging.Fields{
		"sample_rate": audio.SampleRate,
		"channels":    audio.Channels,
		"samples":     len(audio.PCM),
		"duration":    audio.Duration.String(),
	})
	return audio, nil
}

// DecodeWAV decodes a WAV stream with beep, keeping the first channel
func (d *Decoder) DecodeWAV(r io.Reader) (*AudioData, error) {
	stream, format, err := wav.Decode(r)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	pcm := make([]float64, 0, max(stream.Len(), 0))
	buf := make([][2]float64, 4096)
	for {
		n, ok := stream.Stream(buf)
		for i := range n {
			pcm = append(pcm, buf[i][0])
		}
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	sampleRate := int(format.SampleRate)
	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   format.NumChannels,
		Duration:   durationOf(len(pcm), sampleRate),
		Format:     FormatWAV,
	}, nil
}

func (d *Decoder) decodeFLACFile(filename string) (*AudioData, error) {
	stream, err := flac.ParseFile(filename)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	bits := int(stream.Info.BitsPerSample)
	if bits <= 0 || bits > 32 {
		return nil, fmt.Errorf("invalid bits per sample %d", bits)
	}
	scale := 1 / float64(int64(1)<<(bits-1))

	pcm := make([]float64, 0, stream.Info.NSamples)
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(frame.Subframes) == 0 {
			continue
		}
		for _, s := range frame.Subframes[0].Samples {
			pcm = append(pcm, float64(s)*scale)
		}
	}

	sampleRate := int(stream.Info.SampleRate)
	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   int(stream.Info.NChannels),
		Duration:   durationOf(len(pcm), sampleRate),
		Format:     FormatFLAC,
	}, nil
}

func durationOf(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}
