package transcode

import (
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// EncodeWAV writes mono 16-bit PCM. Samples are expected in [-1, 1] and
// are clipped outside it.
func EncodeWAV(w io.WriteSeeker, pcm []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	pos := 0
	streamer := beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= len(pcm) {
			return 0, false
		}
		for n < len(samples) && pos < len(pcm) {
			v := max(-1, min(1, pcm[pos]))
			samples[n] = [2]float64{v, v}
			n++
			pos++
		}
		return n, true
	})

	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 1,
		Precision:   2,
	}
	return wav.Encode(w, streamer, format)
}

// WriteWAVFile encodes pcm into a new WAV file at path
func WriteWAVFile(path string, pcm []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := EncodeWAV(f, pcm, sampleRate); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
