package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/sonido-corpus/algorithms/common"
	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/corpus"
	"github.com/RyanBlaney/sonido-corpus/transcode"
)

// DumpExample writes ex as <name>.wav and its timeline as <name>.txt in
// dir, returning both paths. The waveform is divided by the library
// amplitude scale, or by its peak when that is larger, so it never clips.
func DumpExample(dir, name string, ex *corpus.Example, cfg *config.Config) (wavPath, logPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create dump directory: %w", err)
	}

	wavPath = filepath.Join(dir, name+".wav")
	if err := transcode.WriteWAVFile(wavPath, common.PeakNormalize(ex.Waveform, cfg.Library.AmplitudeScale), cfg.Audio.SampleRate); err != nil {
		return "", "", err
	}

	logPath = filepath.Join(dir, name+".txt")
	f, err := os.Create(logPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create timeline log: %w", err)
	}
	w := bufio.NewWriter(f)
	writeTimeline(w, ex)
	if err := w.Flush(); err != nil {
		f.Close()
		return "", "", err
	}
	return wavPath, logPath, f.Close()
}

// writeTimeline lists the data summary, the audible primary notes and the
// noise layers. Resonance companions are left out.
func writeTimeline(w *bufio.Writer, ex *corpus.Example) {
	tl := ex.Timeline
	fmt.Fprintln(w, "DATA")
	fmt.Fprintf(w, "samples=%d volume=%.4f frames=%d filters=%d\n",
		tl.Length, tl.Volume, ex.Features.Frames, ex.Features.Filters)
	fmt.Fprintf(w, "composition=%+v\n", ex.Composition)
	fmt.Fprintf(w, "render=%+v\n", ex.Render)

	fmt.Fprintln(w, "NOTES")
	for _, n := range tl.Notes {
		if strings.HasPrefix(n.Origin, "res-") {
			continue
		}
		fmt.Fprintln(w, n.String())
	}

	fmt.Fprintln(w, "NOISE")
	for _, l := range tl.Noise {
		fmt.Fprintln(w, l.String())
	}
}
