package chords

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/logging"
	"gopkg.in/yaml.v3"
)

// Fret is a fret offset on one string, or Muted.
type Fret int

// Muted marks a string that is not played.
const Muted Fret = -1

// FrettedChord is a guitar chord shape, one fret per string from the lowest
// string up.
type FrettedChord struct {
	Name  string
	Frets []Fret
}

// ChordSource provides fretted chord shapes.
type ChordSource interface {
	Chords(ctx context.Context) ([]FrettedChord, error)
}

// ParseFrets parses one character per string: a digit is a fret, N is muted.
func ParseFrets(s string) ([]Fret, error) {
	frets := make([]Fret, 0, len(s))
	for i, c := range s {
		switch {
		case c == 'N':
			frets = append(frets, Muted)
		case c >= '0' && c <= '9':
			frets = append(frets, Fret(c-'0'))
		default:
			return nil, fmt.Errorf("invalid fret %q at string %d", c, i)
		}
	}
	return frets, nil
}

//go:embed data/chords.yaml
var staticData []byte

type dataset struct {
	Chords []struct {
		Name  string `yaml:"name"`
		Frets string `yaml:"frets"`
	} `yaml:"chords"`
}

// StaticSource serves the chord shapes bundled with the binary.
type StaticSource struct {
	data []byte
}

// NewStaticSource returns the bundled dataset source
func NewStaticSource() *StaticSource {
	return &StaticSource{data: staticData}
}

// NewStaticSourceFromYAML returns a source over a caller-supplied dataset
// in the bundled format.
func NewStaticSourceFromYAML(data []byte) *StaticSource {
	return &StaticSource{data: data}
}

func (s *StaticSource) Chords(ctx context.Context) ([]FrettedChord, error) {
	var ds dataset
	if err := yaml.Unmarshal(s.data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse chord dataset: %w", err)
	}

	out := make([]FrettedChord, 0, len(ds.Chords))
	for _, c := range ds.Chords {
		frets, err := ParseFrets(c.Frets)
		if err != nil {
			return nil, fmt.Errorf("chord %q: %w", c.Name, err)
		}
		out = append(out, FrettedChord{Name: c.Name, Frets: frets})
	}
	return out, nil
}

var titlePattern = regexp.MustCompile(`title="[^".]*"`)

// HTTPSource scrapes a chord index page whose entries carry
// title="NAME=FRETSxx" attributes. The last two characters of each fret
// field are not frets and are dropped.
type HTTPSource struct {
	url    string
	client *http.Client
	logger logging.Logger
}

// NewHTTPSource creates a source fetching url with the given client.
// A nil client uses one with a 30 second timeout.
func NewHTTPSource(url string, client *http.Client, logger logging.Logger) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{
		url:    url,
		client: client,
		logger: logging.Or(logger).WithFields(logging.Fields{
			"component": "chord_source",
			"url":       url,
		}),
	}
}

func (s *HTTPSource) Chords(ctx context.Context) ([]FrettedChord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chords: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch chords: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chord page: %w", err)
	}

	chords, skipped := ParseChordPage(string(body))
	s.logger.Info("Fetched chord page", logging.Fields{
		"chords":  len(chords),
		"skipped": skipped,
	})
	return chords, nil
}

// ParseChordPage extracts chord shapes from a chord index page, returning
// the shapes and the number of malformed entries skipped.
func ParseChordPage(page string) ([]FrettedChord, int) {
	var (
		chords  []FrettedChord
		skipped int
	)
	for _, m := range titlePattern.FindAllString(page, -1) {
		inner := m[len(`title="`) : len(m)-1]
		name, frets, ok := strings.Cut(inner, "=")
		if !ok || name == "" || len(frets) < 2 {
			skipped++
			continue
		}

		parsed, err := ParseFrets(frets[:len(frets)-2])
		if err != nil || len(parsed) == 0 {
			skipped++
			continue
		}
		chords = append(chords, FrettedChord{Name: name, Frets: parsed})
	}
	return chords, skipped
}

// noSource provides no fretted chords.
type noSource struct{}

func (noSource) Chords(context.Context) ([]FrettedChord, error) { return nil, nil }

// NewSource builds the ChordSource selected by cfg.Chords.Source.
func NewSource(cfg *config.Config, logger logging.Logger) (ChordSource, error) {
	switch cfg.Chords.Source {
	case config.ChordSourceStatic, "":
		return NewStaticSource(), nil
	case config.ChordSourceHTTP:
		return NewHTTPSource(cfg.Chords.URL, nil, logger), nil
	case config.ChordSourceNone:
		return noSource{}, nil
	default:
		return nil, fmt.Errorf("unknown chord source %q", cfg.Chords.Source)
	}
}
