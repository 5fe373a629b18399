package library

import (
	"errors"
	"fmt"
)

var (
	ErrEmpty      = errors.New("no audio files found")
	ErrSilent     = errors.New("recording has zero or invalid RMS")
	ErrSampleRate = errors.New("sample rate mismatch")
	ErrNoRange    = errors.New("instrument pitch range is empty")
)

// Error reports a sample library that cannot be built. It is fatal at
// startup.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sample library %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
