package synth

import (
	"fmt"
)

// Label states. Every (frame, pitch) cell holds exactly one of them.
var (
	Off     = [2]float32{1, 0}
	Onset   = [2]float32{1, 0}
	Sustain = [2]float32{0, 1}
)

// Labels is a (frames x pitchClasses x 2) one-hot tensor stored flat.
// A cell reads [1,0] when the pitch is silent or starts in that frame and
// [0,1] while it sustains.
type Labels struct {
	frames  int
	classes int
	data    []float32
}

// NewLabels creates a tensor with every cell set to [1,0].
func NewLabels(frames, classes int) *Labels {
	l := &Labels{
		frames:  frames,
		classes: classes,
		data:    make([]float32, frames*classes*2),
	}
	for i := 0; i < len(l.data); i += 2 {
		l.data[i] = 1
	}
	return l
}

// Frames returns the number of frames
func (l *Labels) Frames() int { return l.frames }

// Classes returns the number of pitch classes
func (l *Labels) Classes() int { return l.classes }

// Data returns the backing slice in (frame, class, state) order
func (l *Labels) Data() []float32 { return l.data }

func (l *Labels) index(frame, class int) int {
	return (frame*l.classes + class) * 2
}

// At returns the cell for frame and pitch class
func (l *Labels) At(frame, class int) [2]float32 {
	i := l.index(frame, class)
	return [2]float32{l.data[i], l.data[i+1]}
}

// Set writes a cell
func (l *Labels) Set(frame, class int, v [2]float32) {
	i := l.index(frame, class)
	l.data[i], l.data[i+1] = v[0], v[1]
}

// Mark writes a note's onset at startFrame and sustain on every frame in
// (startFrame, endFrame). Later notes overwrite earlier ones.
func (l *Labels) Mark(class, startFrame, endFrame int) {
	for f := startFrame + 1; f < endFrame; f++ {
		l.Set(f, class, Sustain)
	}
	l.Set(startFrame, class, Onset)
}

// Validate checks that every cell is one-hot.
func (l *Labels) Validate() error {
	if len(l.data) != l.frames*l.classes*2 {
		return fmt.Errorf("label tensor has %d values, want %d", len(l.data), l.frames*l.classes*2)
	}
	for i := 0; i < len(l.data); i += 2 {
		a, b := l.data[i], l.data[i+1]
		if !((a == 1 && b == 0) || (a == 0 && b == 1)) {
			cell := i / 2
			return fmt.Errorf("frame %d class %d is not one-hot: [%g %g]", cell/l.classes, cell%l.classes, a, b)
		}
	}
	return nil
}
