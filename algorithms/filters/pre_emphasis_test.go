package filters

import (
	"math"
	"testing"
)

func TestPreEmphasisBuffer(t *testing.T) {
	pe, err := NewPreEmphasis(0.95)
	if err != nil {
		t.Fatal(err)
	}

	got := pe.ProcessBuffer([]float64{1, 2, 3, 0})
	want := []float64{1, 2 - 0.95, 3 - 1.9, -2.85}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("y[%d] = %g, want %g", i, got[i], want[i])
		}
	}

	if out := pe.ProcessBuffer(nil); len(out) != 0 {
		t.Errorf("empty input gave %v", out)
	}
}

func TestPreEmphasisStreamingMatchesBuffer(t *testing.T) {
	pe, err := NewPreEmphasis(0.9)
	if err != nil {
		t.Fatal(err)
	}

	input := []float64{0.5, -1, 0.25, 4, 2}
	block := pe.ProcessBuffer(input)

	pe.Reset()
	for i, x := range input {
		if y := pe.Process(x); math.Abs(y-block[i]) > 1e-12 {
			t.Errorf("sample %d: streaming %g, block %g", i, y, block[i])
		}
	}
}

func TestPreEmphasisCoefficientRange(t *testing.T) {
	for _, c := range []float64{-0.1, 1, 1.5} {
		if _, err := NewPreEmphasis(c); err == nil {
			t.Errorf("NewPreEmphasis(%g) should fail", c)
		}
	}
	if _, err := NewPreEmphasis(0); err != nil {
		t.Errorf("NewPreEmphasis(0): %v", err)
	}
}
