package mel

import (
	"math"
	"testing"
)

func sineWave(freqHz float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freqHz * float64(i) / float64(sampleRate)))
	}
	return out
}

func TestComputeRejectsEmptyInput(t *testing.T) {
	fb := NewFilterBank(16000)
	if _, err := fb.Compute(nil); err == nil {
		t.Fatalf("expected an error for empty input")
	}
}

func TestComputeRejectsInputShorterThanWindow(t *testing.T) {
	fb := NewFilterBank(16000)
	if _, err := fb.Compute(make([]float32, winLen-1)); err == nil {
		t.Fatalf("expected an error for input shorter than the analysis window")
	}
}

func TestComputeProducesExpectedFrameCount(t *testing.T) {
	fb := NewFilterBank(16000)
	samples := sineWave(440, 16000, 16000) // 1 second
	frames, err := fb.Compute(samples)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := (len(samples)-winLen)/hopLen + 1
	if len(frames) != want {
		t.Fatalf("frame count = %d, want %d", len(frames), want)
	}
	for _, f := range frames {
		if len(f) != nMels {
			t.Fatalf("frame band count = %d, want %d", len(f), nMels)
		}
	}
}

func TestEnergyIsHigherForLouderSignal(t *testing.T) {
	fb := NewFilterBank(16000)
	quiet := make([]float32, 16000)
	for i := range quiet {
		quiet[i] = float32(0.01 * math.Sin(2*math.Pi*200*float64(i)/16000))
	}
	loud := sineWave(200, 16000, 16000)

	fQuiet, err := fb.Compute(quiet)
	if err != nil {
		t.Fatalf("Compute quiet: %v", err)
	}
	fLoud, err := fb.Compute(loud)
	if err != nil {
		t.Fatalf("Compute loud: %v", err)
	}

	if Energy(fLoud) <= Energy(fQuiet) {
		t.Fatalf("expected louder signal to have higher mel energy: loud=%v quiet=%v", Energy(fLoud), Energy(fQuiet))
	}
}

func TestL2NormalizeProducesUnitVector(t *testing.T) {
	v := []float32{3, 4}
	n := L2Normalize(v)
	var sumSq float64
	for _, x := range n {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(sumSq-1) > 1e-6 {
		t.Fatalf("normalized vector sum of squares = %v, want 1", sumSq)
	}
}
