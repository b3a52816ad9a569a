package resample

import "testing"

func TestProcessRejectsWrongBlockSize(t *testing.T) {
	r := New(48000, 16000, 480)
	_, err := r.Process(make([]float32, 10))
	if err != ErrInvalidInput {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestProcessProducesExpectedLength(t *testing.T) {
	r := New(48000, 16000, 480)
	block := make([]float32, 480)
	for i := range block {
		block[i] = 0.1
	}
	out, err := r.Process(block)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != r.OutputLen() {
		t.Fatalf("len(out) = %d, want %d", len(out), r.OutputLen())
	}
}

func TestProcessUpsampling(t *testing.T) {
	r := New(8000, 16000, 160)
	block := make([]float32, 160)
	out, err := r.Process(block)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) <= 160 {
		t.Fatalf("expected upsampled output longer than input, got %d", len(out))
	}
}

func TestResetClearsCarryState(t *testing.T) {
	r := New(48000, 16000, 480)
	block := make([]float32, 480)
	for i := range block {
		block[i] = 0.5
	}
	if _, err := r.Process(block); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Reset()
	if len(r.prevTail) != 0 {
		t.Fatalf("expected prevTail cleared after Reset")
	}
}
