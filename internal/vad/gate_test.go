package vad

import (
	"testing"

	"github.com/vitalscribe/core/internal/clock"
)

// fakePredictor ignores the chunk contents and replays a scripted sequence of speech probabilities.
type fakePredictor struct {
	script []float32 // one probability per call, cycles if shorter than the call count
	calls  int
}

func (f *fakePredictor) Predict(chunk []float32) (float32, error) {
	p := f.script[f.calls%len(f.script)]
	f.calls++
	return p, nil
}

func (f *fakePredictor) Reset() error { return nil }

func chunkOf(v float32) []float32 {
	c := make([]float32, ChunkSamples)
	for i := range c {
		c[i] = v
	}
	return c
}

func testConfig() Config {
	return Config{
		Threshold:           0.5,
		PreRollSamples:      1024, // 2 chunks
		SilenceToFlush:      1536, // 3 chunks
		MaxUtteranceSamples: 16000 * 10,
		MinSpeechSamples:    512,
	}
}

func TestGateEmitsUtteranceAfterSilenceTail(t *testing.T) {
	pred := &fakePredictor{script: []float32{0.9, 0.9, 0.9, 0.1, 0.1, 0.1}}
	g := New(testConfig(), pred, &clock.Audio{}, nil)

	var emitted int
	for i := 0; i < 6; i++ {
		us, err := g.ProcessChunk(chunkOf(0))
		if err != nil {
			t.Fatalf("ProcessChunk: %v", err)
		}
		emitted += len(us)
	}
	if emitted != 1 {
		t.Fatalf("emitted = %d, want 1", emitted)
	}
}

func TestGateIncludesPreRollOnSpeechStart(t *testing.T) {
	pred := &fakePredictor{script: []float32{0.1, 0.1, 0.9, 0.9, 0.1, 0.1, 0.1}}
	g := New(testConfig(), pred, &clock.Audio{}, nil)

	var last []float32
	for i := 0; i < 7; i++ {
		us, err := g.ProcessChunk(chunkOf(0))
		if err != nil {
			t.Fatalf("ProcessChunk: %v", err)
		}
		for _, u := range us {
			last = u.Samples
		}
	}
	if last == nil {
		t.Fatalf("expected an utterance to be emitted")
	}
	// 2 pre-roll chunks + 2 speech chunks + 3 trailing silence chunks folded into the buffer.
	want := ChunkSamples * 7
	if len(last) != want {
		t.Fatalf("utterance length = %d, want %d (pre-roll missing or misplaced)", len(last), want)
	}
}

func TestGateDropsUtteranceShorterThanMinSpeech(t *testing.T) {
	cfg := testConfig()
	cfg.MinSpeechSamples = ChunkSamples * 100 // unreachable within the test
	pred := &fakePredictor{script: []float32{0.9, 0.1, 0.1, 0.1}}
	g := New(cfg, pred, &clock.Audio{}, nil)

	var emitted int
	for i := 0; i < 4; i++ {
		us, err := g.ProcessChunk(chunkOf(0))
		if err != nil {
			t.Fatalf("ProcessChunk: %v", err)
		}
		emitted += len(us)
	}
	if emitted != 0 {
		t.Fatalf("emitted = %d, want 0 (below min speech length)", emitted)
	}
}

func TestGateForceSplitsAtMaxLength(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUtteranceSamples = ChunkSamples * 3
	pred := &fakePredictor{script: []float32{0.9}}
	g := New(cfg, pred, &clock.Audio{}, nil)

	var emitted int
	for i := 0; i < 5; i++ {
		us, err := g.ProcessChunk(chunkOf(0))
		if err != nil {
			t.Fatalf("ProcessChunk: %v", err)
		}
		emitted += len(us)
	}
	if emitted == 0 {
		t.Fatalf("expected a forced split once max utterance length was reached")
	}
	if !g.IsActive() {
		t.Fatalf("expected gate to remain active after a forced split while speech continues")
	}
}

func TestGateForceFlushDrainsInProgressSpeechOnStop(t *testing.T) {
	pred := &fakePredictor{script: []float32{0.9}}
	g := New(testConfig(), pred, &clock.Audio{}, nil)

	if _, err := g.ProcessChunk(chunkOf(0)); err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	u, ok := g.ForceFlush()
	if !ok {
		t.Fatalf("expected ForceFlush to drain in-progress speech regardless of length")
	}
	if len(u.Samples) == 0 {
		t.Fatalf("expected non-empty utterance from ForceFlush")
	}
	if g.IsActive() {
		t.Fatalf("expected gate to be inactive after ForceFlush")
	}
}

func TestGateRejectsWrongChunkLength(t *testing.T) {
	pred := &fakePredictor{script: []float32{0.1}}
	g := New(testConfig(), pred, &clock.Audio{}, nil)

	if _, err := g.ProcessChunk(make([]float32, ChunkSamples-1)); err == nil {
		t.Fatalf("expected an error for a malformed chunk length")
	}
}

func TestGateProcessChunkAdvancesClockByOneChunk(t *testing.T) {
	pred := &fakePredictor{script: []float32{0.9}}
	c := &clock.Audio{}
	g := New(testConfig(), pred, c, nil)

	if _, err := g.ProcessChunk(chunkOf(0)); err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	if c.Samples() != ChunkSamples {
		t.Fatalf("clock samples = %d, want %d", c.Samples(), ChunkSamples)
	}
}
