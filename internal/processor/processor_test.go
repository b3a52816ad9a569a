package processor

import (
	"context"
	"testing"
	"time"

	"github.com/vitalscribe/core/internal/clock"
	"github.com/vitalscribe/core/internal/domain"
	"github.com/vitalscribe/core/internal/resample"
	"github.com/vitalscribe/core/internal/ringbuffer"
	"github.com/vitalscribe/core/internal/vad"
)

type alwaysSpeechPredictor struct{}

func (alwaysSpeechPredictor) Predict(chunk []float32) (float32, error) { return 0.9, nil }
func (alwaysSpeechPredictor) Reset() error                              { return nil }

func testGate() *vad.Gate {
	cfg := vad.Config{
		Threshold:           0.5,
		PreRollSamples:      512,
		SilenceToFlush:      1536,
		MaxUtteranceSamples: 16000 * 30,
		MinSpeechSamples:    512,
	}
	return vad.New(cfg, alwaysSpeechPredictor{}, &clock.Audio{}, nil)
}

func TestLoopPopsResamplesAndGatesAudio(t *testing.T) {
	const fetch = 512
	ring := ringbuffer.New(fetch * 10)
	resampler := resample.New(16000, 16000, fetch)
	gate := testGate()
	c := &clock.Audio{}
	out := make(chan domain.Utterance, 8)
	status := make(chan domain.Status, 8)

	loop := New(Config{FetchSize: fetch, StatusIntervalMS: 50}, ring, resampler, gate, c, out, status, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	block := make([]float32, fetch)
	for i := range block {
		block[i] = 0.5
	}
	for i := 0; i < 4; i++ {
		ring.TryPushSlice(block)
	}

	// Run checks for Stop before each pop, so let it pop every queued block first.
	deadline := time.Now().Add(2 * time.Second)
	for ring.Occupied() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	loop.Stop()

	select {
	case u := <-out:
		if len(u.Samples) == 0 {
			t.Fatalf("expected a non-empty utterance from force flush")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a flushed utterance")
	}
}

func TestLoopEmitsStatusWhenRingIsEmpty(t *testing.T) {
	const fetch = 512
	ring := ringbuffer.New(fetch * 2)
	resampler := resample.New(16000, 16000, fetch)
	gate := testGate()
	c := &clock.Audio{}
	out := make(chan domain.Utterance, 4)
	status := make(chan domain.Status, 4)

	loop := New(Config{FetchSize: fetch, StatusIntervalMS: 10}, ring, resampler, gate, c, out, status, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	defer cancel()

	select {
	case <-status:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a status emission on an empty ring")
	}

	loop.Stop()
}
