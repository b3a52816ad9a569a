// Package processor runs the pull-through pipeline that turns captured device-rate audio into
// gated Utterances: pop from the ring buffer, resample to 16 kHz, feed the VAD gate in fixed
// 512-sample chunks, and publish whatever the gate flushes.
package processor

import (
	"context"
	"time"

	"github.com/vitalscribe/core/internal/biomarker"
	"github.com/vitalscribe/core/internal/clock"
	"github.com/vitalscribe/core/internal/domain"
	"github.com/vitalscribe/core/internal/ringbuffer"
	"github.com/vitalscribe/core/internal/resample"
	"github.com/vitalscribe/core/internal/vad"
)

const emptySleep = 5 * time.Millisecond

// BiomarkerSink receives a copy of resampled audio for the biomarker worker's sliding-window
// classifier. Implementations are expected to apply their own backpressure policy (the worker's
// drop-oldest PushAudio satisfies this).
type BiomarkerSink interface {
	PushAudio(chunk biomarker.AudioChunk)
}

// Config parameterizes one Loop.
type Config struct {
	FetchSize       int // F: device-rate samples popped per iteration
	StatusIntervalMS int
}

// Loop is the processor's single-goroutine pipeline.
type Loop struct {
	cfg       Config
	ring      *ringbuffer.Buffer
	resampler *resample.Resampler
	gate      *vad.Gate
	clock     *clock.Audio

	out        chan domain.Utterance
	status     chan domain.Status
	biomarker  BiomarkerSink

	stopCh chan struct{}
	staging []float32
}

// New constructs a Loop. out should be buffered; its current length is reported as pending_count.
func New(cfg Config, ring *ringbuffer.Buffer, resampler *resample.Resampler, gate *vad.Gate, c *clock.Audio, out chan domain.Utterance, status chan domain.Status, biomarker BiomarkerSink) *Loop {
	return &Loop{
		cfg:       cfg,
		ring:      ring,
		resampler: resampler,
		gate:      gate,
		clock:     c,
		out:       out,
		status:    status,
		biomarker: biomarker,
		stopCh:    make(chan struct{}),
	}
}

// Stop requests the loop force-flush and exit on its next iteration.
func (l *Loop) Stop() {
	select {
	case <-l.stopCh:
	default:
		close(l.stopCh)
	}
}

// Run executes the per-iteration algorithm until Stop is called or ctx is done. It owns every
// piece of pipeline state and must only be called once, from its own goroutine.
func (l *Loop) Run(ctx context.Context) {
	lastStatus := time.Now()
	fetch := make([]float32, l.cfg.FetchSize)

	for {
		select {
		case <-l.stopCh:
			l.drainFinal()
			return
		case <-ctx.Done():
			return
		default:
		}

		if l.ring.Occupied() < l.cfg.FetchSize {
			time.Sleep(emptySleep)
			if time.Since(lastStatus) >= time.Duration(l.cfg.StatusIntervalMS)*time.Millisecond {
				l.emitStatus()
				lastStatus = time.Now()
			}
			continue
		}

		n := l.ring.PopSlice(fetch)
		block := fetch[:n]
		resampled, err := l.resampler.Process(padToBlockSize(block, l.resampler.BlockSize()))
		if err != nil {
			continue
		}
		l.staging = append(l.staging, resampled...)

		l.forwardToBiomarker(resampled)

		for len(l.staging) >= vad.ChunkSamples {
			chunk := l.staging[:vad.ChunkSamples]
			l.staging = l.staging[vad.ChunkSamples:]

			utterances, err := l.gate.ProcessChunk(chunk)
			if err != nil {
				continue
			}
			l.drain(utterances)
		}
	}
}

func (l *Loop) forwardToBiomarker(resampled []float32) {
	if l.biomarker == nil {
		return
	}
	cp := make([]float32, len(resampled))
	copy(cp, resampled)
	l.biomarker.PushAudio(biomarker.AudioChunk{Samples: cp, TMS: l.clock.MS()})
}

func (l *Loop) drain(utterances []domain.Utterance) {
	for _, u := range utterances {
		l.out <- u
	}
}

func (l *Loop) drainFinal() {
	if u, ok := l.gate.ForceFlush(); ok {
		l.out <- u
	}
}

func (l *Loop) emitStatus() {
	if l.status == nil {
		return
	}
	st := domain.Status{
		AudioClockMS:       l.clock.MS(),
		PendingCount:       len(l.out),
		IsSpeechActive:     l.gate.IsActive(),
		IsProcessingBehind: len(l.out) > 3,
	}
	select {
	case l.status <- st:
	default:
	}
}

// padToBlockSize right-pads a short final block with zeros so the resampler always sees its fixed
// block size; this only ever matters for a pop that returns fewer than FetchSize samples, which
// Run's Occupied() >= FetchSize check before each pop already prevents.
func padToBlockSize(block []float32, size int) []float32 {
	if len(block) == size {
		return block
	}
	padded := make([]float32, size)
	copy(padded, block)
	return padded
}
