// Package vad implements the voice-activity-gated utterance builder: a speech probability
// predictor feeding a pre-roll/silence/max-length state machine that accumulates raw 16 kHz
// audio into discrete Utterances.
package vad

import (
	"github.com/vitalscribe/core/internal/clock"
	"github.com/vitalscribe/core/internal/coreerr"
	"github.com/vitalscribe/core/internal/domain"
)

// ChunkSamples is the fixed VAD frame size: 512 samples at 16 kHz (32 ms).
const ChunkSamples = 512

const sampleRateHz = 16000

// Predictor produces a single speech probability for one fixed-size 16 kHz chunk.
type Predictor interface {
	Predict(chunk []float32) (float32, error)
	Reset() error
}

// Config parameterizes the gate's timing thresholds, all expressed as sample counts derived
// from the millisecond values a caller configures.
type Config struct {
	Threshold           float32
	PreRollSamples      int
	SilenceToFlush      int
	MaxUtteranceSamples int
	MinSpeechSamples    int
}

// Gate is the VAD state machine described in the component design: it owns the pre-roll buffer,
// the in-progress speech buffer, and the audio clock used to stamp emitted utterances.
type Gate struct {
	cfg       Config
	predictor Predictor
	clock     *clock.Audio

	active             bool
	silenceSamples     int
	speechBuffer       []float32
	speechStartSamples uint64

	preRoll []float32

	nextID func() string
}

// New constructs a Gate. nextID supplies unique utterance ids (e.g. a ULID/uuid generator); if
// nil a simple monotonic counter is used.
func New(cfg Config, predictor Predictor, c *clock.Audio, nextID func() string) *Gate {
	if nextID == nil {
		var n int
		nextID = func() string {
			n++
			return itoa(n)
		}
	}
	return &Gate{cfg: cfg, predictor: predictor, clock: c, nextID: nextID}
}

// ProcessChunk advances the audio clock by ChunkSamples, classifies the chunk, and returns any
// utterance flushed as a result (at most one per call).
func (g *Gate) ProcessChunk(chunk []float32) ([]domain.Utterance, error) {
	if len(chunk) != ChunkSamples {
		return nil, coreerr.Newf(coreerr.InvalidInput, "vad: chunk length %d, want %d", len(chunk), ChunkSamples)
	}

	g.clock.Advance(ChunkSamples)
	chunkStart := g.clock.ChunkStart(ChunkSamples)

	var flushed []domain.Utterance

	if g.active && len(g.speechBuffer) >= g.cfg.MaxUtteranceSamples {
		if u, ok := g.flush(g.cfg.MinSpeechSamples); ok {
			flushed = append(flushed, u)
		}
		g.restartSpeech(chunkStart)
	}

	prob, err := g.predictor.Predict(chunk)
	if err != nil {
		return flushed, coreerr.Wrap(err, coreerr.Inference, "vad prediction failed")
	}
	isSpeech := prob >= g.cfg.Threshold

	switch {
	case !g.active && isSpeech:
		g.restartSpeech(chunkStart)
		g.speechBuffer = append(g.speechBuffer, chunk...)
		g.silenceSamples = 0
	case g.active && isSpeech:
		g.speechBuffer = append(g.speechBuffer, chunk...)
		g.silenceSamples = 0
	case g.active && !isSpeech:
		g.speechBuffer = append(g.speechBuffer, chunk...)
		g.silenceSamples += len(chunk)
		if g.silenceSamples >= g.cfg.SilenceToFlush {
			if u, ok := g.flush(g.cfg.MinSpeechSamples); ok {
				flushed = append(flushed, u)
			}
		}
	default:
		// (false, false): idle, nothing to do to the speech buffer.
	}

	g.appendPreRoll(chunk)

	return flushed, nil
}

// ForceFlush drains any in-progress speech regardless of its length, used on session stop so
// trailing speech is never lost.
func (g *Gate) ForceFlush() (domain.Utterance, bool) {
	return g.flush(0)
}

// IsActive reports whether the gate currently believes speech is in progress.
func (g *Gate) IsActive() bool {
	return g.active
}

func (g *Gate) restartSpeech(chunkStart uint64) {
	start := int64(chunkStart) - int64(g.cfg.PreRollSamples)
	if start < 0 {
		start = 0
	}
	g.active = true
	g.silenceSamples = 0
	g.speechStartSamples = uint64(start)
	g.speechBuffer = g.speechBuffer[:0]
	g.speechBuffer = append(g.speechBuffer, g.preRoll...)
}

func (g *Gate) flush(minSpeechSamples int) (domain.Utterance, bool) {
	if !g.active {
		return domain.Utterance{}, false
	}
	buf := g.speechBuffer
	g.active = false
	g.silenceSamples = 0
	g.speechBuffer = nil

	if len(buf) < minSpeechSamples {
		return domain.Utterance{}, false
	}
	if len(buf) == 0 {
		return domain.Utterance{}, false
	}

	startMS := int64(g.speechStartSamples) * 1000 / sampleRateHz
	endMS := startMS + int64(len(buf))*1000/sampleRateHz

	samples := make([]float32, len(buf))
	copy(samples, buf)

	return domain.Utterance{
		ID:      g.nextID(),
		Samples: samples,
		StartMS: startMS,
		EndMS:   endMS,
	}, true
}

func (g *Gate) appendPreRoll(chunk []float32) {
	g.preRoll = append(g.preRoll, chunk...)
	if over := len(g.preRoll) - g.cfg.PreRollSamples; over > 0 {
		g.preRoll = g.preRoll[over:]
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
