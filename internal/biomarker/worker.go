package biomarker

import (
	"context"
	"sync"

	"github.com/vitalscribe/core/internal/domain"
	"github.com/vitalscribe/core/internal/trace"
)

// AudioChunk is the continuous 16 kHz stream fed to the sliding-window event classifier,
// pre-VAD. The worker accepts backpressure on this channel by dropping the oldest pending
// chunk rather than blocking the capture path.
type AudioChunk struct {
	Samples []float32
	TMS     int64
}

// UtteranceMsg carries a finished, post-VAD utterance for vitality/stability scoring. Delivery is
// lossless: the sender blocks rather than drop a completed utterance.
type UtteranceMsg struct {
	Utterance domain.Utterance
	SpeakerID string
}

// SegmentInfoMsg reports a finished transcript segment's speaker/time span for the session
// aggregator. Delivery is lossless, like UtteranceMsg.
type SegmentInfoMsg struct {
	Info domain.SegmentInfo
}

const (
	audioChannelDepth   = 4
	controlChannelDepth = 32
)

// Config bundles the classifier thresholds and sample rate the worker runs with.
type Config struct {
	SampleRate int
	Events     EventConfig
}

// Worker runs the sliding-window cough/throat-clearing/sneeze classifier, the per-utterance
// vitality and stability scorers, and the per-speaker session aggregator, all on one goroutine so
// none of its internal state needs synchronization.
type Worker struct {
	cfg        Config
	classifier EventClassifier

	audioCh   chan AudioChunk
	controlCh chan any // UtteranceMsg | SegmentInfoMsg
	shutdown  chan struct{}
	done      chan struct{}

	events      chan domain.CoughEvent
	biomarkers  chan domain.VocalBiomarkers
	metrics     chan domain.SessionMetrics

	fifo       []float32
	consumedN  int64
	aggregator *aggregator

	closeOnce sync.Once
}

// NewWorker constructs a Worker. Call Run in its own goroutine, then feed it via PushAudio,
// PushUtterance, and PushSegmentInfo; call Shutdown to drain and stop.
func NewWorker(cfg Config, classifier EventClassifier) *Worker {
	return &Worker{
		cfg:        cfg,
		classifier: classifier,
		audioCh:    make(chan AudioChunk, audioChannelDepth),
		controlCh:  make(chan any, controlChannelDepth),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		events:     make(chan domain.CoughEvent, controlChannelDepth),
		biomarkers: make(chan domain.VocalBiomarkers, controlChannelDepth),
		metrics:    make(chan domain.SessionMetrics, controlChannelDepth),
		aggregator: newAggregator(),
	}
}

// Events returns the channel of detected cough/throat-clearing/sneeze events.
func (w *Worker) Events() <-chan domain.CoughEvent { return w.events }

// Biomarkers returns the channel of per-utterance vitality/stability results.
func (w *Worker) Biomarkers() <-chan domain.VocalBiomarkers { return w.biomarkers }

// Metrics returns the channel of session-aggregate snapshots, emitted after each SegmentInfo.
func (w *Worker) Metrics() <-chan domain.SessionMetrics { return w.metrics }

// PushAudio enqueues a chunk of the continuous stream, dropping the oldest queued chunk if the
// worker is behind rather than blocking the caller.
func (w *Worker) PushAudio(chunk AudioChunk) {
	select {
	case w.audioCh <- chunk:
	default:
		select {
		case <-w.audioCh:
		default:
		}
		select {
		case w.audioCh <- chunk:
		default:
		}
	}
}

// PushUtterance enqueues a finished utterance for scoring. Blocks if the control channel is full;
// utterances are never dropped.
func (w *Worker) PushUtterance(ctx context.Context, msg UtteranceMsg) {
	select {
	case w.controlCh <- msg:
	case <-ctx.Done():
	}
}

// PushSegmentInfo enqueues a finished segment for aggregation. Blocks like PushUtterance.
func (w *Worker) PushSegmentInfo(ctx context.Context, msg SegmentInfoMsg) {
	select {
	case w.controlCh <- msg:
	case <-ctx.Done():
	}
}

// Shutdown requests the worker drain and exit, then blocks until it has produced its final
// session snapshot.
func (w *Worker) Shutdown() {
	w.closeOnce.Do(func() { close(w.shutdown) })
	<-w.done
}

// Run is the worker's single goroutine loop. It owns every piece of worker state and must not be
// called more than once.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		w.metrics <- w.aggregator.snapshot()
		close(w.events)
		close(w.biomarkers)
		close(w.metrics)
	}()

	for {
		select {
		case <-w.shutdown:
			w.drainPending()
			return
		case <-ctx.Done():
			return
		case chunk := <-w.audioCh:
			w.handleAudio(ctx, chunk)
		case msg := <-w.controlCh:
			w.handleControl(ctx, msg)
		}
	}
}

func (w *Worker) drainPending() {
	for {
		select {
		case msg := <-w.controlCh:
			w.handleControl(context.Background(), msg)
		default:
			return
		}
	}
}

func (w *Worker) handleControl(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case UtteranceMsg:
		w.scoreUtterance(ctx, m)
	case SegmentInfoMsg:
		w.aggregator.recordSegment(m.Info)
		w.metrics <- w.aggregator.snapshot()
	}
}

func (w *Worker) handleAudio(ctx context.Context, chunk AudioChunk) {
	w.fifo = append(w.fifo, chunk.Samples...)

	for len(w.fifo) >= WindowSamples {
		startOffset := w.consumedN
		window := make([]float32, WindowSamples)
		copy(window, w.fifo[:WindowSamples])
		w.fifo = w.fifo[HopSamples:]
		w.consumedN += HopSamples

		probs, err := w.classifier.Predict(window)
		if err != nil {
			_, span := trace.StartSpan(ctx, "biomarker_classify")
			span.SetAttr("error", err.Error())
			span.End()
			continue
		}

		tsMS := chunk.TMS - int64(len(chunk.Samples))*1000/int64(w.cfg.SampleRate) + startOffset*1000/int64(w.cfg.SampleRate)
		for _, kind := range w.cfg.Events.classify(probs) {
			ev := domain.CoughEvent{
				Kind:        kind,
				Probability: probFor(w.cfg.Events, probs, kind),
				TimestampMS: tsMS,
				DurationMS:  1000,
			}
			if kind == domain.EventCough {
				w.aggregator.recordCough("")
			}
			w.events <- ev
		}
	}
}

func (w *Worker) scoreUtterance(ctx context.Context, m UtteranceMsg) {
	_, span := trace.StartSpan(ctx, "biomarker_score_utterance")
	defer span.End()

	bio := domain.VocalBiomarkers{UtteranceID: m.Utterance.ID}

	if vr, ok := Vitality(m.Utterance.Samples, w.cfg.SampleRate); ok {
		v := vr.Std
		bio.Vitality = &v
		mean := vr.Mean
		bio.F0Mean = &mean
		bio.VoicedFrameRatio = vr.VoicedFrameRatio
		w.aggregator.recordVitality(m.SpeakerID, v)
	}

	if cpp, ok := Stability(m.Utterance.Samples, w.cfg.SampleRate); ok {
		bio.Stability = &cpp
		w.aggregator.recordStability(m.SpeakerID, cpp)
	}

	span.SetAttr("utterance_id", m.Utterance.ID)
	w.biomarkers <- bio
}
