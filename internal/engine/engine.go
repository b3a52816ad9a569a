// Package engine wires the audio capture, VAD, diarization, biomarker, and transcriber
// collaborators into one session.Controller and exposes the result as a server.SessionManager.
// It is the one place in the module that owns every long-lived native resource (the capture
// device, both ONNX Runtime sessions, the gRPC transcriber connection) and is responsible for
// closing them in the right order.
package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/vitalscribe/core/internal/biomarker"
	"github.com/vitalscribe/core/internal/capture"
	"github.com/vitalscribe/core/internal/clock"
	"github.com/vitalscribe/core/internal/config"
	"github.com/vitalscribe/core/internal/coreerr"
	"github.com/vitalscribe/core/internal/diarization"
	"github.com/vitalscribe/core/internal/domain"
	"github.com/vitalscribe/core/internal/mel"
	"github.com/vitalscribe/core/internal/onnxrt"
	"github.com/vitalscribe/core/internal/processor"
	"github.com/vitalscribe/core/internal/resample"
	"github.com/vitalscribe/core/internal/ringbuffer"
	"github.com/vitalscribe/core/internal/server"
	"github.com/vitalscribe/core/internal/session"
	"github.com/vitalscribe/core/internal/trace"
	"github.com/vitalscribe/core/internal/transcriber"
	"github.com/vitalscribe/core/internal/transcript"
	"github.com/vitalscribe/core/internal/vad"
)

const ringBufferSeconds = 30.0
const utteranceChannelDepth = 8
const statusChannelDepth = 4

// Engine owns every collaborator a recording session needs and replays them into a fresh
// session.Controller each time Start is called, since a Controller is bound for life to the one
// utterance channel its processor.Loop closes on Stop.
type Engine struct {
	cfg config.Config

	malgoCtx *malgo.AllocatedContext
	devices  []capture.Device
	capturer *capture.Capturer
	ring     *ringbuffer.Buffer
	resamp   *resample.Resampler

	vadPredictor *vad.ONNXPredictor
	filterBank   *mel.FilterBank
	embedder     *mel.Embedder
	clusterer    *diarization.Clusterer

	biomarkerClassifier *biomarker.ONNXClassifier
	biomarkerWorker     *biomarker.Worker

	bridge    *transcriber.Bridge
	assembler *transcript.Assembler

	mu         sync.Mutex
	controller *session.Controller
	utterances chan domain.Utterance
	sessStatus chan domain.Status
	cancel     context.CancelFunc
	loopDone   chan struct{}

	statusMu   sync.Mutex
	lastStatus domain.Status

	// segmentUpdates is a single process-lifetime channel the server's broadcast goroutine reads
	// once at startup; each session's Controller gets its own channel, so a forwarder goroutine
	// relays into this one for as long as that session runs.
	segmentUpdates chan domain.Segment
}

// New assembles every collaborator from cfg and binds the selected capture device. The returned
// Engine is idle; call Run once to start its background goroutines, then Start/Stop to drive
// recording sessions.
func New(cfg config.Config) (*Engine, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, coreerr.Wrap(err, coreerr.AudioDevice, "engine: init audio backend")
	}

	devices, err := capture.ListDevices(malgoCtx)
	if err != nil {
		malgoCtx.Uninit()
		return nil, err
	}
	dev, err := capture.SelectDevice(devices, capture.Config{
		PreferredDeviceName: cfg.Audio.PreferredDeviceName,
		ExcludedDeviceNames: cfg.Audio.ExcludedDeviceNames,
	})
	if err != nil {
		malgoCtx.Uninit()
		return nil, err
	}

	ring := ringbuffer.NewForDeviceRate(cfg.Audio.SampleRate, ringBufferSeconds)
	capturer, err := capture.New(malgoCtx, dev, uint32(cfg.Audio.SampleRate), 1, ring)
	if err != nil {
		malgoCtx.Uninit()
		return nil, err
	}

	vadModel, err := os.ReadFile(cfg.VAD.ModelPath)
	if err != nil {
		return nil, coreerr.Wrapf(err, coreerr.ModelLoad, "engine: read vad model %q", cfg.VAD.ModelPath)
	}
	vadPredictor, err := vad.NewONNXPredictor(cfg.VAD.ONNXLibPath, vadModel)
	if err != nil {
		return nil, err
	}

	embedder, err := mel.NewEmbedder(cfg.VAD.ONNXLibPath, cfg.Diarization.EmbeddingModelPath, cfg.Diarization.EmbeddingDim)
	if err != nil {
		return nil, err
	}

	clusterer := diarization.New(diarization.Config{
		SimilarityThreshold:     float32(cfg.Diarization.SimilarityThreshold),
		MaxSpeakers:             cfg.Diarization.MaxSpeakers,
		CentroidEMAAlpha:        cfg.Diarization.CentroidEMAAlpha,
		MinEmbeddingsStable:     cfg.Diarization.MinEmbeddingsStable,
		EnrolledPriorityEnabled: cfg.Diarization.EnrolledPriorityEnabled,
	})
	if cfg.Diarization.ProfilesPath != "" {
		f, err := os.Open(cfg.Diarization.ProfilesPath)
		if err != nil {
			return nil, coreerr.Wrapf(err, coreerr.InvalidInput, "engine: open profiles %q", cfg.Diarization.ProfilesPath)
		}
		profiles, err := diarization.LoadProfiles(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		clusterer.LoadEnrolled(profiles)
	}

	var biomarkerClassifier *biomarker.ONNXClassifier
	var biomarkerWorker *biomarker.Worker
	if cfg.Biomarker.Enabled {
		classIndex := make(map[domain.EventKind]int, len(cfg.Biomarker.EventClassIndices))
		numClasses := 0
		for kind, idx := range cfg.Biomarker.EventClassIndices {
			classIndex[domain.EventKind(kind)] = idx
			if idx+1 > numClasses {
				numClasses = idx + 1
			}
		}
		eventModel, err := os.ReadFile(cfg.Biomarker.EventModelPath)
		if err != nil {
			return nil, coreerr.Wrapf(err, coreerr.ModelLoad, "engine: read biomarker model %q", cfg.Biomarker.EventModelPath)
		}
		biomarkerClassifier, err = biomarker.NewONNXClassifier(cfg.VAD.ONNXLibPath, eventModel, numClasses)
		if err != nil {
			return nil, err
		}
		biomarkerWorker = biomarker.NewWorker(biomarker.Config{
			SampleRate: cfg.Audio.SampleRate,
			Events: biomarker.EventConfig{
				ClassIndex: classIndex,
				Threshold:  float32(cfg.Biomarker.EventClassThreshold),
			},
		}, biomarkerClassifier)
	}

	bridge, err := transcriber.Dial(transcriberConfig(cfg.Transcriber))
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:                 cfg,
		malgoCtx:            malgoCtx,
		devices:             devices,
		capturer:            capturer,
		ring:                ring,
		resamp:              resample.New(cfg.Audio.SampleRate, 16000, cfg.Audio.FetchSize),
		vadPredictor:        vadPredictor,
		filterBank:          mel.NewFilterBank(16000),
		embedder:            embedder,
		clusterer:           clusterer,
		biomarkerClassifier: biomarkerClassifier,
		biomarkerWorker:     biomarkerWorker,
		bridge:              bridge,
		assembler:           transcript.New(),
		segmentUpdates:      make(chan domain.Segment, 64),
	}, nil
}

func transcriberConfig(t config.TranscriberConfig) transcriber.Config {
	c := transcriber.DefaultConfig(t.Addr)
	c.DialTimeout = time.Duration(t.DialTimeoutMS) * time.Millisecond
	c.CallTimeout = time.Duration(t.CallTimeoutMS) * time.Millisecond
	c.RetryConfig.MaxRetries = t.MaxRetries
	c.BreakerConfig.Threshold = t.BreakerThreshold
	c.BreakerConfig.ResetTimeout = time.Duration(t.BreakerResetTimeoutMS) * time.Millisecond
	return c
}

// Run starts the biomarker worker's background goroutine for the process lifetime. It blocks
// until ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	if e.biomarkerWorker != nil {
		e.biomarkerWorker.Run(ctx)
	} else {
		<-ctx.Done()
	}
}

// Close tears down every native resource the Engine owns. Call after Run's context is canceled.
func (e *Engine) Close() error {
	e.capturer.Stop()
	e.malgoCtx.Uninit()
	e.vadPredictor.Close()
	e.embedder.Close()
	if e.biomarkerClassifier != nil {
		e.biomarkerClassifier.Close()
	}
	if err := onnxrt.Destroy(); err != nil {
		trace.Logger(context.Background()).Warn("engine: destroy onnx runtime environment", "error", err)
	}
	return e.bridge.Close()
}

// Coughs, Biomarkers, and Metrics expose the biomarker worker's output channels for the control
// surface's broadcast, or nil if biomarker scoring is disabled.
func (e *Engine) Coughs() <-chan domain.CoughEvent {
	if e.biomarkerWorker == nil {
		return nil
	}
	return e.biomarkerWorker.Events()
}

func (e *Engine) Biomarkers() <-chan domain.VocalBiomarkers {
	if e.biomarkerWorker == nil {
		return nil
	}
	return e.biomarkerWorker.Biomarkers()
}

func (e *Engine) Metrics() <-chan domain.SessionMetrics {
	if e.biomarkerWorker == nil {
		return nil
	}
	return e.biomarkerWorker.Metrics()
}

// ListDevices implements server.DeviceLister.
func (e *Engine) ListDevices() ([]server.Device, error) {
	out := make([]server.Device, 0, len(e.devices))
	for i, d := range e.devices {
		out = append(out, server.Device{ID: fmt.Sprintf("%d", i), Name: d.Name})
	}
	return out, nil
}

// Start implements server.SessionManager. It builds a fresh Controller bound to a new
// processor.Loop, arms the capture device, and drives the FSM from Idle through Recording.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return coreerr.New(coreerr.InvalidTransition, "engine: a recording session is already active")
	}

	audioClock := &clock.Audio{}
	gate := vad.New(vad.Config{
		Threshold:           float32(e.cfg.VAD.Threshold),
		PreRollSamples:      msToSamples(e.cfg.VAD.PreRollMS),
		SilenceToFlush:      msToSamples(e.cfg.VAD.SilenceToFlushMS),
		MaxUtteranceSamples: e.cfg.VAD.MaxUtteranceSeconds * 16000,
		MinSpeechSamples:    msToSamples(e.cfg.VAD.MinSpeechMS),
	}, e.vadPredictor, audioClock, nil)

	e.clusterer.Reset()
	e.resamp.Reset()
	if err := e.vadPredictor.Reset(); err != nil {
		return err
	}

	utterances := make(chan domain.Utterance, utteranceChannelDepth)
	statusCh := make(chan domain.Status, statusChannelDepth)

	var sink processor.BiomarkerSink
	if e.biomarkerWorker != nil {
		sink = e.biomarkerWorker
	}

	loop := processor.New(processor.Config{
		FetchSize:        e.cfg.Audio.FetchSize,
		StatusIntervalMS: e.cfg.Service.StatusIntervalMS,
	}, e.ring, e.resamp, gate, audioClock, utterances, statusCh, sink)

	deps := session.Deps{
		Transcriber: e.bridge,
		Assembler:   e.assembler,
	}
	if e.embedder != nil {
		deps.Assigner = &speakerAssigner{filterBank: e.filterBank, embedder: e.embedder, clusterer: e.clusterer}
	}
	if e.biomarkerWorker != nil {
		deps.Biomarker = &biomarkerForwarder{worker: e.biomarkerWorker}
	}

	controller := session.NewController(loop, utterances, deps)

	sessionCtx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go e.drainStatus(statusCh)
	go e.forwardSegments(sessionCtx, controller.SegmentUpdates())
	go func() {
		loop.Run(sessionCtx)
		close(loopDone)
	}()

	if err := e.capturer.Start(); err != nil {
		cancel()
		return err
	}
	if err := controller.StartPreparing(); err != nil {
		cancel()
		return err
	}
	if err := controller.StartRecording(sessionCtx); err != nil {
		cancel()
		return err
	}

	e.controller = controller
	e.utterances = utterances
	e.sessStatus = statusCh
	e.cancel = cancel
	e.loopDone = loopDone
	return nil
}

// Stop implements server.SessionManager. It disarms capture, force-flushes the processor loop,
// closes the utterance channel so the Controller's consumer goroutine can finish, and moves the
// FSM to Completed.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel == nil {
		return coreerr.New(coreerr.InvalidTransition, "engine: no recording session is active")
	}

	if err := e.capturer.Stop(); err != nil {
		trace.Logger(context.Background()).Warn("engine: stop capture device", "error", err)
	}
	if err := e.controller.StartStopping(); err != nil {
		return err
	}
	<-e.loopDone
	close(e.utterances)
	close(e.sessStatus)
	err := e.controller.AwaitCompletion()

	e.cancel()
	e.cancel = nil
	e.loopDone = nil
	e.sessStatus = nil
	return err
}

// Reset implements server.SessionManager, clearing the last session's transcript and returning
// the FSM to Idle regardless of its current state.
func (e *Engine) Reset() {
	e.mu.Lock()
	c := e.controller
	e.mu.Unlock()
	if c != nil {
		c.Reset()
	}
}

// Status implements server.SessionManager, combining the FSM state with the most recent
// processor loop status sample.
func (e *Engine) Status() domain.Status {
	e.mu.Lock()
	c := e.controller
	e.mu.Unlock()

	e.statusMu.Lock()
	st := e.lastStatus
	e.statusMu.Unlock()

	if c == nil {
		return st
	}
	return c.Status(st)
}

// SegmentUpdates implements server.SessionManager. The returned channel spans the Engine's
// whole lifetime; it carries segments from whichever session is currently recording.
func (e *Engine) SegmentUpdates() <-chan domain.Segment {
	return e.segmentUpdates
}

func (e *Engine) drainStatus(statusCh <-chan domain.Status) {
	for st := range statusCh {
		e.statusMu.Lock()
		e.lastStatus = st
		e.statusMu.Unlock()
	}
}

// forwardSegments relays one session's Controller-scoped segment channel into the Engine's
// process-lifetime channel until the session ends.
func (e *Engine) forwardSegments(ctx context.Context, src <-chan domain.Segment) {
	for {
		select {
		case <-ctx.Done():
			return
		case seg := <-src:
			select {
			case e.segmentUpdates <- seg:
			default:
			}
		}
	}
}

func msToSamples(ms int) int {
	return ms * 16000 / 1000
}
