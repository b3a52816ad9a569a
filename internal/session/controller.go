package session

import (
	"context"
	"strings"
	"sync"

	"github.com/vitalscribe/core/internal/coreerr"
	"github.com/vitalscribe/core/internal/domain"
	"github.com/vitalscribe/core/internal/processor"
	"github.com/vitalscribe/core/internal/syncx"
	"github.com/vitalscribe/core/internal/trace"
)

const pendingBehindThreshold = 3
const trailingContextWords = 50

// Transcriber is the external collaborator that turns one Utterance into a Segment. The core
// never assumes realtime; slow implementations simply grow pending_count.
type Transcriber interface {
	Transcribe(ctx context.Context, u domain.Utterance, trailingContext string) (domain.Segment, error)
}

// SpeakerAssigner embeds an utterance and resolves it to a speaker identity. A nil SpeakerAssigner
// disables diarization: every segment is published with its speaker fields left empty.
type SpeakerAssigner interface {
	Embed(samples []float32) ([]float32, error)
	Assign(embedding []float32, tMS int64) (speakerID string, confidence float32)
}

// BiomarkerForwarder relays finished work to the biomarker worker. A nil BiomarkerForwarder
// disables biomarker scoring entirely.
type BiomarkerForwarder interface {
	ForwardUtterance(ctx context.Context, u domain.Utterance, speakerID string)
	ForwardSegmentInfo(ctx context.Context, info domain.SegmentInfo)
}

// TranscriptAssembler normalizes one segment's text before it's published (casing, spacing). A
// nil TranscriptAssembler publishes segment text unchanged.
type TranscriptAssembler interface {
	Assemble(prev []domain.Segment, seg domain.Segment) domain.Segment
}

type controllerState struct {
	fsmState     State
	segments     []domain.Segment
	errorMessage string
	pendingCount int
}

// Controller owns the session lifecycle FSM and drives a processor.Loop's utterance output
// through transcription, diarization, biomarker scoring, and transcript assembly.
type Controller struct {
	transcriber Transcriber
	assigner    SpeakerAssigner
	biomarker   BiomarkerForwarder
	assembler   TranscriptAssembler

	loop *processor.Loop
	in   <-chan domain.Utterance

	state *syncx.RWGuard[controllerState]

	segmentUpdates chan domain.Segment

	wg sync.WaitGroup
}

// Deps bundles a Controller's collaborators. Any field may be nil; see each interface's doc for
// the degraded behavior that results.
type Deps struct {
	Transcriber Transcriber
	Assigner    SpeakerAssigner
	Biomarker   BiomarkerForwarder
	Assembler   TranscriptAssembler
}

// NewController constructs an idle Controller bound to loop's utterance output channel.
func NewController(loop *processor.Loop, utterances <-chan domain.Utterance, deps Deps) *Controller {
	return &Controller{
		transcriber: deps.Transcriber,
		assigner:    deps.Assigner,
		biomarker:   deps.Biomarker,
		assembler:   deps.Assembler,
		loop:           loop,
		in:             utterances,
		state:          syncx.NewGuard(controllerState{fsmState: StateIdle}),
		segmentUpdates: make(chan domain.Segment, 16),
	}
}

// SegmentUpdates returns a channel of newly published segments, in order, for the control
// surface's transcript broadcast. Never closed; readers should stop pulling at Completed/Error.
func (c *Controller) SegmentUpdates() <-chan domain.Segment {
	return c.segmentUpdates
}

// State returns the current FSM state.
func (c *Controller) State() State {
	return c.state.Get().fsmState
}

// Segments returns a snapshot of the session's ordered, assembled transcript.
func (c *Controller) Segments() []domain.Segment {
	return append([]domain.Segment(nil), c.state.Get().segments...)
}

// transition applies one FSM event, returning a *coreerr.Error on an illegal transition.
func (c *Controller) transition(event Event) error {
	res := c.state.Update(func(s *controllerState) any {
		next, err := Transition(s.fsmState, event)
		if err != nil {
			return err
		}
		s.fsmState = next
		return nil
	})
	if res == nil {
		return nil
	}
	return coreerr.Wrap(res.(error), coreerr.InvalidTransition, "session: transition rejected")
}

// StartPreparing moves Idle → Preparing, legal only from Idle.
func (c *Controller) StartPreparing() error {
	return c.transition(EventStartPreparing)
}

// StartRecording moves Preparing → Recording and launches the consumer goroutine that drains the
// processor loop's utterances.
func (c *Controller) StartRecording(ctx context.Context) error {
	if err := c.transition(EventStartRecording); err != nil {
		return err
	}
	c.wg.Add(1)
	go c.consume(ctx)
	return nil
}

// StartStopping moves Recording → Stopping and signals the processor loop to force-flush.
func (c *Controller) StartStopping() error {
	if err := c.transition(EventStartStopping); err != nil {
		return err
	}
	c.loop.Stop()
	return nil
}

// AwaitCompletion blocks until the consumer goroutine drains the processor loop's closed output,
// then moves Stopping → Completed.
func (c *Controller) AwaitCompletion() error {
	c.wg.Wait()
	return c.transition(EventComplete)
}

// SetError moves any non-terminal state → Error, recording msg for Status.
func (c *Controller) SetError(msg string) {
	c.state.Write(func(s *controllerState) { s.errorMessage = msg })
	_ = c.transition(EventSetError)
}

// Reset clears segments, error, and pending count and returns to Idle, legal from any state.
func (c *Controller) Reset() {
	c.state.Write(func(s *controllerState) {
		s.segments = nil
		s.errorMessage = ""
		s.pendingCount = 0
	})
	_ = c.transition(EventReset)
}

// Status reports the published session status, combining FSM state with pipeline backpressure.
func (c *Controller) Status(loopStatus domain.Status) domain.Status {
	s := c.state.Get()
	st := loopStatus
	st.State = string(s.fsmState)
	// Utterances still queued on the loop's channel plus the one being transcribed now.
	st.PendingCount = loopStatus.PendingCount + s.pendingCount
	st.IsProcessingBehind = st.PendingCount > pendingBehindThreshold
	st.ErrorMessage = s.errorMessage
	return st
}

// consume drains utterances from the processor loop, running each through the transcriber,
// diarization, biomarker forwarding, and transcript assembly pipeline described for the
// Transcriber interface.
func (c *Controller) consume(ctx context.Context) {
	defer c.wg.Done()

	for u := range c.in {
		c.state.Write(func(s *controllerState) { s.pendingCount++ })
		c.processUtterance(ctx, u)
		c.state.Write(func(s *controllerState) { s.pendingCount-- })
	}
}

func (c *Controller) processUtterance(ctx context.Context, u domain.Utterance) {
	ctx, span := trace.StartSpan(ctx, "session_process_utterance")
	defer span.End()
	span.SetAttr("utterance_id", u.ID)

	if c.transcriber == nil {
		return
	}

	seg, err := c.transcriber.Transcribe(ctx, u, c.trailingContext())
	if err != nil {
		span.SetAttr("error", err.Error())
		return
	}

	var speakerID string
	var confidence float32
	if c.assigner != nil {
		if embedding, embErr := c.assigner.Embed(u.Samples); embErr == nil {
			speakerID, confidence = c.assigner.Assign(embedding, u.StartMS)
		}
	}
	if speakerID != "" {
		seg.SpeakerID = speakerID
		seg.SpeakerConfidence = confidence
	}
	seg.StartMS, seg.EndMS = u.StartMS, u.EndMS

	if c.biomarker != nil {
		c.biomarker.ForwardUtterance(ctx, u, speakerID)
		c.biomarker.ForwardSegmentInfo(ctx, domain.SegmentInfo{SpeakerID: speakerID, StartMS: u.StartMS, EndMS: u.EndMS})
	}

	c.state.Write(func(s *controllerState) {
		if c.assembler != nil {
			seg = c.assembler.Assemble(s.segments, seg)
		}
		s.segments = append(s.segments, seg)
	})

	select {
	case c.segmentUpdates <- seg:
	default:
	}
}

// trailingContext returns roughly the last trailingContextWords words of the most recent
// segment's text, used to prime the transcriber with a little continuity.
func (c *Controller) trailingContext() string {
	segs := c.state.Get().segments
	if len(segs) == 0 {
		return ""
	}
	words := strings.Fields(segs[len(segs)-1].Text)
	if len(words) > trailingContextWords {
		words = words[len(words)-trailingContextWords:]
	}
	return strings.Join(words, " ")
}
