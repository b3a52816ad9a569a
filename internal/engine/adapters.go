package engine

import (
	"context"

	"github.com/vitalscribe/core/internal/biomarker"
	"github.com/vitalscribe/core/internal/diarization"
	"github.com/vitalscribe/core/internal/domain"
	"github.com/vitalscribe/core/internal/mel"
)

// speakerAssigner adapts the mel filterbank, embedder, and diarization clusterer to
// session.SpeakerAssigner, whose Assign returns the (id, confidence) tuple the clusterer's
// Assignment struct carries as two fields.
type speakerAssigner struct {
	filterBank *mel.FilterBank
	embedder   *mel.Embedder
	clusterer  *diarization.Clusterer
}

func (s *speakerAssigner) Embed(samples []float32) ([]float32, error) {
	frames, err := s.filterBank.Compute(samples)
	if err != nil {
		return nil, err
	}
	raw, err := s.embedder.Extract(frames)
	if err != nil {
		return nil, err
	}
	return mel.L2Normalize(raw), nil
}

func (s *speakerAssigner) Assign(embedding []float32, tMS int64) (string, float32) {
	a := s.clusterer.Assign(embedding, tMS)
	return a.SpeakerID, a.Confidence
}

// biomarkerForwarder adapts a biomarker.Worker to session.BiomarkerForwarder.
type biomarkerForwarder struct {
	worker *biomarker.Worker
}

func (f *biomarkerForwarder) ForwardUtterance(ctx context.Context, u domain.Utterance, speakerID string) {
	f.worker.PushUtterance(ctx, biomarker.UtteranceMsg{Utterance: u, SpeakerID: speakerID})
}

func (f *biomarkerForwarder) ForwardSegmentInfo(ctx context.Context, info domain.SegmentInfo) {
	f.worker.PushSegmentInfo(ctx, biomarker.SegmentInfoMsg{Info: info})
}
