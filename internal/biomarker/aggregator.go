package biomarker

import "github.com/vitalscribe/core/internal/domain"

// aggregator maintains per-speaker running totals across a session, snapshotted after each
// SegmentInfo message.
type aggregator struct {
	speakers   map[string]*domain.SpeakerTotals
	coughTotal int
}

func newAggregator() *aggregator {
	return &aggregator{speakers: make(map[string]*domain.SpeakerTotals)}
}

func (a *aggregator) totalsFor(speakerID string) *domain.SpeakerTotals {
	t, ok := a.speakers[speakerID]
	if !ok {
		t = &domain.SpeakerTotals{SpeakerID: speakerID}
		a.speakers[speakerID] = t
	}
	return t
}

func (a *aggregator) recordSegment(info domain.SegmentInfo) {
	if info.SpeakerID == "" {
		return
	}
	t := a.totalsFor(info.SpeakerID)
	t.TalkTimeMS += info.EndMS - info.StartMS
	t.TurnCount++
}

func (a *aggregator) recordCough(speakerID string) {
	a.coughTotal++
	if speakerID != "" {
		a.totalsFor(speakerID).CoughCount++
	}
}

func (a *aggregator) recordVitality(speakerID string, v float64) {
	if speakerID == "" {
		return
	}
	a.totalsFor(speakerID).AddVitality(v)
}

func (a *aggregator) recordStability(speakerID string, v float64) {
	if speakerID == "" {
		return
	}
	a.totalsFor(speakerID).AddStability(v)
}

func (a *aggregator) snapshot() domain.SessionMetrics {
	speakers := make(map[string]*domain.SpeakerTotals, len(a.speakers))
	for id, t := range a.speakers {
		cp := *t
		speakers[id] = &cp
	}
	return domain.SessionMetrics{Speakers: speakers, CoughTotal: a.coughTotal}
}
