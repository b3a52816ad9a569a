// Package domain holds the plain data types that flow between the audio core's stages.
package domain

import "time"

// Utterance is a contiguous, VAD-bounded span of 16 kHz mono audio ready for recognition.
type Utterance struct {
	ID       string
	Samples  []float32
	StartMS  int64
	EndMS    int64
}

// Duration returns the utterance length implied by its sample count.
func (u Utterance) Duration() time.Duration {
	return time.Duration(len(u.Samples)) * time.Second / 16000
}

// Role is an enrolled speaker's clinical role.
type Role string

const (
	RolePhysician Role = "physician"
	RolePA        Role = "pa"
	RoleRN        Role = "rn"
	RoleMA        Role = "ma"
	RolePatient   Role = "patient"
	RoleOther     Role = "other"
)

// VocalBiomarkers carries the per-utterance prosodic metrics emitted by the biomarker worker.
type VocalBiomarkers struct {
	UtteranceID      string
	Vitality         *float64 // F0 standard deviation across voiced frames, Hz
	F0Mean           *float64
	VoicedFrameRatio float64
	Stability        *float64 // cepstral peak prominence, dB
}

// EventKind enumerates the sidecar classifier's classes of interest.
type EventKind string

const (
	EventCough          EventKind = "cough"
	EventThroatClearing EventKind = "throat_clearing"
	EventSneeze         EventKind = "sneeze"
)

// CoughEvent is a single detected non-speech vocal event.
type CoughEvent struct {
	Kind        EventKind
	Probability float32
	TimestampMS int64
	DurationMS  int64
}

// Segment is the recognizer's output for one utterance, in session order.
type Segment struct {
	ID                string
	StartMS           int64
	EndMS             int64
	Text              string
	SpeakerID         string
	SpeakerConfidence float32
	Biomarkers        *VocalBiomarkers
	AvgLogProb        *float64
	NoSpeechProb      *float64
}

// SpeakerTotals is the running per-speaker aggregate maintained by the session aggregator.
type SpeakerTotals struct {
	SpeakerID      string
	TalkTimeMS     int64
	TurnCount      int
	CoughCount     int
	VitalityMean   float64
	vitalityCount  int
	StabilityMean  float64
	stabilityCount int
}

// AddVitality folds one vitality sample into the running mean.
func (t *SpeakerTotals) AddVitality(v float64) {
	t.vitalityCount++
	t.VitalityMean += (v - t.VitalityMean) / float64(t.vitalityCount)
}

// AddStability folds one stability sample into the running mean.
func (t *SpeakerTotals) AddStability(v float64) {
	t.stabilityCount++
	t.StabilityMean += (v - t.StabilityMean) / float64(t.stabilityCount)
}

// SessionMetrics is the aggregator's periodic snapshot, keyed by speaker id.
type SessionMetrics struct {
	Speakers   map[string]*SpeakerTotals
	CoughTotal int
}

// SegmentInfo is forwarded to the biomarker worker after a Segment is produced, so the
// aggregator can attribute talk time without owning transcription itself.
type SegmentInfo struct {
	SpeakerID string
	StartMS   int64
	EndMS     int64
}

// Status is the control-surface snapshot of session progress.
type Status struct {
	State               string `json:"state"`
	AudioClockMS        int64  `json:"audio_clock_ms"`
	PendingCount        int    `json:"pending_count"`
	IsSpeechActive      bool   `json:"is_speech_active"`
	IsProcessingBehind  bool   `json:"is_processing_behind"`
	ErrorMessage        string `json:"error_message,omitempty"`
}
