package transcriber

import (
	"google.golang.org/protobuf/types/known/timestamppb"
)

// transcribeRequest is the wire shape of one Transcribe RPC, carried as JSON via jsonCodec.
type transcribeRequest struct {
	UtteranceID     string               `json:"utterance_id"`
	Samples         []float32            `json:"samples"`
	SampleRate      int32                `json:"sample_rate"`
	StartedAt       *timestamppb.Timestamp `json:"started_at"`
	TrailingContext string               `json:"trailing_context,omitempty"`
}

// transcribeResponse is the wire shape of a Transcribe RPC's result.
type transcribeResponse struct {
	Text         string   `json:"text"`
	AvgLogProb   *float64 `json:"avg_log_prob,omitempty"`
	NoSpeechProb *float64 `json:"no_speech_prob,omitempty"`
}
