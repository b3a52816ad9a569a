package config

// Config is the top-level, nested configuration tree for the audio core.
type Config struct {
	Service     ServiceConfig
	Audio       AudioConfig
	VAD         VADConfig
	Diarization DiarizationConfig
	Biomarker   BiomarkerConfig
	Transcriber TranscriberConfig
	Debug       DebugConfig
}

// ServiceConfig controls the control-surface HTTP/WebSocket listener.
type ServiceConfig struct {
	HTTPAddr        string
	WSReadLimitKB   int
	WSRateLimitHz   float64
	StatusIntervalMS int
}

// AudioConfig controls capture device selection and the processor's fetch cadence.
type AudioConfig struct {
	SampleRate          int
	FetchSize           int
	PreferredDeviceName string
	ExcludedDeviceNames []string
}

// VADConfig mirrors vad.Config plus the model artifact location.
type VADConfig struct {
	ModelPath           string
	ONNXLibPath         string
	Threshold           float64
	PreRollMS           int
	SilenceToFlushMS    int
	MaxUtteranceSeconds int
	MinSpeechMS         int
}

// DiarizationConfig mirrors diarization.Config plus model/profile artifact locations.
type DiarizationConfig struct {
	EmbeddingModelPath      string
	EmbeddingDim            int
	ProfilesPath            string
	SimilarityThreshold     float64
	MaxSpeakers             int
	CentroidEMAAlpha        float64
	MinEmbeddingsStable     int
	EnrolledPriorityEnabled bool
}

// BiomarkerConfig mirrors biomarker.Config plus the event classifier's artifact and class map.
type BiomarkerConfig struct {
	Enabled             bool
	EventModelPath      string
	EventClassThreshold float64
	// EventClassIndices maps each domain.EventKind's string form ("cough", "throat_clearing",
	// "sneeze") to its output index in the event classifier model, so the index mapping lives in
	// configuration rather than being hardcoded against a specific model's label ordering.
	EventClassIndices map[string]int
}

// TranscriberConfig controls the transcriber bridge's endpoint and resilience knobs.
type TranscriberConfig struct {
	Addr                string
	DialTimeoutMS       int
	CallTimeoutMS       int
	BreakerThreshold    int
	BreakerResetTimeoutMS int
	MaxRetries          int
}

// DebugConfig controls optional diagnostic sinks that have no bearing on session semantics.
type DebugConfig struct {
	LogLevel      string
	SessionLogDir string
}

// Warning is a non-fatal configuration concern surfaced by Validate.
type Warning struct {
	Field   string
	Message string
}
