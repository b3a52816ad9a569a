package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate enforces hard invariants (returning a fatal error for the first one violated) and
// collects non-fatal Warnings for values that are legal but likely misconfigured.
func Validate(cfg Config) ([]Warning, error) {
	if err := validateFatal(cfg); err != nil {
		return nil, err
	}

	var warnings []Warning
	warnings = append(warnings, warnAudio(cfg.Audio)...)
	warnings = append(warnings, warnVAD(cfg.VAD)...)
	warnings = append(warnings, warnDiarization(cfg.Diarization)...)
	warnings = append(warnings, warnBiomarker(cfg.Biomarker)...)
	warnings = append(warnings, warnTranscriber(cfg.Transcriber)...)
	return warnings, nil
}

func validateFatal(cfg Config) error {
	if strings.TrimSpace(cfg.Service.HTTPAddr) == "" {
		return fmt.Errorf("service.http_addr must not be empty")
	}
	if cfg.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.FetchSize <= 0 {
		return fmt.Errorf("audio.fetch_size must be > 0")
	}
	if strings.TrimSpace(cfg.VAD.ModelPath) == "" {
		return fmt.Errorf("vad.model_path must not be empty")
	}
	if cfg.VAD.Threshold < 0 || cfg.VAD.Threshold > 1 {
		return fmt.Errorf("vad.threshold must be in [0,1], got %v", cfg.VAD.Threshold)
	}
	if cfg.VAD.MaxUtteranceSeconds <= 0 {
		return fmt.Errorf("vad.max_utterance_seconds must be > 0")
	}
	if cfg.Diarization.SimilarityThreshold < 0 || cfg.Diarization.SimilarityThreshold > 1 {
		return fmt.Errorf("diarization.similarity_threshold must be in [0,1], got %v", cfg.Diarization.SimilarityThreshold)
	}
	if cfg.Diarization.MaxSpeakers <= 0 {
		return fmt.Errorf("diarization.max_speakers must be > 0")
	}
	if cfg.Diarization.CentroidEMAAlpha < 0 || cfg.Diarization.CentroidEMAAlpha > 1 {
		return fmt.Errorf("diarization.centroid_ema_alpha must be in [0,1], got %v", cfg.Diarization.CentroidEMAAlpha)
	}
	if cfg.Biomarker.Enabled && (cfg.Biomarker.EventClassThreshold < 0 || cfg.Biomarker.EventClassThreshold > 1) {
		return fmt.Errorf("biomarker.event_class_threshold must be in [0,1], got %v", cfg.Biomarker.EventClassThreshold)
	}
	if strings.TrimSpace(cfg.Transcriber.Addr) == "" {
		return fmt.Errorf("transcriber.addr must not be empty")
	}
	if cfg.Transcriber.MaxRetries < 0 {
		return fmt.Errorf("transcriber.max_retries must be >= 0")
	}
	return nil
}

func warnAudio(a AudioConfig) []Warning {
	var ws []Warning
	if a.SampleRate != 16000 {
		ws = append(ws, Warning{Field: "audio.sample_rate", Message: "the VAD and embedding models were trained at 16kHz; the resampler will run continuously at other rates"})
	}
	return ws
}

func warnVAD(v VADConfig) []Warning {
	var ws []Warning
	if v.SilenceToFlushMS < v.MinSpeechMS {
		ws = append(ws, Warning{Field: "vad.silence_to_flush_ms", Message: "shorter than vad.min_speech_ms; most utterances will be dropped by the debounce rule"})
	}
	if v.ONNXLibPath == "" {
		ws = append(ws, Warning{Field: "vad.onnx_lib_path", Message: "empty; relying on the platform default search path for the ONNX Runtime shared library"})
	}
	return ws
}

func warnDiarization(d DiarizationConfig) []Warning {
	var ws []Warning
	if d.ProfilesPath == "" {
		ws = append(ws, Warning{Field: "diarization.profiles_path", Message: "no enrolled speaker profiles configured; all speakers will be auto-labeled"})
	}
	if d.MinEmbeddingsStable <= 0 {
		ws = append(ws, Warning{Field: "diarization.min_embeddings_stable", Message: "<= 0; centroids use the stable EMA alpha from their very first assignment"})
	}
	return ws
}

func warnBiomarker(b BiomarkerConfig) []Warning {
	var ws []Warning
	if b.Enabled && b.EventModelPath == "" {
		ws = append(ws, Warning{Field: "biomarker.event_model_path", Message: "biomarker scoring is enabled but no event classifier model is configured; cough/throat/sneeze detection will be unavailable"})
	}
	seen := make(map[int]string, len(b.EventClassIndices))
	for kind, idx := range b.EventClassIndices {
		if other, ok := seen[idx]; ok {
			ws = append(ws, Warning{Field: "biomarker.event_class_indices", Message: kind + " and " + other + " share class index " + strconv.Itoa(idx) + "; those classes will always co-occur"})
			continue
		}
		seen[idx] = kind
	}
	return ws
}

func warnTranscriber(t TranscriberConfig) []Warning {
	var ws []Warning
	if t.CallTimeoutMS > 0 && t.DialTimeoutMS > t.CallTimeoutMS {
		ws = append(ws, Warning{Field: "transcriber.dial_timeout_ms", Message: "longer than call_timeout_ms, which is unusual"})
	}
	return ws
}
