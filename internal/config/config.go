// Package config loads and validates the audio core's nested configuration tree from
// environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Load reads every field from its environment variable, falling back to documented defaults.
func Load() Config {
	return Config{
		Service: ServiceConfig{
			HTTPAddr:         getEnv("VS_HTTP_ADDR", ":8090"),
			WSReadLimitKB:    getEnvInt("VS_WS_READ_LIMIT_KB", 512),
			WSRateLimitHz:    getEnvFloat("VS_WS_RATE_LIMIT_HZ", 20.0),
			StatusIntervalMS: getEnvInt("VS_STATUS_INTERVAL_MS", 250),
		},
		Audio: AudioConfig{
			SampleRate:          getEnvInt("VS_AUDIO_SAMPLE_RATE", 16000),
			FetchSize:           getEnvInt("VS_AUDIO_FETCH_SIZE", 512),
			PreferredDeviceName: getEnv("VS_AUDIO_PREFERRED_DEVICE", ""),
			ExcludedDeviceNames: getEnvList("VS_AUDIO_EXCLUDED_DEVICES", nil),
		},
		VAD: VADConfig{
			ModelPath:           getEnv("VS_VAD_MODEL_PATH", "models/silero_vad.onnx"),
			ONNXLibPath:         getEnv("VS_ONNX_LIB_PATH", ""),
			Threshold:           getEnvFloat("VS_VAD_THRESHOLD", 0.5),
			PreRollMS:           getEnvInt("VS_VAD_PRE_ROLL_MS", 240),
			SilenceToFlushMS:    getEnvInt("VS_VAD_SILENCE_TO_FLUSH_MS", 700),
			MaxUtteranceSeconds: getEnvInt("VS_VAD_MAX_UTTERANCE_SECONDS", 30),
			MinSpeechMS:         getEnvInt("VS_VAD_MIN_SPEECH_MS", 250),
		},
		Diarization: DiarizationConfig{
			EmbeddingModelPath:      getEnv("VS_DIARIZATION_EMBEDDING_MODEL_PATH", "models/speaker_embedding.onnx"),
			EmbeddingDim:            getEnvInt("VS_DIARIZATION_EMBEDDING_DIM", 256),
			ProfilesPath:            getEnv("VS_DIARIZATION_PROFILES_PATH", ""),
			SimilarityThreshold:     getEnvFloat("VS_DIARIZATION_SIMILARITY_THRESHOLD", 0.75),
			MaxSpeakers:             getEnvInt("VS_DIARIZATION_MAX_SPEAKERS", 6),
			CentroidEMAAlpha:        getEnvFloat("VS_DIARIZATION_CENTROID_EMA_ALPHA", 0.1),
			MinEmbeddingsStable:     getEnvInt("VS_DIARIZATION_MIN_EMBEDDINGS_STABLE", 3),
			EnrolledPriorityEnabled: getEnvBool("VS_DIARIZATION_ENROLLED_PRIORITY", true),
		},
		Biomarker: BiomarkerConfig{
			Enabled:             getEnvBool("VS_BIOMARKER_ENABLED", true),
			EventModelPath:      getEnv("VS_BIOMARKER_EVENT_MODEL_PATH", "models/vocal_event_classifier.onnx"),
			EventClassThreshold: getEnvFloat("VS_BIOMARKER_EVENT_THRESHOLD", 0.6),
			EventClassIndices: map[string]int{
				"cough":           getEnvInt("VS_BIOMARKER_COUGH_CLASS_INDEX", 0),
				"throat_clearing": getEnvInt("VS_BIOMARKER_THROAT_CLASS_INDEX", 1),
				"sneeze":          getEnvInt("VS_BIOMARKER_SNEEZE_CLASS_INDEX", 2),
			},
		},
		Transcriber: TranscriberConfig{
			Addr:                  getEnv("VS_TRANSCRIBER_ADDR", "localhost:50061"),
			DialTimeoutMS:         getEnvInt("VS_TRANSCRIBER_DIAL_TIMEOUT_MS", 3000),
			CallTimeoutMS:         getEnvInt("VS_TRANSCRIBER_CALL_TIMEOUT_MS", 10000),
			BreakerThreshold:      getEnvInt("VS_TRANSCRIBER_BREAKER_THRESHOLD", 5),
			BreakerResetTimeoutMS: getEnvInt("VS_TRANSCRIBER_BREAKER_RESET_TIMEOUT_MS", 30000),
			MaxRetries:            getEnvInt("VS_TRANSCRIBER_MAX_RETRIES", 3),
		},
		Debug: DebugConfig{
			LogLevel:      getEnv("VS_LOG_LEVEL", "info"),
			SessionLogDir: getEnv("VS_SESSION_LOG_DIR", ""),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	return result
}
