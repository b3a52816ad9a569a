package engine

import (
	"testing"
	"time"

	"github.com/vitalscribe/core/internal/config"
)

func transcriberTestConfig() config.TranscriberConfig {
	return config.TranscriberConfig{
		Addr:                  "localhost:50061",
		DialTimeoutMS:         3000,
		CallTimeoutMS:         10000,
		BreakerThreshold:      7,
		BreakerResetTimeoutMS: 30000,
		MaxRetries:            4,
	}
}

func TestMsToSamplesConvertsAtSixteenKHz(t *testing.T) {
	if got := msToSamples(250); got != 4000 {
		t.Fatalf("msToSamples(250) = %d, want 4000", got)
	}
	if got := msToSamples(0); got != 0 {
		t.Fatalf("msToSamples(0) = %d, want 0", got)
	}
}

func TestTranscriberConfigAppliesMillisecondFields(t *testing.T) {
	cfg := transcriberConfig(transcriberTestConfig())
	if cfg.Addr != "localhost:50061" {
		t.Fatalf("addr = %q, want localhost:50061", cfg.Addr)
	}
	if cfg.RetryConfig.MaxRetries != 4 {
		t.Fatalf("max retries = %d, want 4", cfg.RetryConfig.MaxRetries)
	}
	if cfg.BreakerConfig.Threshold != 7 {
		t.Fatalf("breaker threshold = %d, want 7", cfg.BreakerConfig.Threshold)
	}
	if cfg.DialTimeout != 3*time.Second {
		t.Fatalf("dial timeout = %v, want 3s", cfg.DialTimeout)
	}
	if cfg.CallTimeout != 10*time.Second {
		t.Fatalf("call timeout = %v, want 10s", cfg.CallTimeout)
	}
	if cfg.BreakerConfig.ResetTimeout != 30*time.Second {
		t.Fatalf("breaker reset timeout = %v, want 30s", cfg.BreakerConfig.ResetTimeout)
	}
}
