package biomarker

import (
	"math"
	"testing"
)

func TestStabilityRejectsEmptyInput(t *testing.T) {
	if _, ok := Stability(nil, 16000); ok {
		t.Fatalf("expected Stability to reject empty input")
	}
}

func TestStabilityIsHigherForPeriodicThanNoise(t *testing.T) {
	periodic := sine(180, 16000, 4096)

	rngState := uint32(12345)
	noise := make([]float32, 4096)
	for i := range noise {
		rngState = rngState*1664525 + 1013904223
		noise[i] = float32(int32(rngState))/float32(math.MaxInt32)*0.5
	}

	pCPP, pOK := Stability(periodic, 16000)
	nCPP, nOK := Stability(noise, 16000)

	if !pOK {
		t.Fatalf("expected a periodic tone to produce a reliable CPP value")
	}
	if nOK && nCPP >= pCPP {
		t.Fatalf("expected periodic CPP (%v) to exceed noise CPP (%v)", pCPP, nCPP)
	}
}
