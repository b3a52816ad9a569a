package diarization

import (
	"math"
	"strings"
	"testing"
)

func unit(dims int, hot int) []float32 {
	v := make([]float32, dims)
	v[hot] = 1
	return v
}

func testConfig() Config {
	return Config{
		SimilarityThreshold:     0.8,
		MaxSpeakers:             3,
		CentroidEMAAlpha:        0.2,
		MinEmbeddingsStable:     3,
		EnrolledPriorityEnabled: true,
	}
}

func TestAssignCreatesNewSpeakerOnFirstEmbedding(t *testing.T) {
	c := New(testConfig())
	a := c.Assign(unit(4, 0), 0)
	if !strings.HasPrefix(a.SpeakerID, "Speaker ") {
		t.Fatalf("speaker id = %q, want Speaker N label", a.SpeakerID)
	}
	if a.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0 for a brand new centroid", a.Confidence)
	}
}

func TestAssignReusesCentroidForSimilarEmbedding(t *testing.T) {
	c := New(testConfig())
	first := c.Assign(unit(4, 0), 0)
	second := c.Assign(unit(4, 0), 100)
	if first.SpeakerID != second.SpeakerID {
		t.Fatalf("expected identical embeddings to map to the same speaker, got %q and %q", first.SpeakerID, second.SpeakerID)
	}
	if second.Confidence < 0.99 {
		t.Fatalf("confidence = %v, want ~1 for an identical embedding", second.Confidence)
	}
}

func TestAssignCreatesDistinctSpeakersForOrthogonalEmbeddings(t *testing.T) {
	c := New(testConfig())
	a := c.Assign(unit(4, 0), 0)
	b := c.Assign(unit(4, 1), 0)
	if a.SpeakerID == b.SpeakerID {
		t.Fatalf("expected orthogonal embeddings to produce distinct speakers")
	}
}

func TestAssignMergesIntoBestMatchOnceMaxSpeakersReached(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSpeakers = 1
	c := New(cfg)
	first := c.Assign(unit(4, 0), 0)
	second := c.Assign(unit(4, 1), 0) // orthogonal, would normally mint a new speaker
	if first.SpeakerID != second.SpeakerID {
		t.Fatalf("expected bounded-speaker merge once MaxSpeakers is reached, got %q and %q", first.SpeakerID, second.SpeakerID)
	}
}

func TestResetClearsAutoCentroidsButKeepsEnrolled(t *testing.T) {
	c := New(testConfig())
	c.LoadEnrolled([]EnrolledProfile{{Name: "Dr. Smith", Embedding: unit(4, 2)}})
	c.Assign(unit(4, 0), 0)
	if c.SpeakerCount() != 2 {
		t.Fatalf("speaker count = %d, want 2 before reset", c.SpeakerCount())
	}
	c.Reset()
	if c.SpeakerCount() != 1 {
		t.Fatalf("speaker count = %d, want 1 after reset (enrolled only)", c.SpeakerCount())
	}
}

func TestEnrolledPriorityOverridesCloserAutoCentroid(t *testing.T) {
	cfg := testConfig()
	cfg.SimilarityThreshold = 0.9
	c := New(cfg)
	c.LoadEnrolled([]EnrolledProfile{{Name: "Dr. Smith", Embedding: unit(4, 0)}})
	// 40° from the enrolled centroid (cosine ~0.77, below threshold): mints an auto speaker.
	auto := c.Assign(angled(40), 0)
	if auto.SpeakerID == "Dr. Smith" {
		t.Fatalf("speaker id = %q, want a new auto speaker for the 40° embedding", auto.SpeakerID)
	}
	// 22° from the enrolled centroid (cosine ~0.93) but only 18° from the auto one (cosine ~0.95).
	a := c.Assign(angled(22), 100)
	if a.SpeakerID != "Dr. Smith" {
		t.Fatalf("speaker id = %q, want enrolled identity to win", a.SpeakerID)
	}
}

// angled returns a 4-dim unit vector deg degrees from unit(4, 0) in the plane of dims 0 and 1.
func angled(deg float64) []float32 {
	r := deg * math.Pi / 180
	return []float32{float32(math.Cos(r)), float32(math.Sin(r)), 0, 0}
}
