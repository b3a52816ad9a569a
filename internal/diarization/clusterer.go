// Package diarization assigns speaker identities to utterance embeddings via an online cosine-
// similarity clusterer with EMA centroid updates and enrolled-speaker priors.
package diarization

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/vitalscribe/core/internal/syncx"
)

const stableCountSentinel = math.MaxInt32

// Config parameterizes the clustering policy.
type Config struct {
	SimilarityThreshold   float32
	MaxSpeakers           int
	CentroidEMAAlpha      float64
	MinEmbeddingsStable   int
	EnrolledPriorityEnabled bool
}

type centroid struct {
	id       string
	vector   []float64
	count    int
	enrolled bool
	lastSeen int64
}

type clusterState struct {
	centroids      []*centroid
	nextSpeakerNum int
}

// Clusterer is the online speaker clusterer. Safe for concurrent use: a Processor goroutine calls
// Assign while the control surface may concurrently call SpeakerCount for status reporting.
type Clusterer struct {
	cfg   Config
	guard *syncx.RWGuard[clusterState]
}

// New constructs an empty Clusterer.
func New(cfg Config) *Clusterer {
	return &Clusterer{cfg: cfg, guard: syncx.NewGuard(clusterState{})}
}

// Assignment is the result of clustering one embedding.
type Assignment struct {
	SpeakerID  string
	Confidence float32
}

// Assign implements the exact assignment algorithm: normalize, find the best matching centroid
// (respecting enrolled-speaker priority), update via EMA on a hit, merge into the best match once
// MaxSpeakers is reached, or mint a new speaker.
func (c *Clusterer) Assign(embedding []float32, tMS int64) Assignment {
	vec := toFloat64Normalized(embedding)

	result := c.guard.Update(func(s *clusterState) any {
		bestIdx, bestSim := bestMatch(s.centroids, vec)

		if c.cfg.EnrolledPriorityEnabled {
			if idx, sim := bestEnrolledMatch(s.centroids, vec, c.cfg.SimilarityThreshold); idx >= 0 {
				bestIdx, bestSim = idx, sim
			}
		}

		switch {
		case bestIdx >= 0 && bestSim >= c.cfg.SimilarityThreshold:
			c.updateCentroid(s.centroids[bestIdx], vec, tMS)
			return Assignment{SpeakerID: s.centroids[bestIdx].id, Confidence: float32(bestSim)}

		case bestIdx >= 0 && len(s.centroids) >= c.cfg.MaxSpeakers:
			c.updateCentroid(s.centroids[bestIdx], vec, tMS)
			return Assignment{SpeakerID: s.centroids[bestIdx].id, Confidence: float32(bestSim)}

		default:
			s.nextSpeakerNum++
			nc := &centroid{
				id:       speakerLabel(s.nextSpeakerNum),
				vector:   append([]float64(nil), vec...),
				count:    1,
				lastSeen: tMS,
			}
			s.centroids = append(s.centroids, nc)
			conf := float32(math.Max(bestSim, 0))
			return Assignment{SpeakerID: nc.id, Confidence: conf}
		}
	})

	return result.(Assignment)
}

// Reset clears every auto-detected centroid; enrolled priors (and the enrolled identity's
// immunity to drift) persist across the reset.
func (c *Clusterer) Reset() {
	c.guard.Write(func(s *clusterState) {
		kept := s.centroids[:0]
		for _, cen := range s.centroids {
			if cen.enrolled {
				kept = append(kept, cen)
			}
		}
		s.centroids = kept
		s.nextSpeakerNum = 0
	})
}

// EnrolledProfile is a persisted, schema-versioned speaker identity installed as a fixed centroid.
type EnrolledProfile struct {
	Name      string
	Embedding []float32
}

// LoadEnrolled installs each profile as a fixed-identity centroid, count set to the stability
// sentinel so it never drifts under the EMA update rule.
func (c *Clusterer) LoadEnrolled(profiles []EnrolledProfile) {
	c.guard.Write(func(s *clusterState) {
		for _, p := range profiles {
			s.centroids = append(s.centroids, &centroid{
				id:       p.Name,
				vector:   toFloat64Normalized(p.Embedding),
				count:    stableCountSentinel,
				enrolled: true,
			})
		}
	})
}

// SpeakerCount reports the number of known speakers, enrolled and auto-detected.
func (c *Clusterer) SpeakerCount() int {
	return len(c.guard.Get().centroids)
}

func (c *Clusterer) updateCentroid(cen *centroid, vec []float64, tMS int64) {
	if cen.enrolled {
		cen.lastSeen = tMS
		return
	}
	alpha := c.cfg.CentroidEMAAlpha
	if cen.count < c.cfg.MinEmbeddingsStable {
		alpha = 1 / float64(cen.count+1)
	}
	next := make([]float64, len(cen.vector))
	for i := range next {
		next[i] = (1-alpha)*cen.vector[i] + alpha*vec[i]
	}
	normalize(next)
	cen.vector = next
	if cen.count != stableCountSentinel {
		cen.count++
	}
	cen.lastSeen = tMS
}

func bestMatch(centroids []*centroid, vec []float64) (idx int, sim float64) {
	idx = -1
	sim = -2
	for i, cen := range centroids {
		s := floats.Dot(cen.vector, vec)
		if s > sim {
			sim = s
			idx = i
		}
	}
	return idx, sim
}

func bestEnrolledMatch(centroids []*centroid, vec []float64, threshold float32) (idx int, sim float64) {
	idx = -1
	sim = -2
	for i, cen := range centroids {
		if !cen.enrolled {
			continue
		}
		s := floats.Dot(cen.vector, vec)
		if s >= float64(threshold) && s > sim {
			sim = s
			idx = i
		}
	}
	return idx, sim
}

func countAuto(centroids []*centroid) int {
	n := 0
	for _, cen := range centroids {
		if !cen.enrolled {
			n++
		}
	}
	return n
}

func speakerLabel(n int) string {
	return "Speaker " + itoa(n)
}

func toFloat64Normalized(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	normalize(out)
	return out
}

func normalize(v []float64) {
	norm := floats.Norm(v, 2)
	if norm < 1e-12 {
		return
	}
	floats.Scale(1/norm, v)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
