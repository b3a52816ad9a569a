// Package resample performs fixed-block FFT resampling from an arbitrary device sample rate
// down (or up) to the core's internal 16 kHz mono rate.
package resample

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrInvalidInput is returned when Process is called with a block whose length does not match
// the configured block size.
var ErrInvalidInput = errors.New("resample: input block length does not match configured block size")

// Resampler converts fixed-size blocks of deviceRate-sampled audio to targetRate audio via an
// FFT frequency-domain resize. Each block is split into two sub-chunks, resampled independently,
// and stitched with a short crossfade against the tail of the previous call to avoid clicks at
// block boundaries.
type Resampler struct {
	deviceRate int
	targetRate int
	blockSize  int
	subLen     int
	subOutLen  int
	fadeLen    int

	fwd *fourier.FFT
	inv *fourier.FFT

	prevTail []float64
}

// New constructs a Resampler for fixed blockSize-sample inputs at deviceRate, producing
// approximately blockSize*targetRate/deviceRate samples at targetRate per call.
func New(deviceRate, targetRate, blockSize int) *Resampler {
	subLen := blockSize / 2
	if subLen < 1 {
		subLen = 1
	}
	subOutLen := int(math.Round(float64(subLen) * float64(targetRate) / float64(deviceRate)))
	if subOutLen < 1 {
		subOutLen = 1
	}
	fadeLen := subOutLen / 8
	if fadeLen > 16 {
		fadeLen = 16
	}

	return &Resampler{
		deviceRate: deviceRate,
		targetRate: targetRate,
		blockSize:  blockSize,
		subLen:     subLen,
		subOutLen:  subOutLen,
		fadeLen:    fadeLen,
		fwd:        fourier.NewFFT(subLen),
		inv:        fourier.NewFFT(subOutLen),
	}
}

// BlockSize returns the fixed input block length this Resampler was constructed for.
func (r *Resampler) BlockSize() int {
	return r.blockSize
}

// OutputLen returns the expected output length of one Process call.
func (r *Resampler) OutputLen() int {
	return 2 * r.subOutLen
}

// Process resamples one fixed-size block. block must have exactly BlockSize() samples.
func (r *Resampler) Process(block []float32) ([]float32, error) {
	if len(block) != r.blockSize {
		return nil, ErrInvalidInput
	}

	mid := r.blockSize - r.subLen
	a := r.resampleSub(block[:r.subLen])
	b := r.resampleSub(block[mid:])

	out := make([]float64, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)

	r.crossfadeWithPrevTail(out)
	r.storeTail(out)

	result := make([]float32, len(out))
	for i, v := range out {
		result[i] = float32(v)
	}
	return result, nil
}

// resampleSub resamples one sub-chunk via a frequency-domain resize: the forward FFT's
// coefficients are truncated (downsampling, which low-pass filters and anti-aliases) or
// zero-padded (upsampling) to the target bin count before the inverse FFT.
func (r *Resampler) resampleSub(sub []float32) []float64 {
	seq := make([]float64, r.subLen)
	for i, s := range sub {
		seq[i] = float64(s)
	}

	coeff := r.fwd.Coefficients(nil, seq)

	outBins := r.subOutLen/2 + 1
	resized := make([]complex128, outBins)
	n := len(coeff)
	if n > outBins {
		n = outBins
	}
	copy(resized, coeff[:n])

	// Coefficients and Sequence are both unnormalized, so the round trip is divided by subLen to
	// keep the input amplitude.
	scale := complex(1/float64(r.subLen), 0)
	for i := range resized {
		resized[i] *= scale
	}

	return r.inv.Sequence(nil, resized)
}

func (r *Resampler) crossfadeWithPrevTail(out []float64) {
	if len(r.prevTail) == 0 || r.fadeLen == 0 {
		return
	}
	n := r.fadeLen
	if n > len(out) {
		n = len(out)
	}
	if n > len(r.prevTail) {
		n = len(r.prevTail)
	}
	tail := r.prevTail[len(r.prevTail)-n:]
	for i := 0; i < n; i++ {
		w := float64(i+1) / float64(n+1)
		out[i] = tail[i]*(1-w) + out[i]*w
	}
}

func (r *Resampler) storeTail(out []float64) {
	if r.fadeLen == 0 || len(out) < r.fadeLen {
		return
	}
	r.prevTail = append(r.prevTail[:0], out[len(out)-r.fadeLen:]...)
}

// Reset clears the crossfade carry-over state between sessions.
func (r *Resampler) Reset() {
	r.prevTail = nil
}
