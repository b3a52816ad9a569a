// Package clock tracks the monotonic 16 kHz sample count consumed by the VAD gate.
package clock

import "sync/atomic"

const sampleRateHz = 16000

// Audio is a monotonic counter of 16 kHz samples processed so far. It names the end of the
// most recently processed chunk; reset only happens on a new session.
type Audio struct {
	samples atomic.Uint64
}

// Advance moves the clock forward by n samples and returns the new total.
func (a *Audio) Advance(n int) uint64 {
	return a.samples.Add(uint64(n))
}

// Samples returns the current sample count.
func (a *Audio) Samples() uint64 {
	return a.samples.Load()
}

// MS returns the current clock position in milliseconds.
func (a *Audio) MS() int64 {
	return int64(a.samples.Load() / (sampleRateHz / 1000))
}

// ChunkStart returns the sample index at which a chunk of length chunkLen that ends at the
// current clock position began, saturating at zero rather than underflowing.
func (a *Audio) ChunkStart(chunkLen int) uint64 {
	end := a.samples.Load()
	if uint64(chunkLen) > end {
		return 0
	}
	return end - uint64(chunkLen)
}

// Reset zeroes the clock for a new session.
func (a *Audio) Reset() {
	a.samples.Store(0)
}
