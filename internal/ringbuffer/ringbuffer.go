// Package ringbuffer provides a bounded single-producer/single-consumer float32 queue.
package ringbuffer

import "sync/atomic"

// Buffer is a bounded SPSC queue of float32 samples. A single goroutine may call TryPush and a
// single (possibly different) goroutine may call PopSlice; neither blocks. A full buffer
// increments a monotonic overflow counter instead of failing or tearing data.
type Buffer struct {
	data []float32
	cap  int

	head atomic.Uint64 // next read index, written only by the consumer
	tail atomic.Uint64 // next write index, written only by the producer

	overflow atomic.Uint64
}

// New constructs a Buffer with room for capacity samples.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		data: make([]float32, capacity),
		cap:  capacity,
	}
}

// NewForDeviceRate sizes a Buffer to hold seconds worth of samples at sampleRate, matching the
// spec's 30 s of slack at device rate.
func NewForDeviceRate(sampleRate int, seconds float64) *Buffer {
	return New(int(float64(sampleRate) * seconds))
}

func (b *Buffer) len(head, tail uint64) int {
	return int(tail - head)
}

// TryPush appends one sample. It returns false and increments the overflow counter without
// blocking if the buffer is full.
func (b *Buffer) TryPush(sample float32) bool {
	head := b.head.Load()
	tail := b.tail.Load()
	if b.len(head, tail) >= b.cap {
		b.overflow.Add(1)
		return false
	}
	b.data[int(tail)%b.cap] = sample
	b.tail.Store(tail + 1)
	return true
}

// TryPushSlice tries to push every sample in src, skipping (and counting overflow for) any that
// don't fit, and returns how many were pushed.
func (b *Buffer) TryPushSlice(src []float32) (pushed int) {
	for _, s := range src {
		if !b.TryPush(s) {
			continue
		}
		pushed++
	}
	return pushed
}

// PopSlice copies up to len(out) queued samples into out and returns the count copied.
func (b *Buffer) PopSlice(out []float32) int {
	head := b.head.Load()
	tail := b.tail.Load()
	avail := b.len(head, tail)
	n := len(out)
	if avail < n {
		n = avail
	}
	for i := 0; i < n; i++ {
		out[i] = b.data[int(head+uint64(i))%b.cap]
	}
	b.head.Store(head + uint64(n))
	return n
}

// Occupied reports how many samples are currently queued.
func (b *Buffer) Occupied() int {
	return b.len(b.head.Load(), b.tail.Load())
}

// Capacity returns the buffer's fixed capacity.
func (b *Buffer) Capacity() int {
	return b.cap
}

// OverflowCount returns the cumulative number of dropped samples.
func (b *Buffer) OverflowCount() uint64 {
	return b.overflow.Load()
}
