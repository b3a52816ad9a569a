package ringbuffer

import "testing"

func TestTryPushAndPop(t *testing.T) {
	b := New(4)

	for i := 0; i < 4; i++ {
		if !b.TryPush(float32(i)) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}

	if b.TryPush(99) {
		t.Fatalf("push into full buffer should fail")
	}
	if got := b.OverflowCount(); got != 1 {
		t.Fatalf("overflow count = %d, want 1", got)
	}

	out := make([]float32, 4)
	n := b.PopSlice(out)
	if n != 4 {
		t.Fatalf("popped %d, want 4", n)
	}
	for i, v := range out {
		if v != float32(i) {
			t.Fatalf("out[%d] = %v, want %v", i, v, i)
		}
	}
}

func TestPopSlicePartial(t *testing.T) {
	b := New(8)
	b.TryPushSlice([]float32{1, 2, 3})

	out := make([]float32, 5)
	n := b.PopSlice(out)
	if n != 3 {
		t.Fatalf("popped %d, want 3", n)
	}
}

func TestOccupiedAfterWraparound(t *testing.T) {
	b := New(4)
	b.TryPushSlice([]float32{1, 2, 3, 4})
	out := make([]float32, 2)
	b.PopSlice(out)
	b.TryPushSlice([]float32{5, 6})

	if got := b.Occupied(); got != 4 {
		t.Fatalf("occupied = %d, want 4", got)
	}

	rest := make([]float32, 4)
	n := b.PopSlice(rest)
	if n != 4 {
		t.Fatalf("popped %d, want 4", n)
	}
	want := []float32{3, 4, 5, 6}
	for i, v := range rest {
		if v != want[i] {
			t.Fatalf("rest[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestNoOverflowWhenWithinCapacity(t *testing.T) {
	b := New(4)
	b.TryPushSlice([]float32{1, 2})
	out := make([]float32, 2)
	b.PopSlice(out)
	b.TryPushSlice([]float32{3, 4, 5, 6})
	if got := b.OverflowCount(); got != 0 {
		t.Fatalf("overflow count = %d, want 0", got)
	}
}
