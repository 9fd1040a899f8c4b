package video

import (
	"testing"

	"picam/video/sink"
	"picam/video/source"
)

func put(b *PreBuffer, ts int64, keyframe bool) {
	b.Put(source.Frame{Data: []byte{byte(ts / 1000)}, Timestamp: ts, Keyframe: keyframe})
}

// TestPreBufferCapacity verifies capacity rounds up to whole frames.
func TestPreBufferCapacity(t *testing.T) {
	cases := []struct {
		seconds   float64
		framerate float64
		capacity  int
	}{
		{2, 10, 20},
		{1.5, 30, 45},
		{0.1, 15, 2}, // 1.5 frames rounds up
		{0, 30, 0},
	}
	for _, c := range cases {
		b := NewPreBuffer(c.seconds, c.framerate)
		if b.capacity != c.capacity {
			t.Errorf("NewPreBuffer(%v, %v): capacity %d, want %d",
				c.seconds, c.framerate, b.capacity, c.capacity)
		}
	}
}

// TestPreBufferEviction verifies the oldest frame is evicted once full,
// regardless of keyframe status.
func TestPreBufferEviction(t *testing.T) {
	b := NewPreBuffer(0.3, 10) // capacity 3
	put(b, 1000, true)
	put(b, 2000, false)
	put(b, 3000, false)
	put(b, 4000, false)

	if b.Len() != 3 {
		t.Fatalf("Expected 3 retained frames, got %d", b.Len())
	}
	if b.frames[0].ts != 2000 {
		t.Errorf("Expected oldest frame 2000 after eviction, got %d", b.frames[0].ts)
	}
}

// TestPreBufferDisabled verifies a zero-capacity buffer retains nothing.
func TestPreBufferDisabled(t *testing.T) {
	b := NewPreBuffer(0, 30)
	if b.Enabled() {
		t.Error("Expected zero-duration buffer to be disabled")
	}
	put(b, 1000, true)
	if b.Len() != 0 {
		t.Errorf("Expected nothing retained, got %d", b.Len())
	}
}

// TestPreBufferOwnsCopies verifies the buffer is unaffected by the caller
// reusing the frame's data slice.
func TestPreBufferOwnsCopies(t *testing.T) {
	b := NewPreBuffer(1, 10)
	data := []byte{1, 2, 3}
	b.Put(source.Frame{Data: data, Timestamp: 1000})
	data[0] = 99

	if b.frames[0].data[0] != 1 {
		t.Error("Buffered frame shares storage with the caller")
	}
}

// TestPreBufferFlush verifies flush forwards oldest first, bounded by the
// cutoff, renormalized, and empties the buffer.
func TestPreBufferFlush(t *testing.T) {
	b := NewPreBuffer(1, 10)
	put(b, 1000, true)
	put(b, 2000, false)
	put(b, 3000, false)

	s := &memSink{}
	if err := b.Flush(s, 3000, 500); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// 3000 is at the cutoff, not before it.
	if len(s.writes) != 2 {
		t.Fatalf("Expected 2 flushed frames, got %d", len(s.writes))
	}
	if s.writes[0].ts != 500 || s.writes[1].ts != 1500 {
		t.Errorf("Unexpected renormalized timestamps %d, %d", s.writes[0].ts, s.writes[1].ts)
	}
	if s.writes[0].flags&sink.FlagKeyframe == 0 {
		t.Error("Keyframe flag lost on flush")
	}
	if b.Len() != 0 {
		t.Errorf("Expected buffer emptied after flush, got %d", b.Len())
	}
}
