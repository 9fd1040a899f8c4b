package video

import (
	"math"

	"picam/video/sink"
	"picam/video/source"
)

// preFrame is an owned copy of a delivered frame held for event backfill.
type preFrame struct {
	data     []byte
	ts       int64
	keyframe bool
}

// PreBuffer retains the most recent frames so that an event recording, once
// started, can be backfilled with what preceded the trigger. It is a bounded
// FIFO; once full, the oldest frame is evicted regardless of keyframe status.
type PreBuffer struct {
	capacity int

	// frames holds retained history, oldest first.
	frames []preFrame
}

// NewPreBuffer sizes the buffer for the given seconds of history at the
// given frame rate. A zero duration disables buffering entirely.
func NewPreBuffer(seconds, framerate float64) *PreBuffer {
	return &PreBuffer{
		capacity: int(math.Ceil(seconds * framerate)),
	}
}

func (b *PreBuffer) Enabled() bool {
	return b.capacity > 0
}

func (b *PreBuffer) Len() int {
	return len(b.frames)
}

// Put copies one delivered frame into the buffer.
func (b *PreBuffer) Put(f source.Frame) {
	if b.capacity == 0 {
		return
	}
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	b.frames = append(b.frames, preFrame{
		data:     data,
		ts:       f.Timestamp,
		keyframe: f.Keyframe,
	})
	for len(b.frames) > b.capacity {
		b.frames[0] = preFrame{}
		b.frames = b.frames[1:]
		prebufferEvictions.Inc()
	}
}

// Flush forwards every retained frame with a timestamp strictly before
// cutoff to the sink, oldest first, renormalized by offset, then empties the
// buffer.
func (b *PreBuffer) Flush(s sink.Sink, cutoff, offset int64) error {
	var err error
	for _, f := range b.frames {
		if f.ts >= cutoff {
			break
		}
		flags := sink.FlagNone
		if f.keyframe {
			flags = sink.FlagKeyframe
		}
		if werr := s.Write(f.data, f.ts-offset, flags); werr != nil && err == nil {
			err = werr
		}
	}
	b.frames = nil
	return err
}
