package source

// Frame is a single encoded unit handed over by the upstream encoder
// pipeline. Data is only valid for the duration of the call that delivers
// it; anything that needs to keep the bytes must copy them.
type Frame struct {
	// Data is the opaque encoded payload. Never inspected, only forwarded.
	Data []byte

	// Timestamp is the source timestamp in monotonic microseconds, with a
	// pipeline-defined epoch. Strictly increasing across frames.
	Timestamp int64

	// Keyframe marks a self-contained unit that a sink can start from.
	Keyframe bool
}

// Source defines a stream of encoded frames, such as a camera encoder pipe.
type Source interface {
	// Frames returns the channel of incoming frames. The channel is closed
	// when the source ends.
	Frames() <-chan Frame

	// Close disconnects from the source and frees up all resources.
	Close()
}
