package sink

// Flag qualifies a single write.
type Flag uint32

const (
	FlagNone Flag = 0

	// FlagKeyframe marks a self-contained unit a decoder can start from.
	FlagKeyframe Flag = 1 << 0

	// FlagRestart marks the first keyframe forwarded after output resumed.
	FlagRestart Flag = 1 << 1
)

// Sink defines a destination for a stream of encoded frames, such as a file,
// a network socket, or a bounded memory buffer. Implementations open their
// destination on demand.
type Sink interface {
	// Write appends one frame. The caller must not modify p during the
	// call, and implementations must not retain p afterwards.
	Write(p []byte, timestamp int64, flags Flag) error

	// Close finalizes the sink. Write must not be called after Close.
	Close() error
}
