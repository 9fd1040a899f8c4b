package sink

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

type circFrame struct {
	data     []byte
	keyframe bool
}

// CircularSink keeps the most recent frames in memory, bounded by total byte
// size. When the ring is dumped, leading frames up to the first keyframe are
// skipped so the result starts on a decodable unit.
type CircularSink struct {
	capacity int64
	dumpPath string

	frames []circFrame
	size   int64
}

// NewCircularSink creates a memory ring of the given byte capacity. If
// dumpPath is non-empty the ring contents are written there on Close.
func NewCircularSink(capacity int64, dumpPath string) *CircularSink {
	return &CircularSink{
		capacity: capacity,
		dumpPath: dumpPath,
	}
}

func (s *CircularSink) Write(p []byte, timestamp int64, flags Flag) error {
	data := make([]byte, len(p))
	copy(data, p)
	s.frames = append(s.frames, circFrame{data: data, keyframe: flags&FlagKeyframe != 0})
	s.size += int64(len(data))
	for s.size > s.capacity && len(s.frames) > 1 {
		s.size -= int64(len(s.frames[0].data))
		s.frames[0] = circFrame{}
		s.frames = s.frames[1:]
	}
	return nil
}

// Dump writes the buffered stream, starting at the oldest retained keyframe.
func (s *CircularSink) Dump(w io.Writer) error {
	start := len(s.frames)
	for i, f := range s.frames {
		if f.keyframe {
			start = i
			break
		}
	}
	for _, f := range s.frames[start:] {
		if _, err := w.Write(f.data); err != nil {
			return fmt.Errorf("dump circular buffer: %w", err)
		}
	}
	return nil
}

func (s *CircularSink) Close() error {
	if s.dumpPath == "" {
		return nil
	}
	f, err := os.Create(s.dumpPath)
	if err != nil {
		return fmt.Errorf("open circular dump file: %w", err)
	}
	defer f.Close()
	if err := s.Dump(f); err != nil {
		return err
	}
	log.Infof("Circular buffer dumped to %v", s.dumpPath)
	return nil
}
