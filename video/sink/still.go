package sink

import (
	"fmt"
	"os"
)

// StillSink captures exactly one frame to a file. Used for the event
// thumbnail: the bytes of the first frame after a trigger, written as-is.
type StillSink struct {
	path    string
	written bool
}

func NewStillSink(path string) *StillSink {
	return &StillSink{path: path}
}

func (s *StillSink) Write(p []byte, timestamp int64, flags Flag) error {
	if s.written {
		return nil
	}
	if err := os.WriteFile(s.path, p, 0644); err != nil {
		return fmt.Errorf("write still frame: %w", err)
	}
	s.written = true
	return nil
}

func (s *StillSink) Close() error {
	return nil
}
