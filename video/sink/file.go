package sink

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// FileOptions controls destination rotation for a FileSink.
type FileOptions struct {
	// SegmentMS closes the current file and opens the next one on the first
	// keyframe after this many milliseconds of output. Zero disables
	// segmenting.
	SegmentMS int64

	// Split rotates the destination whenever output restarts after a pause.
	Split bool

	// Wrap resets the segment counter back to zero after this many files.
	Wrap int

	// Flush syncs the file after every write.
	Flush bool
}

// FileSink writes frames to a file, opening it on the first write. The path
// may contain a printf-style %d verb which expands to the segment counter,
// and "-" selects stdout.
type FileSink struct {
	path string
	opts FileOptions

	f       *os.File
	count   int
	startMS int64
}

func NewFileSink(path string, opts FileOptions) *FileSink {
	return &FileSink{
		path: path,
		opts: opts,
	}
}

func (s *FileSink) Write(p []byte, timestamp int64, flags Flag) error {
	// A new file is needed if we're in segment mode and the segment is full
	// (though that has to wait for the next keyframe), or in split mode and
	// recording just restarted (necessarily a keyframe already).
	if s.f == nil ||
		(s.opts.SegmentMS > 0 && flags&FlagKeyframe != 0 &&
			timestamp/1000-s.startMS > s.opts.SegmentMS) ||
		(s.opts.Split && flags&FlagRestart != 0) {
		if err := s.closeFile(); err != nil {
			return err
		}
		if err := s.openFile(timestamp); err != nil {
			return err
		}
	}

	if s.f == nil || len(p) == 0 {
		return nil
	}
	if _, err := s.f.Write(p); err != nil {
		return fmt.Errorf("write output bytes: %w", err)
	}
	if s.opts.Flush {
		s.f.Sync()
	}
	return nil
}

func (s *FileSink) openFile(timestamp int64) error {
	switch {
	case s.path == "-":
		s.f = os.Stdout
	case s.path != "":
		name := s.path
		if strings.Contains(name, "%") {
			name = fmt.Sprintf(name, s.count)
		}
		s.count++
		if s.opts.Wrap > 0 {
			s.count = s.count % s.opts.Wrap
		}
		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("open output file: %w", err)
		}
		s.f = f
		log.Debugf("FileSink: opened output file %v", name)
	}
	s.startMS = timestamp / 1000
	return nil
}

func (s *FileSink) closeFile() error {
	if s.f == nil {
		return nil
	}
	if s.opts.Flush {
		s.f.Sync()
	}
	f := s.f
	s.f = nil
	if f == os.Stdout {
		return nil
	}
	return f.Close()
}

func (s *FileSink) Close() error {
	return s.closeFile()
}
