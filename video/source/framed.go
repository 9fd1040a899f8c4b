package source

import (
	"encoding/binary"
	"errors"
	"io"

	log "github.com/sirupsen/logrus"
)

const (
	// headerSize is the fixed per-frame header emitted by the encoder shim:
	// payload size (uint32), timestamp microseconds (int64) and a flags byte
	// with bit 0 set for keyframes, all little-endian.
	headerSize = 13

	// maxFrameSize guards against a corrupted header allocating gigabytes.
	maxFrameSize = 64 << 20
)

// FramedReader adapts a byte stream from the encoder shim (typically stdin
// or a fifo) into a Source.
type FramedReader struct {
	r io.ReadCloser
	c chan Frame
}

func NewFramedReader(r io.ReadCloser) *FramedReader {
	f := &FramedReader{
		r: r,
		c: make(chan Frame),
	}
	go f.read()
	return f
}

func (f *FramedReader) read() {
	defer close(f.c)
	hdr := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(f.r, hdr); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				log.Errorf("Frame header read failed: %v", err)
			}
			return
		}
		size := binary.LittleEndian.Uint32(hdr[0:4])
		if size > maxFrameSize {
			log.Errorf("Rejecting oversized frame (%d bytes)", size)
			return
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(f.r, data); err != nil {
			log.Errorf("Frame payload read failed: %v", err)
			return
		}
		f.c <- Frame{
			Data:      data,
			Timestamp: int64(binary.LittleEndian.Uint64(hdr[4:12])),
			Keyframe:  hdr[12]&1 != 0,
		}
	}
}

func (f *FramedReader) Frames() <-chan Frame {
	return f.c
}

func (f *FramedReader) Close() {
	f.r.Close()
}
