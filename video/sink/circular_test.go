package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// TestCircularEviction verifies old frames are dropped to stay under the
// byte capacity.
func TestCircularEviction(t *testing.T) {
	s := NewCircularSink(10, "")
	s.Write(make([]byte, 4), 0, FlagKeyframe)
	s.Write(make([]byte, 4), 100000, FlagNone)
	s.Write(make([]byte, 4), 200000, FlagNone)

	if len(s.frames) != 2 {
		t.Fatalf("Expected 2 retained frames, got %d", len(s.frames))
	}
	if s.size != 8 {
		t.Errorf("Expected 8 retained bytes, got %d", s.size)
	}
}

// TestCircularKeepsOversizedFrame verifies a single frame larger than the
// capacity is still retained.
func TestCircularKeepsOversizedFrame(t *testing.T) {
	s := NewCircularSink(10, "")
	s.Write(make([]byte, 32), 0, FlagKeyframe)

	if len(s.frames) != 1 {
		t.Fatalf("Expected oversized frame retained, got %d frames", len(s.frames))
	}
}

// TestCircularDumpStartsAtKeyframe verifies the dump skips leading
// non-keyframes.
func TestCircularDumpStartsAtKeyframe(t *testing.T) {
	s := NewCircularSink(1 << 20, "")
	s.Write([]byte("aa"), 0, FlagNone)
	s.Write([]byte("bb"), 100000, FlagKeyframe)
	s.Write([]byte("cc"), 200000, FlagNone)

	var buf bytes.Buffer
	if err := s.Dump(&buf); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if buf.String() != "bbcc" {
		t.Errorf("Expected dump %q, got %q", "bbcc", buf.String())
	}
}

// TestCircularDumpNoKeyframe verifies the dump is empty when no keyframe was
// retained.
func TestCircularDumpNoKeyframe(t *testing.T) {
	s := NewCircularSink(1 << 20, "")
	s.Write([]byte("aa"), 0, FlagNone)

	var buf bytes.Buffer
	if err := s.Dump(&buf); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected empty dump, got %q", buf.String())
	}
}

// TestCircularCloseDumps verifies Close writes the ring to the configured
// path.
func TestCircularCloseDumps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.h264")
	s := NewCircularSink(1 << 20, path)
	s.Write([]byte("key"), 0, FlagKeyframe)
	s.Write([]byte("delta"), 100000, FlagNone)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "keydelta" {
		t.Errorf("Expected dump %q, got %q", "keydelta", data)
	}
}
