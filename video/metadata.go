package video

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Metadata is one frame's worth of pipeline metadata, keyed by control name.
type Metadata map[string]string

// metadataFormatter is selected once when the log is created; no per-frame
// format dispatch.
type metadataFormatter interface {
	start(w io.Writer)
	write(w io.Writer, m Metadata, first bool)
	stop(w io.Writer)
}

func sortedKeys(m Metadata) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type textMetadata struct{}

func (textMetadata) start(io.Writer) {}

func (textMetadata) write(w io.Writer, m Metadata, first bool) {
	for _, k := range sortedKeys(m) {
		fmt.Fprintf(w, "%s=%s\n", k, m[k])
	}
	fmt.Fprintln(w)
}

func (textMetadata) stop(io.Writer) {}

type jsonMetadata struct{}

func (jsonMetadata) start(w io.Writer) {
	fmt.Fprintln(w, "[")
}

func (jsonMetadata) write(w io.Writer, m Metadata, first bool) {
	if !first {
		fmt.Fprintln(w, ",")
	}
	fmt.Fprint(w, "{")
	firstDone := false
	for _, k := range sortedKeys(m) {
		v := m[k]
		// Values containing a '/' are rationals or paths; quote them.
		quote := ""
		if strings.Contains(v, "/") {
			quote = "\""
		}
		sep := ""
		if firstDone {
			sep = ","
		}
		fmt.Fprintf(w, "%s\n    \"%s\": %s%s%s", sep, k, quote, v, quote)
		firstDone = true
	}
	fmt.Fprint(w, "\n}")
}

func (jsonMetadata) stop(w io.Writer) {
	fmt.Fprintln(w, "\n]")
}

// MetadataLog writes one metadata record per forwarded frame to a file or
// stdout, in the format fixed at construction ("txt", anything else selects
// JSON).
type MetadataLog struct {
	w       io.Writer
	f       *os.File
	format  metadataFormatter
	started bool
}

func NewMetadataLog(path, format string) (*MetadataLog, error) {
	m := &MetadataLog{w: os.Stdout}
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("open metadata file: %w", err)
		}
		m.f = f
		m.w = f
	}
	if format == "txt" {
		m.format = textMetadata{}
	} else {
		m.format = jsonMetadata{}
	}
	m.format.start(m.w)
	return m, nil
}

func (m *MetadataLog) Write(md Metadata) {
	m.format.write(m.w, md, !m.started)
	m.started = true
}

func (m *MetadataLog) Close() error {
	m.format.stop(m.w)
	if m.f != nil {
		return m.f.Close()
	}
	return nil
}
