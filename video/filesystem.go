package video

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"picam/video/sink"
)

const (
	ExtRaw   = ".mjpeg"
	ExtVideo = ".mp4"
	ExtThumb = ".jpg"

	// DirTimeLayout names the per-day folder, FileTimeLayout the record
	// base name. See https://golang.org/src/time/format.go.
	DirTimeLayout  = "2006-01-02"
	FileTimeLayout = "2006-01-02-15-04-05.000"
)

// FilesystemListener is notified whenever the record set changes.
type FilesystemListener interface {
	FilesystemUpdated()
}

// VideoRecord is one event recording on disk: the raw artifact, the
// converted video and the thumbnail share a base name.
type VideoRecord struct {
	Identifier  string
	TriggeredAt time.Time

	RawPath   string
	VideoPath string
	ThumbPath string

	HaveRaw   bool
	HaveVideo bool
	HaveThumb bool

	Size        int64
	DurationSec int

	fs *Filesystem
}

// Filesystem owns the on-disk layout of event recordings:
// <base>/<yyyy-mm-dd>/<timestamp>.{mjpeg,mp4,jpg}. It also acts as the
// sink producer for new event sessions.
type Filesystem struct {
	BasePath  string
	Listeners []FilesystemListener

	// FlushWrites syncs event recordings after every write.
	FlushWrites bool

	// records is keyed by base path (no extension). Entries survive
	// refreshes so identifiers stay stable for the process lifetime.
	records map[string]*VideoRecord

	l sync.Mutex
}

func NewFilesystem(path string) (*Filesystem, error) {
	path = expandTilde(path)
	if path == "" {
		path = "."
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}
	f := &Filesystem{
		BasePath: path,
		records:  make(map[string]*VideoRecord),
	}
	if err := f.Refresh(); err != nil {
		return nil, err
	}
	return f, nil
}

// expandTilde resolves a leading "~" against $HOME.
func expandTilde(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}

// NewRecord allocates disk paths for an event triggered at t, creating the
// day folder if needed.
func (f *Filesystem) NewRecord(t time.Time) (*VideoRecord, error) {
	day := filepath.Join(f.BasePath, t.Format(DirTimeLayout))
	if err := os.MkdirAll(day, 0755); err != nil {
		return nil, fmt.Errorf("create day directory: %w", err)
	}
	base := filepath.Join(day, t.Format(FileTimeLayout))

	f.l.Lock()
	defer f.l.Unlock()
	if r, ok := f.records[base]; ok {
		return r, nil
	}
	r := &VideoRecord{
		Identifier:  uuid.NewString(),
		TriggeredAt: t,
		RawPath:     base + ExtRaw,
		VideoPath:   base + ExtVideo,
		ThumbPath:   base + ExtThumb,
		fs:          f,
	}
	f.records[base] = r
	return r, nil
}

// New opens the destination set for one event recording. Implements the
// controller's EventSinkProducer.
func (f *Filesystem) New(t time.Time) (*EventOutputs, error) {
	r, err := f.NewRecord(t)
	if err != nil {
		return nil, err
	}
	log.Infof("Event recording destination: %v", r.RawPath)
	return &EventOutputs{
		Video:  sink.NewFileSink(r.RawPath, sink.FileOptions{Flush: f.FlushWrites}),
		Still:  sink.NewStillSink(r.ThumbPath),
		Record: r,
	}, nil
}

// Refresh rescans the base path and merges what it finds into the record
// set. Existing records keep their identifiers.
func (f *Filesystem) Refresh() error {
	days, err := os.ReadDir(f.BasePath)
	if err != nil {
		return err
	}

	f.l.Lock()
	defer f.l.Unlock()

	for _, day := range days {
		if !day.IsDir() {
			continue
		}
		if _, err := time.Parse(DirTimeLayout, day.Name()); err != nil {
			continue
		}
		dayPath := filepath.Join(f.BasePath, day.Name())
		files, err := os.ReadDir(dayPath)
		if err != nil {
			log.Errorf("Failed to scan %v: %v", dayPath, err)
			continue
		}
		for _, file := range files {
			name := file.Name()
			ext := filepath.Ext(name)
			if ext != ExtRaw && ext != ExtVideo && ext != ExtThumb {
				continue
			}
			baseName := strings.TrimSuffix(name, ext)
			t, err := time.ParseInLocation(FileTimeLayout, baseName, time.Local)
			if err != nil {
				continue
			}
			base := filepath.Join(dayPath, baseName)
			r, ok := f.records[base]
			if !ok {
				r = &VideoRecord{
					Identifier:  uuid.NewString(),
					TriggeredAt: t,
					RawPath:     base + ExtRaw,
					VideoPath:   base + ExtVideo,
					ThumbPath:   base + ExtThumb,
					fs:          f,
				}
				f.records[base] = r
			}
			r.stat()
		}
	}
	return nil
}

// GetRecords returns all records, newest first.
func (f *Filesystem) GetRecords() []*VideoRecord {
	f.l.Lock()
	defer f.l.Unlock()
	records := make([]*VideoRecord, 0, len(f.records))
	for _, r := range f.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].TriggeredAt.After(records[j].TriggeredAt)
	})
	return records
}

func (f *Filesystem) GetRecordByID(id string) *VideoRecord {
	f.l.Lock()
	defer f.l.Unlock()
	for _, r := range f.records {
		if r.Identifier == id {
			return r
		}
	}
	return nil
}

func (f *Filesystem) notifyListeners() {
	for _, l := range f.Listeners {
		l.FilesystemUpdated()
	}
}

// stat refreshes the presence flags and size from disk. Caller holds no
// locks it needs; flags are only mutated from the owning filesystem.
func (r *VideoRecord) stat() {
	r.Size = 0
	stat := func(path string, have *bool) {
		fi, err := os.Stat(path)
		if err != nil {
			*have = false
			return
		}
		*have = true
		r.Size += fi.Size()
	}
	stat(r.RawPath, &r.HaveRaw)
	stat(r.VideoPath, &r.HaveVideo)
	stat(r.ThumbPath, &r.HaveThumb)
}

func (r *VideoRecord) update() {
	r.stat()
	if r.fs != nil {
		r.fs.notifyListeners()
	}
}

// UpdateRaw is invoked when the raw artifact is written or removed.
func (r *VideoRecord) UpdateRaw() { r.update() }

// UpdateVideo is invoked when the converted artifact appears.
func (r *VideoRecord) UpdateVideo() { r.update() }

// UpdateThumb is invoked when the thumbnail is captured.
func (r *VideoRecord) UpdateThumb() { r.update() }

// SetDuration records the converted artifact's duration.
func (r *VideoRecord) SetDuration(seconds int) {
	r.DurationSec = seconds
	if r.fs != nil {
		r.fs.notifyListeners()
	}
}

// Delete removes the record's files and drops it from the index.
func (r *VideoRecord) Delete() {
	for _, p := range []string{r.RawPath, r.VideoPath, r.ThumbPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Errorf("Failed to remove %v: %v", p, err)
		}
	}
	if r.fs == nil {
		return
	}
	r.fs.l.Lock()
	base := strings.TrimSuffix(r.RawPath, ExtRaw)
	delete(r.fs.records, base)
	r.fs.l.Unlock()
	r.fs.notifyListeners()
}
