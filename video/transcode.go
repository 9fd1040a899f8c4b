package video

import (
	"os"
	"os/exec"

	"github.com/pillash/mp4util"
	log "github.com/sirupsen/logrus"

	"picam/util"
)

const extTemp = ".temp"

// Transcoder converts finished raw event recordings into distribution form.
type Transcoder interface {
	// Convert schedules an asynchronous conversion of the record's raw
	// artifact. It never blocks on the conversion itself.
	Convert(r *VideoRecord)
}

// FFmpegTranscoder converts raw event recordings to mp4 on a background
// worker. The raw artifact is removed on success and retained on failure so
// no footage is lost.
type FFmpegTranscoder struct {
	c     chan *VideoRecord
	close chan chan bool
}

func NewFFmpegTranscoder() *FFmpegTranscoder {
	f := &FFmpegTranscoder{
		c:     make(chan *VideoRecord, 100),
		close: make(chan chan bool, 1),
	}
	go f.run()
	return f
}

func (f *FFmpegTranscoder) run() {
	for {
		var r *VideoRecord
		select {
		case cc := <-f.close:
			cc <- true
			return
		case r = <-f.c:
		}

		c := exec.Command(
			util.LocateFFmpegOrDie(),
			"-i", r.RawPath,
			"-c:v", "libx264",
			"-preset", "medium",
			"-crf", "23",
			"-pix_fmt", "yuv420p",
			"-y",
			r.VideoPath+extTemp,
		)

		// Allows for debugging ffmpeg in shell.
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		log.Infof("Converting %v", r.RawPath)
		if err := c.Start(); err != nil {
			log.Errorf("Failed to start conversion for %v: %v", r.RawPath, err)
			transcodeFailures.Inc()
			continue
		}

		wait := make(chan error)
		go func() {
			wait <- c.Wait()
		}()

		select {
		case cc := <-f.close:
			c.Process.Kill()
			cc <- true
			return
		case err := <-wait:
			if err != nil {
				log.Errorf("Conversion failed for %v: %v, raw file retained", r.RawPath, err)
				transcodeFailures.Inc()
				continue
			}
			f.finish(r)
		}
	}
}

func (f *FFmpegTranscoder) finish(r *VideoRecord) {
	if err := os.Rename(r.VideoPath+extTemp, r.VideoPath); err != nil {
		log.Errorf("Error moving converted video to its final destination: %v", err)
		transcodeFailures.Inc()
		return
	}
	if err := os.Remove(r.RawPath); err != nil {
		log.Errorf("Failed to remove raw file %v: %v", r.RawPath, err)
	}
	if sec, err := mp4util.Duration(r.VideoPath); err == nil {
		r.SetDuration(sec)
	} else {
		log.Errorf("Failed to probe duration of %v: %v", r.VideoPath, err)
	}
	r.UpdateRaw()
	r.UpdateVideo()
	transcodeSuccesses.Inc()
	log.Infof("Conversion succeeded for %v", r.VideoPath)
}

// Convert submits a record for conversion. Drops (with a warning) if the
// backlog is full; the raw artifact stays on disk either way.
func (f *FFmpegTranscoder) Convert(r *VideoRecord) {
	select {
	case f.c <- r:
	default:
		log.Warnf("Conversion of %v dropped due to backlog", r.RawPath)
	}
}

// Close stops the worker, killing any conversion in flight. Queued items are
// abandoned; their raw artifacts remain on disk.
func (f *FFmpegTranscoder) Close() {
	c := make(chan bool)
	f.close <- c
	<-c
}
