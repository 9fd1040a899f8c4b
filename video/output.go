package video

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"picam/video/sink"
	"picam/video/source"
)

type state int

const (
	stateDisabled state = iota
	stateWaitingKeyframe
	stateRunning
)

// Notifier delivers a best-effort payload to an external endpoint. One
// attempt per call; the controller logs failures and moves on.
type Notifier interface {
	Send(payload []byte, timestamp int64) error
}

// EventOutputs bundles the destinations for one event recording session.
type EventOutputs struct {
	Video  sink.Sink
	Still  sink.Sink
	Record *VideoRecord
}

// EventSinkProducer opens a fresh destination set for an event recording
// triggered at t.
type EventSinkProducer interface {
	New(t time.Time) (*EventOutputs, error)
}

// SessionListener observes event-session lifecycle changes.
type SessionListener interface {
	SessionStarted(r *VideoRecord)
	SessionEnded(r *VideoRecord)
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	// PreEventSeconds and Framerate size the pre-event buffer.
	PreEventSeconds float64
	Framerate       float64

	// EventWindowSeconds bounds an event recording past its latest trigger.
	EventWindowSeconds float64

	// Pause starts the controller disabled.
	Pause bool

	// SavePTSPath, if set, receives one timecode line per forwarded frame.
	SavePTSPath string

	// MetadataPath/MetadataFormat enable the per-frame metadata log.
	// MetadataPath "-" selects stdout; format is "txt" or "json".
	MetadataPath   string
	MetadataFormat string
}

// eventSession is the transient secondary recording opened by a detection.
type eventSession struct {
	outs *EventOutputs

	// startTS and endTS are in the renormalized output timeline; the
	// session closes once a forwarded timestamp passes endTS.
	startTS int64
	endTS   int64

	firstFrame bool
}

// Controller sits between the encoder and the configured sinks. It owns the
// keyframe-gated primary state machine, the pre-event buffer, and the
// detection-triggered secondary recording.
//
// Deliver, NotifyEvent and AttachMetadata must all be called from the single
// pipeline goroutine; SetEnabled is safe from anywhere.
type Controller struct {
	Listeners []SessionListener

	opts       ControllerOptions
	primary    sink.Sink
	events     EventSinkProducer
	notifier   Notifier
	transcoder Transcoder

	enabled atomic.Bool

	state         state
	timeOffset    int64
	lastTimestamp int64 // renormalized output timeline
	lastRaw       int64 // raw timestamp of the most recent delivery

	pre      *PreBuffer
	windowUS int64

	session *eventSession

	// pendingNotify holds the detection sequence armed for one webhook
	// dispatch on the next forwarded frame; -1 when idle.
	pendingNotify int

	pts       *os.File
	meta      *MetadataLog
	metaQueue []Metadata
}

// NewController creates a Controller. The primary sink, event producer,
// notifier and transcoder may each be nil to disable the corresponding
// output path.
func NewController(opts ControllerOptions, primary sink.Sink, events EventSinkProducer,
	notifier Notifier, transcoder Transcoder) (*Controller, error) {

	c := &Controller{
		opts:          opts,
		primary:       primary,
		events:        events,
		notifier:      notifier,
		transcoder:    transcoder,
		state:         stateWaitingKeyframe,
		pre:           NewPreBuffer(opts.PreEventSeconds, opts.Framerate),
		windowUS:      int64(opts.EventWindowSeconds * 1e6),
		pendingNotify: -1,
	}
	c.enabled.Store(!opts.Pause)

	if opts.SavePTSPath != "" {
		f, err := os.Create(opts.SavePTSPath)
		if err != nil {
			return nil, fmt.Errorf("open timestamp file: %w", err)
		}
		fmt.Fprintf(f, "# timecode format v2\n")
		c.pts = f
	}
	if opts.MetadataPath != "" {
		m, err := NewMetadataLog(opts.MetadataPath, opts.MetadataFormat)
		if err != nil {
			if c.pts != nil {
				c.pts.Close()
			}
			return nil, err
		}
		c.meta = m
	}
	return c, nil
}

// SetEnabled pauses or resumes the primary output. Takes effect on the next
// delivered frame.
func (c *Controller) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

// AttachMetadata queues one frame's metadata record. Records are consumed
// strictly 1:1 with forwarded frames; no-op when the metadata log is off.
func (c *Controller) AttachMetadata(m Metadata) {
	if c.meta == nil {
		return
	}
	c.metaQueue = append(c.metaQueue, m)
}

// Deliver ingests one encoder buffer. Must be called in strictly increasing
// timestamp order.
func (c *Controller) Deliver(f source.Frame) error {
	c.lastRaw = f.Timestamp
	c.pre.Put(f)

	flags := sink.FlagNone
	if f.Keyframe {
		flags |= sink.FlagKeyframe
	}

	// When output is re-enabled we may have to wait for the next keyframe.
	if !c.enabled.Load() {
		c.state = stateDisabled
	} else if c.state == stateDisabled {
		c.state = stateWaitingKeyframe
	}
	if c.state == stateWaitingKeyframe && f.Keyframe {
		c.state = stateRunning
		flags |= sink.FlagRestart
	}
	if c.state != stateRunning {
		framesDropped.Inc()
		return nil
	}

	// Frig the timestamps to be continuous after a pause.
	if flags&sink.FlagRestart != 0 {
		c.timeOffset = f.Timestamp - c.lastTimestamp
	}
	c.lastTimestamp = f.Timestamp - c.timeOffset

	if c.primary != nil {
		if err := c.primary.Write(f.Data, c.lastTimestamp, flags); err != nil {
			return fmt.Errorf("primary sink: %w", err)
		}
	}
	framesForwarded.Inc()

	if c.pts != nil {
		fmt.Fprintf(c.pts, "%d.%03d\n", c.lastTimestamp/1000, c.lastTimestamp%1000)
	}

	if c.meta != nil {
		if len(c.metaQueue) == 0 {
			return errors.New("metadata queue starved: AttachMetadata must be called once per delivered frame")
		}
		c.meta.Write(c.metaQueue[0])
		c.metaQueue = c.metaQueue[1:]
	}

	if c.pendingNotify >= 0 {
		if c.notifier != nil {
			payload := make([]byte, len(f.Data))
			copy(payload, f.Data)
			go c.dispatchNotify(c.pendingNotify, payload, f.Timestamp)
		}
		c.pendingNotify = -1
	}

	c.deliverSession(f, flags)
	return nil
}

func (c *Controller) dispatchNotify(seq int, payload []byte, timestamp int64) {
	if err := c.notifier.Send(payload, timestamp); err != nil {
		notifyFailures.Inc()
		log.Errorf("Notification for detection %d failed: %v", seq, err)
	}
}

// deliverSession runs the event-recording leg of a delivery: forward the
// frame, capture the thumbnail, and close the session once the window has
// passed.
func (c *Controller) deliverSession(f source.Frame, flags sink.Flag) {
	s := c.session
	if s == nil {
		return
	}

	if err := s.outs.Video.Write(f.Data, c.lastTimestamp, flags); err != nil {
		// A failed event recording ends the session; primary output keeps
		// going.
		log.Errorf("Event recording write failed: %v", err)
		c.closeSession()
		return
	}

	if s.firstFrame {
		if err := s.outs.Still.Write(f.Data, f.Timestamp, flags); err != nil {
			log.Errorf("Thumbnail capture failed: %v", err)
		} else if s.outs.Record != nil {
			s.outs.Record.UpdateThumb()
		}
		s.outs.Still.Close()
		s.firstFrame = false
	}

	if c.lastTimestamp > s.endTS {
		log.Infof("Event recording window ended")
		c.closeSession()
	}
}

// NotifyEvent starts an event recording, or extends the one already in
// progress. The trigger instant is taken to be the most recent delivery.
func (c *Controller) NotifyEvent(seq int) {
	c.NotifyEventAt(seq, c.lastRaw)
}

// NotifyEventAt is NotifyEvent with an explicit trigger timestamp (raw
// timeline, microseconds).
func (c *Controller) NotifyEventAt(seq int, now int64) {
	end := now - c.timeOffset + c.windowUS

	if c.session != nil {
		if end > c.session.endTS {
			log.Infof("Extending event recording for detection %d", seq)
			c.session.endTS = end
			sessionsExtended.Inc()
		}
		return
	}

	// One best-effort notification per detection signal that opens a
	// session; signals during an active session do not re-arm it.
	c.pendingNotify = seq

	if c.events == nil {
		return
	}
	outs, err := c.events.New(time.Now())
	if err != nil {
		log.Errorf("Failed to open event recording for detection %d: %v", seq, err)
		return
	}
	log.Infof("Starting event recording for detection %d", seq)
	c.session = &eventSession{
		outs:       outs,
		startTS:    now - c.timeOffset,
		endTS:      end,
		firstFrame: true,
	}
	sessionsStarted.Inc()

	// Backfill the retained history immediately so nothing is evicted
	// between the trigger and the next delivery. Only frames strictly
	// before the trigger instant are included.
	if err := c.pre.Flush(outs.Video, now, c.timeOffset); err != nil {
		log.Errorf("Pre-event backfill failed: %v", err)
	}
	for _, l := range c.Listeners {
		l.SessionStarted(outs.Record)
	}
}

func (c *Controller) closeSession() {
	s := c.session
	if s == nil {
		return
	}
	c.session = nil

	if err := s.outs.Video.Close(); err != nil {
		log.Errorf("Failed to close event recording: %v", err)
	}
	if s.outs.Record != nil {
		s.outs.Record.UpdateRaw()
	}
	if c.transcoder != nil && s.outs.Record != nil {
		c.transcoder.Convert(s.outs.Record)
	}
	sessionsCompleted.Inc()
	for _, l := range c.Listeners {
		l.SessionEnded(s.outs.Record)
	}
}

// Close finalizes the primary output and any active event session. It never
// waits on background conversions or notifications.
func (c *Controller) Close() error {
	c.closeSession()
	var err error
	if c.primary != nil {
		err = c.primary.Close()
	}
	if c.pts != nil {
		c.pts.Close()
	}
	if c.meta != nil {
		c.meta.Close()
	}
	return err
}
