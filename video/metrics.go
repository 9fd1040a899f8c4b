package video

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picam_frames_forwarded_total",
		Help: "Frames forwarded to the primary sink.",
	})
	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picam_frames_dropped_total",
		Help: "Frames dropped while output was disabled or waiting for a keyframe.",
	})
	prebufferEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picam_prebuffer_evictions_total",
		Help: "Frames evicted from the pre-event buffer.",
	})
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picam_event_sessions_started_total",
		Help: "Event recording sessions opened by detections.",
	})
	sessionsExtended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picam_event_sessions_extended_total",
		Help: "Detections that extended an already active session.",
	})
	sessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picam_event_sessions_completed_total",
		Help: "Event recording sessions closed.",
	})
	notifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picam_notify_failures_total",
		Help: "Best-effort detection notifications that failed.",
	})
	transcodeSuccesses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picam_transcode_successes_total",
		Help: "Raw event recordings successfully converted.",
	})
	transcodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picam_transcode_failures_total",
		Help: "Conversions that failed; the raw artifact is retained.",
	})
)
