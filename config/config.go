package config

import (
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the full process configuration. Loaded from YAML; environment
// variables in the file are expanded before parsing.
type Config struct {
	// Output selects the primary destination: a file path (may contain a
	// %d verb for the segment counter), a udp:// or tcp:// URI, or "-" for
	// stdout. Empty disables primary output.
	Output string `yaml:"output"`

	// SegmentMS rotates the primary file after this many milliseconds
	// (waiting for a keyframe). Zero disables segmenting.
	SegmentMS int64 `yaml:"segment_ms"`

	// Split rotates the primary file whenever output resumes after a pause.
	Split bool `yaml:"split"`

	// Wrap resets the segment counter after this many files.
	Wrap int `yaml:"wrap"`

	// Flush syncs output files after every write.
	Flush bool `yaml:"flush"`

	// CircularMB selects an in-memory ring of this size as the primary
	// destination; Output then names the dump file written on shutdown.
	CircularMB int64 `yaml:"circular_mb"`

	// Framerate is the nominal encoder frame rate; it sizes the pre-event
	// buffer.
	Framerate float64 `yaml:"framerate"`

	// Pause starts with primary output disabled.
	Pause bool `yaml:"pause"`

	// SavePTS receives one timecode line per forwarded frame.
	SavePTS string `yaml:"save_pts"`

	// Metadata enables the per-frame metadata log ("-" for stdout);
	// MetadataFormat is "txt" or "json".
	Metadata       string `yaml:"metadata"`
	MetadataFormat string `yaml:"metadata_format"`

	// PreEventSecs of history are kept for backfilling event recordings.
	PreEventSecs float64 `yaml:"pre_event_secs"`

	// EventWindowSecs bounds an event recording past its latest trigger.
	EventWindowSecs float64 `yaml:"event_window_secs"`

	// EventPath is the base directory for event recordings ("~" expands).
	EventPath string `yaml:"event_path"`

	// WebhookURL receives a best-effort POST of the first frame after each
	// detection.
	WebhookURL string `yaml:"webhook_url"`

	// PushDSN is the MySQL DSN for web push subscriptions. Empty disables
	// push notifications.
	PushDSN string `yaml:"push_dsn"`

	NotificationHoursStart int `yaml:"notification_hours_start"`
	NotificationHoursEnd   int `yaml:"notification_hours_end"`
}

// FromFile loads and validates a config file, applying defaults.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Framerate == 0 {
		cfg.Framerate = 30
	}
	if cfg.EventWindowSecs == 0 {
		cfg.EventWindowSecs = 10
	}
	if cfg.MetadataFormat == "" {
		cfg.MetadataFormat = "json"
	}
	if cfg.EventPath == "" {
		cfg.EventPath = "~"
	}
	if cfg.NotificationHoursEnd == 0 {
		cfg.NotificationHoursStart = 6
		cfg.NotificationHoursEnd = 20
	}

	log.Infof("Loaded configuration: %v", spew.Sdump(cfg))
	return &cfg, nil
}
