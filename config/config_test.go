package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "picam.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

// TestFromFile verifies YAML parsing of the documented keys.
func TestFromFile(t *testing.T) {
	path := writeConfig(t, `
output: /tmp/out%d.h264
segment_ms: 5000
split: true
wrap: 10
framerate: 15
pre_event_secs: 2.5
event_window_secs: 8
event_path: /tmp/events
webhook_url: http://localhost:9000/hook
`)
	cfg, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if cfg.Output != "/tmp/out%d.h264" {
		t.Errorf("Output = %q", cfg.Output)
	}
	if cfg.SegmentMS != 5000 || !cfg.Split || cfg.Wrap != 10 {
		t.Errorf("Rotation options mismatch: %+v", cfg)
	}
	if cfg.Framerate != 15 || cfg.PreEventSecs != 2.5 || cfg.EventWindowSecs != 8 {
		t.Errorf("Buffering options mismatch: %+v", cfg)
	}
	if cfg.WebhookURL != "http://localhost:9000/hook" {
		t.Errorf("WebhookURL = %q", cfg.WebhookURL)
	}
}

// TestFromFileDefaults verifies defaults applied to an empty config.
func TestFromFileDefaults(t *testing.T) {
	path := writeConfig(t, "output: /tmp/out.h264\n")
	cfg, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if cfg.Framerate != 30 {
		t.Errorf("Default framerate = %v, want 30", cfg.Framerate)
	}
	if cfg.EventWindowSecs != 10 {
		t.Errorf("Default event window = %v, want 10", cfg.EventWindowSecs)
	}
	if cfg.MetadataFormat != "json" {
		t.Errorf("Default metadata format = %q, want json", cfg.MetadataFormat)
	}
	if cfg.EventPath != "~" {
		t.Errorf("Default event path = %q, want ~", cfg.EventPath)
	}
	if cfg.NotificationHoursStart != 6 || cfg.NotificationHoursEnd != 20 {
		t.Errorf("Default notification hours = %d-%d, want 6-20",
			cfg.NotificationHoursStart, cfg.NotificationHoursEnd)
	}
}

// TestFromFileExpandsEnv verifies environment expansion inside the file.
func TestFromFileExpandsEnv(t *testing.T) {
	t.Setenv("PICAM_OUT", "/data/cam")
	path := writeConfig(t, "output: ${PICAM_OUT}/out.h264\n")
	cfg, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if cfg.Output != "/data/cam/out.h264" {
		t.Errorf("Output = %q, want expanded path", cfg.Output)
	}
}

// TestFromFileMissing verifies a useful error for a missing file.
func TestFromFileMissing(t *testing.T) {
	if _, err := FromFile("/nonexistent/picam.yaml"); err == nil {
		t.Fatal("Expected error for missing config")
	}
}
