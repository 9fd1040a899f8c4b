package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"picam/video"
)

// TestWebhookSend verifies the POST payload and timestamp header.
func TestWebhookSend(t *testing.T) {
	var gotBody string
	var gotTS string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotTS = r.Header.Get("X-Frame-Timestamp")
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	if err := wh.Send([]byte("frame-bytes"), 1234567); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotBody != "frame-bytes" {
		t.Errorf("Body = %q", gotBody)
	}
	if gotTS != "1234567" {
		t.Errorf("X-Frame-Timestamp = %q", gotTS)
	}
}

// TestWebhookErrorStatus verifies a non-2xx response surfaces as an error.
func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	if err := wh.Send([]byte("x"), 0); err == nil {
		t.Fatal("Expected error for 403 response")
	}
}

type chanListener struct {
	c chan *Notification
}

func (l *chanListener) Notify(n *Notification) error {
	l.c <- n
	return nil
}

// TestNotifierFanout verifies a session start inside notification hours
// reaches every listener.
func TestNotifierFanout(t *testing.T) {
	l1 := &chanListener{c: make(chan *Notification, 1)}
	l2 := &chanListener{c: make(chan *Notification, 1)}
	n := &Notifier{Listeners: []NotifyListener{l1, l2}}

	n.SessionStarted(&video.VideoRecord{
		Identifier:  "abc123",
		TriggeredAt: time.Date(2026, 8, 29, 12, 0, 0, 0, time.Local),
	})

	for _, l := range []*chanListener{l1, l2} {
		select {
		case got := <-l.c:
			if got.Identifier != "abc123" {
				t.Errorf("Identifier = %q", got.Identifier)
			}
		case <-time.After(time.Second):
			t.Fatal("Timeout waiting for notification")
		}
	}
}

// TestNotifierQuietHours verifies suppression outside notification hours.
func TestNotifierQuietHours(t *testing.T) {
	l := &chanListener{c: make(chan *Notification, 1)}
	n := &Notifier{
		Listeners:              []NotifyListener{l},
		NotificationHoursStart: 6,
		NotificationHoursEnd:   20,
	}

	n.SessionStarted(&video.VideoRecord{
		Identifier:  "night",
		TriggeredAt: time.Date(2026, 8, 29, 3, 0, 0, 0, time.Local),
	})

	select {
	case <-l.c:
		t.Fatal("Notification sent during quiet hours")
	case <-time.After(50 * time.Millisecond):
	}
}
