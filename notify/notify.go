package notify

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"picam/video"
)

const webhookTimeout = 5 * time.Second

// Webhook posts frame payloads to a configured endpoint. A single bounded
// attempt per call; callers treat failures as non-fatal.
type Webhook struct {
	URL string

	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:    url,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

// Send implements video.Notifier.
func (w *Webhook) Send(payload []byte, timestamp int64) error {
	req, err := http.NewRequest(http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Frame-Timestamp", strconv.FormatInt(timestamp, 10))
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %v", resp.Status)
	}
	return nil
}

// Notification is sent to all NotifyListeners registered with Notifier.
type Notification struct {
	TimeString string
	Identifier string
}

type NotifyListener interface {
	Notify(n *Notification) error
}

// Notifier fans out event-recording notifications to registered listeners.
// It implements video.SessionListener.
type Notifier struct {
	Listeners []NotifyListener

	// Notifications are only sent from Start through End (local hour of
	// day); outside that window they are suppressed. Disabled when End is
	// zero.
	NotificationHoursStart int
	NotificationHoursEnd   int

	l sync.Mutex
}

// SessionStarted is invoked when a detection opens an event recording.
func (n *Notifier) SessionStarted(r *video.VideoRecord) {
	n.l.Lock()
	defer n.l.Unlock()

	if r == nil {
		return
	}
	ts := r.TriggeredAt
	if n.NotificationHoursEnd > 0 && (ts.Hour() < n.NotificationHoursStart || ts.Hour() >= n.NotificationHoursEnd) {
		log.Infof("Would send notification, but currently in quiet hours.")
		return
	}

	notification := &Notification{
		TimeString: ts.Format("3:04 PM"),
		Identifier: r.Identifier,
	}
	log.Infof("Sending notification for event %v", r.Identifier)
	for _, l := range n.Listeners {
		go func(l NotifyListener) {
			if err := l.Notify(notification); err != nil {
				log.Errorf("Failed to send notification: %v", err)
			}
		}(l)
	}
}

// SessionEnded is invoked when the event recording completes.
func (n *Notifier) SessionEnded(r *video.VideoRecord) {
	// Nothing to send; listeners learn about the finished artifact through
	// filesystem updates.
}
