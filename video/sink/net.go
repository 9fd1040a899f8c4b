package sink

import (
	"fmt"
	"net"
	"strings"
)

// NetSink streams frames to a udp:// or tcp:// destination. Delivery is
// best-effort; there is no reconnection and no buffering beyond the socket's
// own.
type NetSink struct {
	conn net.Conn
}

func NewNetSink(uri string) (*NetSink, error) {
	var network string
	switch {
	case strings.HasPrefix(uri, "udp://"):
		network = "udp"
	case strings.HasPrefix(uri, "tcp://"):
		network = "tcp"
	default:
		return nil, fmt.Errorf("unsupported network output %q", uri)
	}
	addr := strings.TrimPrefix(uri, network+"://")
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("connect %v: %w", uri, err)
	}
	return &NetSink{conn: conn}, nil
}

func (s *NetSink) Write(p []byte, timestamp int64, flags Flag) error {
	if len(p) == 0 {
		return nil
	}
	if _, err := s.conn.Write(p); err != nil {
		return fmt.Errorf("network write: %w", err)
	}
	return nil
}

func (s *NetSink) Close() error {
	return s.conn.Close()
}
