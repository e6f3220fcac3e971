package gena

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/logging"
)

// Event is one NOTIFY delivered to the receiver
type Event struct {
	SID        string            `json:"sid"`
	Seq        uint32            `json:"seq"`
	Properties map[string]string `json:"properties"`
	ReceivedAt time.Time         `json:"received_at"`
	RemoteAddr string            `json:"remote_addr"`
}

// EventHandler is called once per accepted event, on the request goroutine
type EventHandler func(Event)

// captureRecord is one line of a capture file
type captureRecord struct {
	Event
	Body string `json:"body"`
}

// captureWriter appends received events to a JSON Lines file, one object per
// line. A nil writer discards everything.
type captureWriter struct {
	mu   sync.Mutex
	path string
}

func newCaptureWriter(dir string, started time.Time) (*captureWriter, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	return &captureWriter{
		path: filepath.Join(dir, fmt.Sprintf("events-%s.jsonl", started.Format("20060102-150405"))),
	}, nil
}

func (c *captureWriter) write(ev Event, body []byte) {
	if c == nil {
		return
	}

	data, err := json.Marshal(captureRecord{Event: ev, Body: string(body)})
	if err != nil {
		logging.Error("Failed to marshal event capture", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Error("Failed to open capture file", zap.String("filename", c.path), zap.Error(err))
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write capture file", zap.String("filename", c.path), zap.Error(err))
		return
	}
	logging.Debug("Captured event", zap.String("filename", c.path), zap.String("sid", ev.SID))
}
