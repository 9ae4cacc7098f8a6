package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// SSEWriter frames server-sent events. Writes are serialised so a heartbeat
// can share the stream with data events.
type SSEWriter struct {
	mu sync.Mutex
	w  http.ResponseWriter
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &SSEWriter{w: w}
}

// Write sends one event. Multi-line data is split over several data lines.
func (s *SSEWriter) Write(event, data string) error {
	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return s.send(b.String())
}

func (s *SSEWriter) WriteJSON(event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Write(event, string(data))
}

// Comment sends a line clients ignore, keeping idle proxies from closing the
// stream.
func (s *SSEWriter) Comment(text string) error {
	return s.send(": " + text + "\n\n")
}

// Close tells the client the stream has ended.
func (s *SSEWriter) Close() error {
	return s.Write("close", "[DONE]")
}

func (s *SSEWriter) send(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write([]byte(frame)); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
