package node

import (
	"strings"
	"sync"
)

// DefaultRingSize is how many log lines each node retains for its dashboard
// pane.
const DefaultRingSize = 100

// LogRing is a fixed-capacity ring of log lines. It implements io.Writer so a
// console-formatted logger can tee into it, and the dashboard reads the
// retained lines back out through Lines.
type LogRing struct {
	mu      sync.Mutex
	lines   []string
	next    int
	full    bool
	partial strings.Builder
}

// NewLogRing creates a ring retaining the last capacity lines.
func NewLogRing(capacity int) *LogRing {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &LogRing{lines: make([]string, capacity)}
}

// Write splits p into lines and appends each to the ring. A trailing fragment
// without a newline is buffered until the rest of the line arrives.
func (r *LogRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range p {
		if b == '\n' {
			r.push(r.partial.String())
			r.partial.Reset()
			continue
		}
		r.partial.WriteByte(b)
	}
	return len(p), nil
}

func (r *LogRing) push(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
}

// Lines returns the retained lines, oldest first.
func (r *LogRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.lines))
	if r.full {
		out = append(out, r.lines[r.next:]...)
	}
	return append(out, r.lines[:r.next]...)
}
