// Package sse implements the line framing used by the plan stream:
// every event is one `data: <json>` line followed by a blank line.
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
)

const (
	ContentType = "text/event-stream"
	FramePrefix = "data: "
)

// Writer encodes events onto a response and flushes after each one.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter returns a Writer. flusher may be nil.
func NewWriter(w io.Writer, flusher http.Flusher) *Writer {
	return &Writer{w: w, flusher: flusher}
}

func (w *Writer) WriteEvent(ev plan.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(FramePrefix) + len(data) + 2)
	buf.WriteString(FramePrefix)
	buf.Write(data)
	buf.WriteString("\n\n")

	if _, err := w.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// LineSplitter turns arbitrary byte chunks into complete lines. The
// trailing fragment of each chunk is carried over to the next one.
type LineSplitter struct {
	carry []byte
}

// Write consumes chunk and returns the lines it completed, without their
// terminators.
func (s *LineSplitter) Write(chunk []byte) []string {
	s.carry = append(s.carry, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(s.carry, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, strings.TrimSuffix(string(s.carry[:i]), "\r"))
		s.carry = s.carry[i+1:]
	}
	if len(s.carry) == 0 {
		s.carry = nil
	}
	return lines
}

// Pending returns the incomplete fragment still buffered.
func (s *LineSplitter) Pending() string {
	return string(s.carry)
}

// ParseFrame decodes a single line. ok is false for blank lines, lines
// without the frame prefix and payloads that are not a valid event.
func ParseFrame(line string) (ev plan.StreamEvent, ok bool, err error) {
	if !strings.HasPrefix(line, FramePrefix) {
		return plan.StreamEvent{}, false, nil
	}
	if err := json.Unmarshal([]byte(line[len(FramePrefix):]), &ev); err != nil {
		return plan.StreamEvent{}, false, fmt.Errorf("decode frame: %w", err)
	}
	return ev, true, nil
}
