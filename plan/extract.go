package plan

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const markerPrefix = "[ACTION:"

// maxPendingMarker bounds how much text the scanner holds back while waiting
// for a marker to close.
const maxPendingMarker = 4096

type markerState int

const (
	markerInvalid markerState = iota
	markerPartial
	markerComplete
)

// marker is the result of reading one `[ACTION:<type>:<json-object>]` token
// from the start of a string.
type marker struct {
	state   markerState
	kind    string
	payload string
	end     int
}

// readMarker reads a marker at the start of s. A partial marker is one that
// could still become complete if more text were appended.
func readMarker(s string) marker {
	i := len(markerPrefix)
	for i < len(s) && isWordByte(s[i]) {
		i++
	}
	if i == len(s) {
		return marker{state: markerPartial}
	}
	if i == len(markerPrefix) || s[i] != ':' {
		return marker{state: markerInvalid}
	}
	kind := s[len(markerPrefix):i]

	i++
	if i == len(s) {
		return marker{state: markerPartial}
	}
	if s[i] != '{' {
		return marker{state: markerInvalid}
	}

	dec := json.NewDecoder(strings.NewReader(s[i:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return marker{state: markerPartial}
		}
		return marker{state: markerInvalid}
	}

	end := i + int(dec.InputOffset())
	if end == len(s) {
		return marker{state: markerPartial}
	}
	if s[end] != ']' {
		return marker{state: markerInvalid}
	}
	return marker{state: markerComplete, kind: kind, payload: s[i:end], end: end + 1}
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// ExtractActions removes every well-formed `[ACTION:<type>:<json-object>]`
// marker from text and returns the parsed actions in order of appearance.
// Markers whose payload is not a JSON object are left in the text.
func ExtractActions(text string) (string, []ItineraryAction) {
	var (
		out     strings.Builder
		actions []ItineraryAction
		last    int
	)
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], markerPrefix)
		if j < 0 {
			break
		}
		j += i

		m := readMarker(text[j:])
		if m.state != markerComplete {
			i = j + 1
			continue
		}
		out.WriteString(text[last:j])
		actions = append(actions, ItineraryAction{
			Type:    ActionType(m.kind),
			Payload: json.RawMessage(m.payload),
		})
		last = j + m.end
		i = last
	}
	if last == 0 {
		return text, actions
	}
	out.WriteString(text[last:])
	return out.String(), actions
}

// ActionScanner extracts markers from a chunked text stream. A marker split
// across chunks is held back until it closes, up to maxPendingMarker bytes.
type ActionScanner struct {
	pending string
}

// Feed appends chunk to the stream and returns the prose and actions that
// are safe to forward now.
func (s *ActionScanner) Feed(chunk string) (string, []ItineraryAction) {
	data := s.pending + chunk
	s.pending = ""

	if cut := holdBack(data); cut >= 0 {
		s.pending = data[cut:]
		data = data[:cut]
	}
	return ExtractActions(data)
}

// Flush releases whatever is still held back.
func (s *ActionScanner) Flush() (string, []ItineraryAction) {
	data := s.pending
	s.pending = ""
	return ExtractActions(data)
}

// holdBack returns the index of the first marker that may still complete
// with more input, or -1 when all of data can be released.
func holdBack(data string) int {
	for i := 0; i < len(data); {
		j := strings.Index(data[i:], markerPrefix)
		if j < 0 {
			break
		}
		j += i

		m := readMarker(data[j:])
		switch {
		case m.state == markerComplete:
			i = j + m.end
			continue
		case m.state == markerPartial && len(data)-j <= maxPendingMarker:
			return j
		}
		i = j + 1
	}
	for k := min(len(markerPrefix)-1, len(data)); k > 0; k-- {
		if strings.HasSuffix(data, markerPrefix[:k]) {
			return len(data) - k
		}
	}
	return -1
}
