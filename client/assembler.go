package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/abhirockzz/langchaingo-trip-planner/sse"
)

type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateFailed
}

// ErrIncompleteStream is reported when the transport ends before the
// terminal event.
var ErrIncompleteStream = errors.New("stream ended before completion")

// Handlers receive stream output as it arrives. Both are optional.
type Handlers struct {
	// OnDelta gets every content fragment together with the text assembled
	// so far.
	OnDelta func(delta, buffer string)
	// OnAction gets every action in stream order.
	OnAction func(plan.ItineraryAction)
}

// Result is the terminal outcome of one stream.
type Result struct {
	State State
	// Text is the finalized content; empty unless State is StateCompleted.
	Text    string
	Actions int
	// Err holds the transport error for StateFailed.
	Err error
}

const readChunkSize = 4096

// Assembler consumes one plan stream and reconstructs its events.
type Assembler struct {
	handlers Handlers
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	buf     strings.Builder
	actions int
}

func NewAssembler(h Handlers, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{handlers: h, logger: logger}
}

func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Buffer returns the text received so far.
func (a *Assembler) Buffer() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// Begin moves an idle assembler to streaming.
func (a *Assembler) Begin() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateIdle {
		return fmt.Errorf("cannot begin stream in state %s", a.state)
	}
	a.state = StateStreaming
	return nil
}

// Abort ends a streaming assembler and discards its buffer.
func (a *Assembler) Abort() Result {
	return a.finish(StateAborted, nil)
}

// Fail ends a streaming assembler because of a transport error.
func (a *Assembler) Fail(err error) Result {
	return a.finish(StateFailed, err)
}

func (a *Assembler) finish(state State, err error) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.Terminal() {
		return Result{State: a.state, Actions: a.actions}
	}
	a.state = state

	res := Result{State: state, Actions: a.actions, Err: err}
	if state == StateCompleted {
		res.Text = a.buf.String()
	}
	a.buf.Reset()
	return res
}

// Consume reads body until the terminal event, cancellation or a transport
// error. Bytes already read are always processed before cancellation is
// observed. Begin must have been called.
func (a *Assembler) Consume(ctx context.Context, body io.Reader) Result {
	if s := a.State(); s != StateStreaming {
		return Result{State: s, Err: fmt.Errorf("cannot consume stream in state %s", s)}
	}

	var (
		lines sse.LineSplitter
		chunk = make([]byte, readChunkSize)
	)
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			for _, line := range lines.Write(chunk[:n]) {
				if a.handleLine(line) {
					return a.finish(StateCompleted, nil)
				}
			}
		}

		if ctx.Err() != nil {
			return a.Abort()
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			// a final frame may lack its newline
			if a.handleLine(lines.Pending()) {
				return a.finish(StateCompleted, nil)
			}
			return a.Fail(ErrIncompleteStream)
		}
		return a.Fail(err)
	}
}

// handleLine applies one line and reports whether it was the terminal event.
func (a *Assembler) handleLine(line string) bool {
	ev, ok, err := sse.ParseFrame(line)
	if err != nil {
		a.logger.Debug("skipping malformed frame", "error", err)
		return false
	}
	if !ok {
		return false
	}

	if ev.Content != "" {
		a.mu.Lock()
		a.buf.WriteString(ev.Content)
		buffer := a.buf.String()
		a.mu.Unlock()

		if a.handlers.OnDelta != nil {
			a.handlers.OnDelta(ev.Content, buffer)
		}
	}

	for _, action := range ev.Actions {
		a.mu.Lock()
		a.actions++
		a.mu.Unlock()

		if a.handlers.OnAction != nil {
			a.handlers.OnAction(action)
		}
	}

	return ev.IsComplete
}
