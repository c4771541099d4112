package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/abhirockzz/langchaingo-trip-planner/store"
	"github.com/google/uuid"
)

// FailureMessage is committed as the assistant reply when a stream fails.
const FailureMessage = "Sorry, I encountered an error. Please try again."

var (
	ErrStreamActive = errors.New("a response is already streaming")
	ErrEmptyMessage = errors.New("message is empty")
)

// Outcome describes how one SendMessage call ended.
type Outcome struct {
	State State
	// Reply is the committed assistant message, nil when nothing was
	// committed.
	Reply *plan.ConversationMessage
	// Cause is the transport error behind StateFailed.
	Cause error
}

// Session owns one conversation and at most one active stream.
type Session struct {
	id       string
	streamer Streamer
	store    store.Store
	logger   *slog.Logger
	now      func() time.Time

	// storeMu orders saves against the delete in Clear.
	storeMu sync.Mutex

	mu       sync.Mutex
	messages []plan.ConversationMessage
	active   *Assembler
	cancel   context.CancelFunc
	last     State
	gen      uint64
}

type SessionOption func(*Session)

// WithStore persists the history after every committed message.
func WithStore(s store.Store) SessionOption {
	return func(sess *Session) {
		sess.store = s
	}
}

func WithSessionID(id string) SessionOption {
	return func(sess *Session) {
		sess.id = id
	}
}

func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(sess *Session) {
		sess.logger = logger
	}
}

func NewSession(streamer Streamer, opts ...SessionOption) *Session {
	s := &Session{
		id:       uuid.NewString(),
		streamer: streamer,
		logger:   slog.Default(),
		now:      time.Now,
		messages: []plan.ConversationMessage{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Restore replaces the in-memory history with the stored one.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	msgs, err := s.store.Load(ctx, s.id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return ErrStreamActive
	}
	s.messages = msgs
	return nil
}

// SendMessage appends text as a user message and streams the reply. It
// blocks until the stream reaches a terminal state. Transport failures are
// reported through Outcome, never as an error.
func (s *Session) SendMessage(ctx context.Context, text string, prefs plan.UserPreferences, itinerary json.RawMessage, h Handlers) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return Outcome{}, ErrStreamActive
	}

	s.messages = append(s.messages, plan.NewMessage(plan.RoleUser, text, s.now()))
	history := cloneMessages(s.messages)

	streamCtx, cancel := context.WithCancel(ctx)
	asm := NewAssembler(h, s.logger)
	_ = asm.Begin()

	s.active = asm
	s.cancel = cancel
	gen := s.gen
	s.mu.Unlock()

	defer cancel()
	s.persist(ctx, gen, history)

	req := plan.PlanRequest{
		Messages:         history,
		UserPreferences:  &prefs,
		CurrentItinerary: itinerary,
		SessionID:        s.id,
	}

	var res Result
	body, err := s.streamer.Stream(streamCtx, req)
	switch {
	case err != nil && streamCtx.Err() != nil:
		res = asm.Abort()
	case err != nil:
		res = asm.Fail(err)
	default:
		res = asm.Consume(streamCtx, body)
		body.Close()
	}

	return s.commit(ctx, gen, res), nil
}

func (s *Session) commit(ctx context.Context, gen uint64, res Result) Outcome {
	s.mu.Lock()
	s.active = nil
	s.cancel = nil

	out := Outcome{State: res.State, Cause: res.Err}
	if gen != s.gen {
		// cleared while streaming
		s.mu.Unlock()
		return out
	}
	s.last = res.State

	switch res.State {
	case StateCompleted:
		reply := plan.NewMessage(plan.RoleAssistant, res.Text, s.now())
		s.messages = append(s.messages, reply)
		out.Reply = &reply
	case StateFailed:
		s.logger.Warn("plan stream failed", "session_id", s.id, "error", res.Err)
		reply := plan.NewMessage(plan.RoleAssistant, FailureMessage, s.now())
		s.messages = append(s.messages, reply)
		out.Reply = &reply
	}
	snapshot := cloneMessages(s.messages)
	s.mu.Unlock()

	if out.Reply != nil {
		s.persist(ctx, gen, snapshot)
	}
	return out
}

// Stop cancels the active stream, if any. Calling it again is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Clear stops any active stream and drops the history. A reply that was
// streaming is never committed.
func (s *Session) Clear(ctx context.Context) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.messages = []plan.ConversationMessage{}
	s.last = StateIdle
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.store.Delete(ctx, s.id)
}

func (s *Session) Messages() []plan.ConversationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages)
}

func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Live returns the partial reply of the active stream.
func (s *Session) Live() string {
	s.mu.Lock()
	asm := s.active
	s.mu.Unlock()
	if asm == nil {
		return ""
	}
	return asm.Buffer()
}

// State returns the state of the active stream, or the terminal state of
// the last one.
func (s *Session) State() State {
	s.mu.Lock()
	asm := s.active
	last := s.last
	s.mu.Unlock()
	if asm != nil {
		return asm.State()
	}
	return last
}

// persist saves msgs unless the history was cleared after generation gen.
func (s *Session) persist(ctx context.Context, gen uint64, msgs []plan.ConversationMessage) {
	if s.store == nil {
		return
	}

	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}
	if err := s.store.Save(context.WithoutCancel(ctx), s.id, msgs); err != nil {
		s.logger.Warn("failed to save history", "session_id", s.id, "error", err)
	}
}

func cloneMessages(msgs []plan.ConversationMessage) []plan.ConversationMessage {
	out := make([]plan.ConversationMessage, len(msgs))
	copy(out, msgs)
	return out
}
