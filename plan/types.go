package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is one finalized entry of a conversation.
type ConversationMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage creates a message with a time ordered (v7) id.
func NewMessage(role Role, content string, now time.Time) ConversationMessage {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ConversationMessage{
		ID:        id.String(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
}

type Pace string

const (
	PaceRelaxed  Pace = "relaxed"
	PaceModerate Pace = "moderate"
	PacePacked   Pace = "packed"
)

func (p Pace) Valid() bool {
	switch p {
	case PaceRelaxed, PaceModerate, PacePacked:
		return true
	}
	return false
}

type Accessibility struct {
	Mobility bool     `json:"mobility"`
	Dietary  []string `json:"dietary"`
	Other    string   `json:"other,omitempty"`
}

type UserPreferences struct {
	Budget        float64       `json:"budget"`
	Pace          Pace          `json:"pace"`
	Interests     []string      `json:"interests"`
	Accessibility Accessibility `json:"accessibility"`
}

// PlanRequest is the body of POST /api/plan.
type PlanRequest struct {
	Messages         []ConversationMessage `json:"messages"`
	UserPreferences  *UserPreferences      `json:"userPreferences"`
	CurrentItinerary json.RawMessage       `json:"currentItinerary,omitempty"`
	SessionID        string                `json:"sessionId,omitempty"`
}

var ErrInvalidRequest = errors.New("invalid plan request")

// Validate checks the fields every strategy relies on.
func (r PlanRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: messages are required", ErrInvalidRequest)
	}
	if last := r.Messages[len(r.Messages)-1]; last.Role != RoleUser {
		return fmt.Errorf("%w: last message must come from the user", ErrInvalidRequest)
	}
	for i, m := range r.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidRequest, i, m.Role)
		}
	}
	if r.UserPreferences == nil {
		return fmt.Errorf("%w: userPreferences are required", ErrInvalidRequest)
	}
	if !r.UserPreferences.Pace.Valid() {
		return fmt.Errorf("%w: unknown pace %q", ErrInvalidRequest, r.UserPreferences.Pace)
	}
	if r.UserPreferences.Budget < 0 {
		return fmt.Errorf("%w: budget must not be negative", ErrInvalidRequest)
	}
	return nil
}

// LatestUserText returns the content of the newest user message.
func (r PlanRequest) LatestUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// HasItinerary reports whether a non-empty itinerary snapshot was supplied.
func (r PlanRequest) HasItinerary() bool {
	raw := bytes.TrimSpace(r.CurrentItinerary)
	switch string(raw) {
	case "", "null", "{}", "[]":
		return false
	}
	return true
}

// FocusDay picks the day an action should target: the first day listed in
// the itinerary snapshot, or 1.
func (r PlanRequest) FocusDay() int {
	var snapshot struct {
		Days []struct {
			Day int `json:"day"`
		} `json:"days"`
	}
	if err := json.Unmarshal(r.CurrentItinerary, &snapshot); err != nil {
		return 1
	}
	for _, d := range snapshot.Days {
		if d.Day > 0 {
			return d.Day
		}
	}
	return 1
}

// StreamEvent is one frame of a plan stream.
type StreamEvent struct {
	Content    string            `json:"content,omitempty"`
	Actions    []ItineraryAction `json:"actions,omitempty"`
	IsComplete bool              `json:"isComplete,omitempty"`
}

// Empty reports whether e carries nothing worth sending.
func (e StreamEvent) Empty() bool {
	return e.Content == "" && len(e.Actions) == 0 && !e.IsComplete
}
