package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

const preamble = `You are a friendly travel planning assistant helping a traveller refine their trip.

Traveller preferences:
- Daily budget: {{.budget}}
- Pace: {{.pace}}
- Interests: {{.interests}}
- Mobility constraints: {{.mobility}}
- Dietary requirements: {{.dietary}}
- Other needs: {{.other}}

Current itinerary:
{{.itinerary}}

When you change the itinerary, describe the change briefly and append one marker per change using
the exact syntax [ACTION:<type>:<json-object>] where <type> is one of: {{.actionTypes}}.
Markers must not be nested and the payload must be a single JSON object, for example
[ACTION:lightenDay:{"day":1}].`

var preambleTemplate = prompts.NewPromptTemplate(
	preamble,
	[]string{"budget", "pace", "interests", "mobility", "dietary", "other", "itinerary", "actionTypes"},
)

// Model streams answers from a langchaingo model.
type Model struct {
	llm         llms.Model
	temperature float64
	logger      *slog.Logger
}

type ModelOption func(*Model)

func WithTemperature(t float64) ModelOption {
	return func(m *Model) {
		m.temperature = t
	}
}

func WithModelLogger(logger *slog.Logger) ModelOption {
	return func(m *Model) {
		m.logger = logger
	}
}

func NewModel(llm llms.Model, opts ...ModelOption) *Model {
	m := &Model{
		llm:         llm,
		temperature: 0.7,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BuildMessages renders the system preamble and maps the history onto
// langchaingo message roles.
func BuildMessages(req plan.PlanRequest) ([]llms.MessageContent, error) {
	prefs := plan.UserPreferences{}
	if req.UserPreferences != nil {
		prefs = *req.UserPreferences
	}

	itinerary := "none yet"
	if req.HasItinerary() {
		itinerary = string(req.CurrentItinerary)
	}

	types := make([]string, 0, len(plan.ActionTypes))
	for _, t := range plan.ActionTypes {
		types = append(types, string(t))
	}

	system, err := preambleTemplate.Format(map[string]any{
		"budget":      prefs.Budget,
		"pace":        string(prefs.Pace),
		"interests":   listOrNone(prefs.Interests),
		"mobility":    mobility(prefs.Accessibility.Mobility),
		"dietary":     listOrNone(prefs.Accessibility.Dietary),
		"other":       orNone(prefs.Accessibility.Other),
		"itinerary":   itinerary,
		"actionTypes": strings.Join(types, ", "),
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	msgs := make([]llms.MessageContent, 0, len(req.Messages)+1)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, m := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == plan.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, m.Content))
	}
	return msgs, nil
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func mobility(limited bool) string {
	if limited {
		return "limited, prefer step-free routes and short walks"
	}
	return "none"
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

func (m *Model) Emit(ctx context.Context, req plan.PlanRequest, sink Sink) error {
	if m == nil || m.llm == nil {
		return ErrProviderUnavailable
	}

	msgs, err := BuildMessages(req)
	if err != nil {
		return err
	}

	var (
		scanner  plan.ActionScanner
		streamed bool
	)
	forward := func(text string, actions []plan.ItineraryAction) error {
		ev := plan.StreamEvent{Content: text, Actions: actions}
		if ev.Empty() {
			return nil
		}
		streamed = true
		return sink(ev)
	}

	resp, err := m.llm.GenerateContent(ctx, msgs,
		llms.WithTemperature(m.temperature),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return forward(scanner.Feed(string(chunk)))
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}

	if !streamed && resp != nil && len(resp.Choices) > 0 {
		m.logger.Debug("provider returned without streaming, forwarding full reply")
		if err := forward(scanner.Feed(resp.Choices[0].Content)); err != nil {
			return err
		}
	}
	if err := forward(scanner.Flush()); err != nil {
		return err
	}
	return sink(plan.StreamEvent{IsComplete: true})
}
