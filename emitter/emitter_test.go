package emitter

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/tmc/langchaingo/llms"
)

// fakeLLM streams chunks through the streaming func and fails with err
// right before chunk errAt when err is set.
type fakeLLM struct {
	chunks []string
	err    error
	errAt  int
	got    []llms.MessageContent
}

func (f *fakeLLM) GenerateContent(ctx context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs

	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	for i, c := range f.chunks {
		if f.err != nil && i == f.errAt {
			return nil, f.err
		}
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	if f.err != nil && f.errAt >= len(f.chunks) {
		return nil, f.err
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: strings.Join(f.chunks, "")}},
	}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func newRequest(text string, itinerary string) plan.PlanRequest {
	req := plan.PlanRequest{
		Messages: []plan.ConversationMessage{plan.NewMessage(plan.RoleUser, text, time.Now())},
		UserPreferences: &plan.UserPreferences{
			Budget:        100,
			Pace:          plan.PaceModerate,
			Interests:     []string{},
			Accessibility: plan.Accessibility{Dietary: []string{}},
		},
	}
	if itinerary != "" {
		req.CurrentItinerary = json.RawMessage(itinerary)
	}
	return req
}

// collect records every event handed to the sink.
func collect(events *[]plan.StreamEvent) Sink {
	return func(ev plan.StreamEvent) error {
		*events = append(*events, ev)
		return nil
	}
}

func contentOf(events []plan.StreamEvent) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(ev.Content)
	}
	return b.String()
}

func actionsOf(events []plan.StreamEvent) []plan.ItineraryAction {
	var out []plan.ItineraryAction
	for _, ev := range events {
		out = append(out, ev.Actions...)
	}
	return out
}

func terminalCount(events []plan.StreamEvent) int {
	n := 0
	for _, ev := range events {
		if ev.IsComplete {
			n++
		}
	}
	return n
}

func instantMock() *Mock {
	return NewMock(WithPacing(0, 0))
}
