package emitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

func TestBuildMessages(t *testing.T) {
	req := newRequest("Make today less packed", sampleItinerary)
	req.UserPreferences.Interests = []string{"museums", "food"}
	req.UserPreferences.Accessibility.Dietary = []string{"vegetarian"}
	req.Messages = append([]plan.ConversationMessage{
		plan.NewMessage(plan.RoleUser, "Plan Lisbon", req.Messages[0].CreatedAt),
		plan.NewMessage(plan.RoleAssistant, "Here is a plan", req.Messages[0].CreatedAt),
	}, req.Messages...)

	msgs, err := BuildMessages(req)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[3].Role)

	system := msgs[0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, system, "Pace: moderate")
	assert.Contains(t, system, "museums, food")
	assert.Contains(t, system, "vegetarian")
	assert.Contains(t, system, sampleItinerary)
	assert.Contains(t, system, "[ACTION:<type>:<json-object>]")
	assert.Contains(t, system, "rebalanceRoute")
}

func TestModelEmit(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"Sure! [ACTION:light", `enDay:{"day":1}]`, " Let's relax."}}
	m := NewModel(llm)

	var events []plan.StreamEvent
	require.NoError(t, m.Emit(context.Background(), newRequest("less packed please", ""), collect(&events)))

	assert.Equal(t, "Sure!  Let's relax.", contentOf(events))
	actions := actionsOf(events)
	require.Len(t, actions, 1)
	assert.Equal(t, plan.ActionLightenDay, actions[0].Type)
	assert.Equal(t, 1, terminalCount(events))
	assert.True(t, events[len(events)-1].IsComplete)
	assert.NotEmpty(t, llm.got)
}

func TestModelEmitNilModel(t *testing.T) {
	var m *Model
	err := m.Emit(context.Background(), newRequest("hi", ""), func(plan.StreamEvent) error { return nil })
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestModelEmitProviderError(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"a"}, err: errors.New("boom"), errAt: 0}

	var events []plan.StreamEvent
	err := NewModel(llm).Emit(context.Background(), newRequest("hi", ""), collect(&events))
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Empty(t, events)
}

// openAIStream fakes the chat completions endpoint of an OpenAI compatible
// server in streaming mode.
func openAIStream(t *testing.T, status int, chunks ...string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"test-model\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":%q},\"finish_reason\":null}]}\n\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"test-model\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func newOpenAI(t *testing.T, baseURL string) llms.Model {
	t.Helper()

	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken("test-token"),
		openai.WithModel("test-model"),
	)
	require.NoError(t, err)
	return llm
}

func TestModelEmitOpenAI(t *testing.T) {
	srv := openAIStream(t, http.StatusOK, "Here you go. ", `[ACTION:rebalanceRoute:{"day":2}]`, "Enjoy!")
	defer srv.Close()

	var events []plan.StreamEvent
	err := NewModel(newOpenAI(t, srv.URL)).Emit(context.Background(), newRequest("shorter walks", sampleItinerary), collect(&events))
	require.NoError(t, err)

	assert.Equal(t, "Here you go. Enjoy!", contentOf(events))
	actions := actionsOf(events)
	require.Len(t, actions, 1)
	assert.Equal(t, plan.ActionRebalanceRoute, actions[0].Type)
	assert.Equal(t, 1, terminalCount(events))
}

func TestResolverFallsBackOnOpenAIError(t *testing.T) {
	srv := openAIStream(t, http.StatusUnauthorized)
	defer srv.Close()

	r := NewResolver(NewModel(newOpenAI(t, srv.URL)), instantMock(), nil)
	req := newRequest("Any hidden gem?", sampleItinerary)

	var events []plan.StreamEvent
	report, err := r.Resolve(context.Background(), req, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, StrategyMock, report.Strategy)
	assert.Equal(t, ReasonProviderError, report.FallbackReason)

	text, actions := instantMock().Respond(req)
	assert.Equal(t, text, contentOf(events))
	assert.Equal(t, actions, actionsOf(events))
}
