package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/abhirockzz/langchaingo-trip-planner/logging"
	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames(t *testing.T, events ...plan.StreamEvent) string {
	t.Helper()
	var b strings.Builder
	for _, ev := range events {
		data, err := json.Marshal(ev)
		require.NoError(t, err)
		b.WriteString("data: ")
		b.Write(data)
		b.WriteString("\n\n")
	}
	return b.String()
}

func action(t *testing.T, typ plan.ActionType, day int) plan.ItineraryAction {
	t.Helper()
	a, err := plan.NewAction(typ, plan.LightenDayPayload{Day: day})
	require.NoError(t, err)
	return a
}

func newStreaming(h Handlers) *Assembler {
	a := NewAssembler(h, logging.Discard())
	_ = a.Begin()
	return a
}

func TestAssemblerCompleted(t *testing.T) {
	body := frames(t,
		plan.StreamEvent{Content: "Sure!"},
		plan.StreamEvent{Content: " Let's"},
		plan.StreamEvent{Content: " relax."},
		plan.StreamEvent{IsComplete: true},
	)

	var deltas, buffers []string
	a := newStreaming(Handlers{OnDelta: func(delta, buffer string) {
		deltas = append(deltas, delta)
		buffers = append(buffers, buffer)
	}})

	res := a.Consume(context.Background(), strings.NewReader(body))
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "Sure! Let's relax.", res.Text)
	assert.NoError(t, res.Err)
	assert.Equal(t, StateCompleted, a.State())

	assert.Equal(t, []string{"Sure!", " Let's", " relax."}, deltas)
	assert.Equal(t, "Sure! Let's relax.", strings.Join(deltas, ""))
	assert.Equal(t, "Sure! Let's", buffers[1])
}

func TestAssemblerSkipsMalformedFrame(t *testing.T) {
	body := frames(t, plan.StreamEvent{Content: "a"}) +
		"data: {oops\n\n" +
		": keep-alive\n\n" +
		frames(t, plan.StreamEvent{Content: "b"}, plan.StreamEvent{IsComplete: true})

	res := newStreaming(Handlers{}).Consume(context.Background(), strings.NewReader(body))
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "ab", res.Text)
}

func TestAssemblerActionOrder(t *testing.T) {
	a1 := action(t, plan.ActionLightenDay, 1)
	a2 := action(t, plan.ActionLightenDay, 2)
	a3 := action(t, plan.ActionRebalanceRoute, 3)
	a4 := action(t, plan.ActionRebalanceRoute, 4)

	body := frames(t,
		plan.StreamEvent{Content: "One"},
		plan.StreamEvent{Actions: []plan.ItineraryAction{a1, a2}},
		plan.StreamEvent{Content: " two"},
		plan.StreamEvent{Actions: []plan.ItineraryAction{a3, a4}},
		plan.StreamEvent{IsComplete: true},
	)

	var got []plan.ItineraryAction
	res := newStreaming(Handlers{OnAction: func(a plan.ItineraryAction) {
		got = append(got, a)
	}}).Consume(context.Background(), strings.NewReader(body))

	require.Equal(t, StateCompleted, res.State)
	assert.Equal(t, 4, res.Actions)
	assert.Equal(t, []plan.ItineraryAction{a1, a2, a3, a4}, got)
}

func TestAssemblerSplitChunks(t *testing.T) {
	body := frames(t,
		plan.StreamEvent{Content: "Hello"},
		plan.StreamEvent{Content: " world"},
		plan.StreamEvent{IsComplete: true},
	)

	res := newStreaming(Handlers{}).Consume(context.Background(), iotest.OneByteReader(strings.NewReader(body)))
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "Hello world", res.Text)
}

func TestAssemblerFinalFrameWithoutNewline(t *testing.T) {
	body := frames(t, plan.StreamEvent{Content: "ok"}) + `data: {"isComplete":true}`

	res := newStreaming(Handlers{}).Consume(context.Background(), strings.NewReader(body))
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "ok", res.Text)
}

func TestAssemblerIgnoresDataAfterTerminal(t *testing.T) {
	body := frames(t,
		plan.StreamEvent{Content: "done"},
		plan.StreamEvent{IsComplete: true},
		plan.StreamEvent{Content: " extra"},
	)

	var deltas []string
	res := newStreaming(Handlers{OnDelta: func(delta, _ string) {
		deltas = append(deltas, delta)
	}}).Consume(context.Background(), strings.NewReader(body))

	assert.Equal(t, "done", res.Text)
	assert.Equal(t, []string{"done"}, deltas)
}

func TestAssemblerEOFBeforeTerminal(t *testing.T) {
	body := frames(t, plan.StreamEvent{Content: "partial"})

	a := newStreaming(Handlers{})
	res := a.Consume(context.Background(), strings.NewReader(body))
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrIncompleteStream)
	assert.Empty(t, res.Text)
	assert.Empty(t, a.Buffer())
}

func TestAssemblerReadError(t *testing.T) {
	boom := errors.New("connection reset")
	body := io.MultiReader(
		strings.NewReader(frames(t, plan.StreamEvent{Content: "partial"})),
		iotest.ErrReader(boom),
	)

	res := newStreaming(Handlers{}).Consume(context.Background(), body)
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, boom)
}

func TestAssemblerAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()

	go func() {
		<-ctx.Done()
		pw.CloseWithError(ctx.Err())
	}()

	seen := make(chan struct{})
	a := newStreaming(Handlers{OnDelta: func(string, string) { close(seen) }})

	done := make(chan Result)
	go func() {
		done <- a.Consume(ctx, pr)
	}()

	_, err := pw.Write([]byte(frames(t, plan.StreamEvent{Content: "Hel"})))
	require.NoError(t, err)
	<-seen
	assert.Equal(t, "Hel", a.Buffer())

	cancel()
	res := <-done
	assert.Equal(t, StateAborted, res.State)
	assert.Empty(t, res.Text)
	assert.Empty(t, a.Buffer())

	// terminal states stick
	assert.Equal(t, StateAborted, a.Abort().State)
	assert.Equal(t, StateAborted, a.Fail(errors.New("late")).State)
}

func TestAssemblerRequiresBegin(t *testing.T) {
	a := NewAssembler(Handlers{}, logging.Discard())
	res := a.Consume(context.Background(), strings.NewReader(""))
	assert.Equal(t, StateIdle, res.State)
	assert.Error(t, res.Err)

	require.NoError(t, a.Begin())
	assert.Error(t, a.Begin())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateStreaming.Terminal())
}
