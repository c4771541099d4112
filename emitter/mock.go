package emitter

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
)

const (
	DefaultBaseDelay = 50 * time.Millisecond
	DefaultJitter    = 100 * time.Millisecond
)

type Intent string

const (
	IntentLighten   Intent = "lighten"
	IntentHiddenGem Intent = "hidden_gem"
	IntentFamily    Intent = "family"
	IntentCost      Intent = "cost"
	IntentFood      Intent = "food"
	IntentGeneric   Intent = "generic"
)

type reply struct {
	intent   Intent
	keywords []string
	text     string
	actions  func(req plan.PlanRequest) []plan.ItineraryAction
}

// replies are checked in order; the first keyword hit wins.
var replies = []reply{
	{
		intent:   IntentLighten,
		keywords: []string{"less packed", "lighten", "relax", "tired", "slow down", "too busy", "too much", "fewer activities"},
		text:     "I've lightened your schedule by removing a few activities and adding longer breaks between stops. You'll have more time to relax and enjoy each place at your own pace.",
		actions: func(req plan.PlanRequest) []plan.ItineraryAction {
			return mustActions(plan.NewAction(plan.ActionLightenDay, plan.LightenDayPayload{Day: req.FocusDay()}))
		},
	},
	{
		intent:   IntentHiddenGem,
		keywords: []string{"hidden gem", "off the beaten", "local secret", "less touristy"},
		text:     "Great idea! I found a hidden gem the locals love: a quiet tea house tucked away in the old quarter. It makes a perfect afternoon stop away from the crowds.",
		actions: func(req plan.PlanRequest) []plan.ItineraryAction {
			return mustActions(plan.NewAction(plan.ActionInsertActivity, plan.InsertActivityPayload{
				Day: req.FocusDay(),
				Activity: plan.Activity{
					Name:        "Old quarter tea house",
					Category:    "hidden-gem",
					Time:        "15:00",
					Duration:    60,
					Cost:        8,
					Description: "A quiet tea house known mostly to locals.",
				},
			}))
		},
	},
	{
		intent:   IntentFamily,
		keywords: []string{"family", "kid", "children", "child"},
		text:     "I've reworked the day to be more family-friendly, with shorter walks between sights and plenty of snack breaks along the way.",
		actions: func(req plan.PlanRequest) []plan.ItineraryAction {
			return mustActions(plan.NewAction(plan.ActionRegenerateDay, plan.RegenerateDayPayload{Day: req.FocusDay(), Theme: "family"}))
		},
	},
	{
		intent:   IntentCost,
		keywords: []string{"cheaper", "budget", "save money", "reduce cost", "expensive", "cost"},
		text:     "Here are some ways to cut costs: I've swapped a few paid attractions for free walking tours and picked places to eat that fit comfortably within your daily budget.",
		actions: func(req plan.PlanRequest) []plan.ItineraryAction {
			budget := 0.0
			if req.UserPreferences != nil {
				budget = req.UserPreferences.Budget * 0.8
			}
			return mustActions(plan.NewAction(plan.ActionUpdateItinerary, plan.UpdateItineraryPayload{MaxDailyBudget: budget}))
		},
	},
	{
		intent:   IntentFood,
		keywords: []string{"food", "restaurant", "dining", "cuisine", "where to eat", "hungry"},
		text:     "Food lovers are in for a treat! I've highlighted a local market for lunch and a well reviewed family-run restaurant for dinner.",
		actions: func(req plan.PlanRequest) []plan.ItineraryAction {
			return mustActions(plan.NewAction(plan.ActionInsertActivity, plan.InsertActivityPayload{
				Day: req.FocusDay(),
				Activity: plan.Activity{
					Name:     "Local food market",
					Category: "food",
					Time:     "12:30",
					Duration: 90,
					Cost:     15,
				},
			}))
		},
	},
}

var genericReply = reply{
	intent: IntentGeneric,
	text:   "I can help you adjust your trip. Ask me to make a day less packed, find hidden gems, suggest family-friendly options, reduce costs or focus on local food.",
}

func mustActions(a plan.ItineraryAction, err error) []plan.ItineraryAction {
	if err != nil {
		return nil
	}
	return []plan.ItineraryAction{a}
}

func classify(text string) reply {
	lower := strings.ToLower(text)
	for _, r := range replies {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r
			}
		}
	}
	return genericReply
}

// Classify returns the intent selected for a user message.
func Classify(text string) Intent {
	return classify(text).intent
}

// Mock answers from canned replies, pacing them word by word.
type Mock struct {
	delay  func() time.Duration
	logger *slog.Logger
}

type MockOption func(*Mock)

// WithPacing sets the per word delay to base plus uniform jitter in [0, jitter).
func WithPacing(base, jitter time.Duration) MockOption {
	return func(m *Mock) {
		m.delay = func() time.Duration {
			if jitter <= 0 {
				return base
			}
			return base + rand.N(jitter)
		}
	}
}

func WithMockLogger(logger *slog.Logger) MockOption {
	return func(m *Mock) {
		m.logger = logger
	}
}

func NewMock(opts ...MockOption) *Mock {
	m := &Mock{logger: slog.Default()}
	WithPacing(DefaultBaseDelay, DefaultJitter)(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Respond returns the full text and actions Emit streams for req.
func (m *Mock) Respond(req plan.PlanRequest) (string, []plan.ItineraryAction) {
	r := classify(req.LatestUserText())
	if r.actions == nil || !req.HasItinerary() {
		return r.text, nil
	}
	return r.text, r.actions(req)
}

func (m *Mock) Emit(ctx context.Context, req plan.PlanRequest, sink Sink) error {
	text, actions := m.Respond(req)
	m.logger.Debug("mock reply selected", "intent", Classify(req.LatestUserText()), "actions", len(actions))

	for i, word := range strings.Split(text, " ") {
		if i > 0 {
			if err := sleep(ctx, m.delay()); err != nil {
				return err
			}
			word = " " + word
		}
		if err := sink(plan.StreamEvent{Content: word}); err != nil {
			return err
		}
	}

	if len(actions) > 0 {
		if err := sink(plan.StreamEvent{Actions: actions}); err != nil {
			return err
		}
	}
	return sink(plan.StreamEvent{IsComplete: true})
}
