package plan

import (
	"encoding/json"
	"fmt"
)

type ActionType string

const (
	ActionRegenerateDay   ActionType = "regenerateDay"
	ActionInsertActivity  ActionType = "insertActivity"
	ActionLightenDay      ActionType = "lightenDay"
	ActionRebalanceRoute  ActionType = "rebalanceRoute"
	ActionUpdateItinerary ActionType = "updateItinerary"
)

// ActionTypes lists the kinds the itinerary collaborator understands.
var ActionTypes = []ActionType{
	ActionRegenerateDay,
	ActionInsertActivity,
	ActionLightenDay,
	ActionRebalanceRoute,
	ActionUpdateItinerary,
}

func (t ActionType) Known() bool {
	for _, k := range ActionTypes {
		if t == k {
			return true
		}
	}
	return false
}

// ItineraryAction is a structured mutation request. Payload is kept verbatim
// so kinds this build does not know survive a round trip.
type ItineraryAction struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type RegenerateDayPayload struct {
	Day   int    `json:"day"`
	Theme string `json:"theme,omitempty"`
}

type Activity struct {
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	Time        string  `json:"time,omitempty"`
	Duration    int     `json:"duration,omitempty"`
	Cost        float64 `json:"cost,omitempty"`
	Description string  `json:"description,omitempty"`
}

type InsertActivityPayload struct {
	Day      int      `json:"day"`
	Activity Activity `json:"activity"`
}

type LightenDayPayload struct {
	Day int `json:"day"`
}

type RebalanceRoutePayload struct {
	Day int `json:"day"`
}

type UpdateItineraryPayload struct {
	MaxDailyBudget float64        `json:"maxDailyBudget,omitempty"`
	Changes        map[string]any `json:"changes,omitempty"`
}

// NewAction marshals payload into an action of the given kind.
func NewAction(t ActionType, payload any) (ItineraryAction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ItineraryAction{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return ItineraryAction{Type: t, Payload: raw}, nil
}

// Decode returns the typed payload for known kinds and a generic map for
// anything else.
func (a ItineraryAction) Decode() (any, error) {
	var target any
	switch a.Type {
	case ActionRegenerateDay:
		target = &RegenerateDayPayload{}
	case ActionInsertActivity:
		target = &InsertActivityPayload{}
	case ActionLightenDay:
		target = &LightenDayPayload{}
	case ActionRebalanceRoute:
		target = &RebalanceRoutePayload{}
	case ActionUpdateItinerary:
		target = &UpdateItineraryPayload{}
	default:
		m := map[string]any{}
		if err := json.Unmarshal(a.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", a.Type, err)
		}
		return m, nil
	}
	if err := json.Unmarshal(a.Payload, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", a.Type, err)
	}
	return target, nil
}
