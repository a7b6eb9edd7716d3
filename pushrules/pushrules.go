// Package pushrules implements a minimal evaluator over the m.push_rules
// account data event, annotating synced events with a notification action
// the way the sync engine's unread-notification counts already do, without
// changing any of its invariants.
package pushrules

import (
	"encoding/json"
	"strings"

	"go.mau.fi/csync/event"
	"go.mau.fi/csync/id"
	"go.mau.fi/csync/state"
)

// Action is the outcome of evaluating a rule's actions array: whether the
// event should notify, and whether it should additionally highlight.
type Action struct {
	Notify    bool
	Highlight bool
}

// Condition is one entry of a rule's "conditions" array. Only the
// subset of kinds the evaluator understands is modeled; unrecognized
// kinds never match, matching the wire codec's unknown-discriminator
// policy of degrading gracefully instead of failing.
type Condition struct {
	Kind    string `json:"kind"`
	Key     string `json:"key,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// Rule is one push rule, from any of the five rule kinds.
type Rule struct {
	RuleID     string          `json:"rule_id"`
	Default    bool            `json:"default,omitempty"`
	Enabled    bool            `json:"enabled"`
	Conditions []Condition     `json:"conditions,omitempty"`
	Pattern    string          `json:"pattern,omitempty"`
	Actions    []json.RawMessage `json:"actions"`
}

func (r Rule) action() Action {
	var a Action
	for _, raw := range r.Actions {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			switch s {
			case "notify":
				a.Notify = true
			case "dont_notify":
				a.Notify = false
			}
			continue
		}
		var tweak struct {
			SetTweak string `json:"set_tweak"`
		}
		if err := json.Unmarshal(raw, &tweak); err == nil && tweak.SetTweak == "highlight" {
			a.Highlight = true
		}
	}
	return a
}

// Ruleset is the content of the m.push_rules account data event, grouped
// by the five kinds Matrix evaluates in order: override, content, room,
// sender, underride.
type Ruleset struct {
	Override  []Rule `json:"override,omitempty"`
	Content   []Rule `json:"content,omitempty"`
	Room      []Rule `json:"room,omitempty"`
	Sender    []Rule `json:"sender,omitempty"`
	Underride []Rule `json:"underride,omitempty"`
}

type wireRuleset struct {
	Global Ruleset `json:"global"`
}

// Parse decodes the content of an m.push_rules account data event.
func Parse(raw json.RawMessage) (Ruleset, error) {
	var w wireRuleset
	if err := json.Unmarshal(raw, &w); err != nil {
		return Ruleset{}, err
	}
	return w.Global, nil
}

// Evaluator evaluates a Ruleset against synced events for one user.
type Evaluator struct {
	rules  Ruleset
	userID id.UserID
}

// NewEvaluator builds an Evaluator for userID: events sent by userID always
// evaluate to the zero Action. Conditions of kind "contains_display_name"
// never match.
func NewEvaluator(rules Ruleset, userID id.UserID) *Evaluator {
	return &Evaluator{rules: rules, userID: userID}
}

// Evaluate returns the action for ews in roomID, trying override, content,
// room, sender, then underride rules in that order and stopping at the
// first enabled rule whose conditions all match.
func (ev *Evaluator) Evaluate(roomID id.RoomID, ews state.EventWithState) Action {
	if ev == nil {
		return Action{}
	}
	evt := ews.Event
	if evt.Sender == ev.userID {
		return Action{}
	}

	for _, r := range ev.rules.Override {
		if r.Enabled && ev.matchConditions(r.Conditions, roomID, evt) {
			return r.action()
		}
	}
	if evt.Type == event.TypeRoomMessage {
		body := messageBody(evt)
		for _, r := range ev.rules.Content {
			if r.Enabled && r.Pattern != "" && containsWord(body, r.Pattern) {
				return r.action()
			}
		}
	}
	for _, r := range ev.rules.Room {
		if r.Enabled && r.RuleID == string(roomID) {
			return r.action()
		}
	}
	for _, r := range ev.rules.Sender {
		if r.Enabled && r.RuleID == string(evt.Sender) {
			return r.action()
		}
	}
	for _, r := range ev.rules.Underride {
		if r.Enabled && ev.matchConditions(r.Conditions, roomID, evt) {
			return r.action()
		}
	}
	return Action{}
}

func (ev *Evaluator) matchConditions(conds []Condition, roomID id.RoomID, evt *event.ClientEvent) bool {
	for _, c := range conds {
		switch c.Kind {
		case "event_match":
			if c.Key == "type" && string(evt.Type) != c.Pattern {
				return false
			}
			if c.Key == "content.body" && !containsWord(messageBody(evt), c.Pattern) {
				return false
			}
		case "contains_display_name":
			// display name lookup isn't wired into the evaluator; treat
			// as non-matching rather than guessing.
			return false
		default:
			// unrecognized condition kinds never match.
			return false
		}
	}
	return len(conds) > 0
}

func messageBody(evt *event.ClientEvent) string {
	msg, ok := evt.Content.(event.MessageContent)
	if !ok {
		return ""
	}
	if text, ok := msg.(*event.TextMessageContent); ok {
		return text.Body
	}
	return ""
}

func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
