package pushrules_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mau.fi/csync/event"
	"go.mau.fi/csync/id"
	"go.mau.fi/csync/pushrules"
	"go.mau.fi/csync/state"
)

// conditionRule builds an override/underride-style rule: it matches via
// Conditions rather than the Pattern field content/room/sender rules use.
func conditionRule(ruleID, bodyPattern string, highlight bool) pushrules.Rule {
	actions := []json.RawMessage{json.RawMessage(`"notify"`)}
	if highlight {
		actions = append(actions, json.RawMessage(`{"set_tweak":"highlight"}`))
	}
	return pushrules.Rule{
		RuleID:     ruleID,
		Enabled:    true,
		Conditions: []pushrules.Condition{{Kind: "event_match", Key: "content.body", Pattern: bodyPattern}},
		Actions:    actions,
	}
}

// contentRule builds a content-kind rule, which matches via the bare
// Pattern field instead of Conditions.
func contentRule(ruleID, pattern string, highlight bool) pushrules.Rule {
	actions := []json.RawMessage{json.RawMessage(`"notify"`)}
	if highlight {
		actions = append(actions, json.RawMessage(`{"set_tweak":"highlight"}`))
	}
	return pushrules.Rule{RuleID: ruleID, Enabled: true, Pattern: pattern, Actions: actions}
}

// ruleIDRule builds a room/sender-kind rule, which matches by RuleID
// equal to the room id or sender id.
func ruleIDRule(ruleID string, notify bool) pushrules.Rule {
	action := `"dont_notify"`
	if notify {
		action = `"notify"`
	}
	return pushrules.Rule{RuleID: ruleID, Enabled: true, Actions: []json.RawMessage{json.RawMessage(action)}}
}

func textEvent(t *testing.T, sender id.UserID, body string) state.EventWithState {
	t.Helper()
	return state.EventWithState{
		Event: &event.ClientEvent{
			Event: event.Event{
				Type:    event.TypeRoomMessage,
				Sender:  sender,
				EventID: "$1",
				Content: &event.TextMessageContent{Body: body},
			},
		},
		State: state.Empty(),
	}
}

// TestEvaluate_RuleKindOrdering checks that override beats content beats
// room beats sender beats underride: a ruleset with a matching rule in
// every kind must resolve to the override rule's action.
func TestEvaluate_RuleKindOrdering(t *testing.T) {
	roomID := id.RoomID("!room:hs")
	sender := id.UserID("@bob:hs")
	me := id.UserID("@alice:hs")

	rules := pushrules.Ruleset{
		Override:  []pushrules.Rule{conditionRule("override-rule", "hello", true)},
		Content:   []pushrules.Rule{contentRule("content-rule", "hello", false)},
		Room:      []pushrules.Rule{ruleIDRule(string(roomID), true)},
		Sender:    []pushrules.Rule{ruleIDRule(string(sender), true)},
		Underride: []pushrules.Rule{conditionRule("underride-rule", "hello", false)},
	}

	ev := pushrules.NewEvaluator(rules, me)
	action := ev.Evaluate(roomID, textEvent(t, sender, "hello world"))
	// Only the override rule sets the highlight tweak; if a later kind won
	// instead, Highlight would come back false.
	assert.True(t, action.Notify)
	assert.True(t, action.Highlight)
}

// TestEvaluate_ContentBeatsRoomBeatsSenderBeatsUnderride checks the
// remaining four kinds resolve in order when no override rule matches.
func TestEvaluate_ContentBeatsRoomBeatsSenderBeatsUnderride(t *testing.T) {
	roomID := id.RoomID("!room:hs")
	sender := id.UserID("@bob:hs")
	me := id.UserID("@alice:hs")

	rules := pushrules.Ruleset{
		Content:   []pushrules.Rule{contentRule("content-rule", "hello", true)},
		Room:      []pushrules.Rule{ruleIDRule(string(roomID), false)},
		Sender:    []pushrules.Rule{ruleIDRule(string(sender), false)},
		Underride: []pushrules.Rule{conditionRule("underride-rule", "hello", false)},
	}

	ev := pushrules.NewEvaluator(rules, me)
	action := ev.Evaluate(roomID, textEvent(t, sender, "hello world"))
	require.True(t, action.Notify)
	assert.True(t, action.Highlight)
}

// TestEvaluate_RoomBeatsSenderBeatsUnderride checks room rules win over
// sender and underride rules when no override/content rule matches.
func TestEvaluate_RoomBeatsSenderBeatsUnderride(t *testing.T) {
	roomID := id.RoomID("!room:hs")
	sender := id.UserID("@bob:hs")
	me := id.UserID("@alice:hs")

	rules := pushrules.Ruleset{
		Room:      []pushrules.Rule{ruleIDRule(string(roomID), true)},
		Sender:    []pushrules.Rule{ruleIDRule(string(sender), false)},
		Underride: []pushrules.Rule{conditionRule("underride-rule", "hi", true)},
	}

	ev := pushrules.NewEvaluator(rules, me)
	action := ev.Evaluate(roomID, textEvent(t, sender, "hi there"))
	require.True(t, action.Notify)
	assert.False(t, action.Highlight)
}

// TestEvaluate_SenderBeatsUnderride checks sender rules win over
// underride rules when no override/content/room rule matches.
func TestEvaluate_SenderBeatsUnderride(t *testing.T) {
	roomID := id.RoomID("!room:hs")
	sender := id.UserID("@bob:hs")
	me := id.UserID("@alice:hs")

	rules := pushrules.Ruleset{
		Sender:    []pushrules.Rule{ruleIDRule(string(sender), false)},
		Underride: []pushrules.Rule{conditionRule("underride-rule", "hi", true)},
	}

	ev := pushrules.NewEvaluator(rules, me)
	action := ev.Evaluate(roomID, textEvent(t, sender, "hi there"))
	assert.False(t, action.Notify)
	assert.False(t, action.Highlight)
}

// TestEvaluate_OwnSenderNeverNotifies checks the evaluator short-circuits
// to the zero Action before consulting any rule kind when the event's
// sender is the evaluating user, even if every rule kind would otherwise
// match.
func TestEvaluate_OwnSenderNeverNotifies(t *testing.T) {
	roomID := id.RoomID("!room:hs")
	me := id.UserID("@alice:hs")

	rules := pushrules.Ruleset{
		Override: []pushrules.Rule{conditionRule("override-rule", "hi", true)},
	}

	ev := pushrules.NewEvaluator(rules, me)
	action := ev.Evaluate(roomID, textEvent(t, me, "hi there"))
	assert.Equal(t, pushrules.Action{}, action)
}

// TestEvaluate_DisabledRuleSkipped checks a disabled rule never matches,
// falling through to the next kind.
func TestEvaluate_DisabledRuleSkipped(t *testing.T) {
	roomID := id.RoomID("!room:hs")
	sender := id.UserID("@bob:hs")
	me := id.UserID("@alice:hs")

	disabled := conditionRule("override-rule", "hi", true)
	disabled.Enabled = false
	rules := pushrules.Ruleset{
		Override: []pushrules.Rule{disabled},
		Sender:   []pushrules.Rule{ruleIDRule(string(sender), true)},
	}

	ev := pushrules.NewEvaluator(rules, me)
	action := ev.Evaluate(roomID, textEvent(t, sender, "hi there"))
	assert.True(t, action.Notify)
	assert.False(t, action.Highlight)
}

func TestParse_DecodesGlobalRuleset(t *testing.T) {
	raw := json.RawMessage(`{"global":{"override":[{"rule_id":"r1","enabled":true,"actions":["notify"]}]}}`)
	rules, err := pushrules.Parse(raw)
	require.NoError(t, err)
	require.Len(t, rules.Override, 1)
	assert.Equal(t, "r1", rules.Override[0].RuleID)
}
