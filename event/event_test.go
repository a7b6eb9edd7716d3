package event_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mau.fi/csync/event"
	"go.mau.fi/csync/id"
)

// TestDecode_DiscriminatorPositionIndependent covers scenario S6: the
// msgtype discriminator may appear anywhere in the content object.
func TestDecode_DiscriminatorPositionIndependent(t *testing.T) {
	inputs := []string{
		`{"body":"hi","msgtype":"m.text"}`,
		`{"msgtype":"m.text","body":"hi"}`,
	}
	for _, in := range inputs {
		content, err := event.ParseContent(event.TypeRoomMessage, json.RawMessage(in))
		require.NoError(t, err)
		text, ok := content.(*event.TextMessageContent)
		require.True(t, ok, "expected *TextMessageContent, got %T", content)
		assert.Equal(t, "hi", text.Body)
		assert.Equal(t, event.MsgText, text.MsgType())
	}
}

func TestDecode_UnknownEventTypeFallsBack(t *testing.T) {
	var evt event.ClientEvent
	raw := []byte(`{"type":"m.some.unknown","event_id":"$1","sender":"@a:hs","origin_server_ts":1,"content":{"foo":"bar"}}`)
	require.NoError(t, json.Unmarshal(raw, &evt))
	unknown, ok := evt.Content.(*event.UnknownContent)
	require.True(t, ok)
	assert.Equal(t, event.Type("m.some.unknown"), unknown.Type)
}

func TestDecode_UnknownMsgTypeFallsBack(t *testing.T) {
	content, err := event.ParseContent(event.TypeRoomMessage, json.RawMessage(`{"msgtype":"m.custom.thing","body":"x"}`))
	require.NoError(t, err)
	unknown, ok := content.(*event.UnknownMessageContent)
	require.True(t, ok)
	assert.Equal(t, event.MsgType("m.custom.thing"), unknown.MsgType())
	assert.Equal(t, "x", unknown.Body)
}

func TestDecode_MissingRequiredFieldFails(t *testing.T) {
	var evt event.Event
	err := json.Unmarshal([]byte(`{"content":{}}`), &evt)
	require.Error(t, err)
	var decodeErr *event.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "type", decodeErr.Path)
}

func TestDecode_MissingMsgTypeFails(t *testing.T) {
	_, err := event.ParseContent(event.TypeRoomMessage, json.RawMessage(`{"body":"hi"}`))
	require.Error(t, err)
	var decodeErr *event.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestClientEvent_RedactedHasNoContent(t *testing.T) {
	raw := []byte(`{
		"type":"m.room.message",
		"event_id":"$e1",
		"sender":"@a:hs",
		"origin_server_ts":5,
		"unsigned":{"redacted_because":{"type":"m.room.redaction","event_id":"$r1","sender":"@a:hs","origin_server_ts":6,"content":{"redacts":"$e1"}}}
	}`)
	var evt event.ClientEvent
	require.NoError(t, json.Unmarshal(raw, &evt))
	assert.Nil(t, evt.Content)
	require.NotNil(t, evt.Unsigned.RedactedBecause)
	assert.True(t, evt.IsRedacted())
	assert.Equal(t, id.EventID("$r1"), evt.Unsigned.RedactedBecause.EventID)
}

func TestEvent_IsState(t *testing.T) {
	sk := ""
	e := event.Event{StateKey: &sk}
	assert.True(t, e.IsState())
	e2 := event.Event{}
	assert.False(t, e2.IsState())
}

func TestMemberContent_Decode(t *testing.T) {
	content, err := event.ParseContent(event.TypeRoomMember, json.RawMessage(`{"membership":"join","displayname":"Alice"}`))
	require.NoError(t, err)
	member, ok := content.(*event.MemberContent)
	require.True(t, ok)
	assert.Equal(t, event.MembershipJoin, member.Membership)
	assert.Equal(t, "Alice", member.DisplayName)
}
