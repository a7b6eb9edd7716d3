package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mau.fi/csync/event"
	"go.mau.fi/csync/id"
	"go.mau.fi/csync/state"
)

func memberEvent(t *testing.T, eventID id.EventID, sender id.UserID, membership event.Membership, prev event.Content) *event.ClientEvent {
	t.Helper()
	sk := string(sender)
	return &event.ClientEvent{
		Event: event.Event{
			Type:     event.TypeRoomMember,
			StateKey: &sk,
			Sender:   sender,
			EventID:  eventID,
			Content:  &event.MemberContent{Membership: membership},
		},
		Unsigned: event.Unsigned{PrevContent: prev},
	}
}

func TestResolveForward_EmitsRunningState(t *testing.T) {
	alice := id.UserID("@alice:hs")
	e1 := memberEvent(t, "$1", alice, event.MembershipInvite, nil)
	e2 := memberEvent(t, "$2", alice, event.MembershipJoin, &event.MemberContent{Membership: event.MembershipInvite})

	out, final, err := state.Resolve([]*event.ClientEvent{e1, e2}, nil, false)
	require.NoError(t, err)
	require.Len(t, out, 2)

	c1, ok := out[0].State.Get(e1.Key())
	require.True(t, ok)
	assert.Equal(t, event.MembershipInvite, c1.(*event.MemberContent).Membership)

	c2, ok := out[1].State.Get(e2.Key())
	require.True(t, ok)
	assert.Equal(t, event.MembershipJoin, c2.(*event.MemberContent).Membership)

	finalContent, ok := final.Get(e2.Key())
	require.True(t, ok)
	assert.Equal(t, event.MembershipJoin, finalContent.(*event.MemberContent).Membership)
}

// TestResolveRoundTrip checks that forward then backward resolution (over
// the reversed event order) returns the original snapshot.
func TestResolveRoundTrip(t *testing.T) {
	alice := id.UserID("@alice:hs")
	e1 := memberEvent(t, "$1", alice, event.MembershipInvite, nil)
	e2 := memberEvent(t, "$2", alice, event.MembershipJoin, &event.MemberContent{Membership: event.MembershipInvite})

	start := state.Empty()
	_, final, err := state.Resolve([]*event.ClientEvent{e1, e2}, start, false)
	require.NoError(t, err)

	reversed := []*event.ClientEvent{e2, e1}
	_, rewound, err := state.Resolve(reversed, final, true)
	require.NoError(t, err)

	assert.True(t, start.Equal(rewound))
}

func TestResolveBackward_RemovesKeyWhenPrevContentNil(t *testing.T) {
	alice := id.UserID("@alice:hs")
	e1 := memberEvent(t, "$1", alice, event.MembershipJoin, nil)

	prior := state.Empty().With(e1.Key(), &event.MemberContent{Membership: event.MembershipJoin})
	_, final, err := state.Resolve([]*event.ClientEvent{e1}, prior, true)
	require.NoError(t, err)
	assert.Equal(t, 0, final.Len())
}

func TestFoldStripped(t *testing.T) {
	alice := id.UserID("@alice:hs")
	stripped := []*event.StrippedState{
		{Type: event.TypeRoomMember, StateKey: string(alice), Sender: alice, Content: &event.MemberContent{Membership: event.MembershipInvite}},
	}
	result := state.FoldStripped(stripped, nil)
	c, ok := result.Get(stripped[0].Key())
	require.True(t, ok)
	assert.Equal(t, event.MembershipInvite, c.(*event.MemberContent).Membership)
}

func TestSnapshot_ImmutableAcrossWith(t *testing.T) {
	k := event.StateKey{Type: event.TypeRoomMember, StateKey: "@a:hs"}
	s1 := state.Empty()
	s2 := s1.With(k, &event.MemberContent{Membership: event.MembershipJoin})
	assert.Equal(t, 0, s1.Len())
	assert.Equal(t, 1, s2.Len())
}
