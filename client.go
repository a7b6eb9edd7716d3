// Package csync implements the stateful side of the Matrix Client-Server
// sync protocol: a Client that logs in, long-polls /sync, maintains a
// per-room timeline with transparent gap backfill, and exposes a minimal
// send/redact/room-lifecycle surface on top.
package csync

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"

	"go.mau.fi/csync/event"
	"go.mau.fi/csync/id"
	"go.mau.fi/csync/pushrules"
	"go.mau.fi/csync/state"
	"go.mau.fi/csync/timeline"
)

// gateState is the syncing/filling gate pair: one mutex-guarded pair of
// booleans with broadcast on change, so a fill waits out an in-flight sync
// and vice versa.
type gateState struct {
	mu      sync.Mutex
	cond    *sync.Cond
	syncing bool
	filling bool
}

// Client is the facade: it owns the Session, the
// per-room timelines and state, and the single lock that serializes their
// mutation. All exported methods are safe for concurrent use.
type Client struct {
	// Log receives request-level diagnostics at Debug and fold-time
	// warnings at Warn.
	Log zerolog.Logger

	session   *Session
	transport *transport
	md        goldmark.Markdown
	gate      gateState

	// mu guards every field below: the single client lock serializing
	// room mutation.
	mu            sync.Mutex
	idx           *timeline.Index
	nextBatch     string
	presenceState map[id.UserID]event.Content
	invitedState  map[id.RoomID]*InvitedRoom
	knockState    map[id.RoomID]*KnockedRoom
	joinedRooms   map[id.RoomID]*JoinedRoom
	leftRooms     map[id.RoomID]*LeftRoom
	pushRules     pushrules.Ruleset
}

// NewClient constructs a Client resuming (or starting) the session
// described by data. httpClient defaults to http.DefaultClient if nil;
// logger defaults to a no-op logger if zero-valued.
func NewClient(data LoginData, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	t, err := newTransport(data.Homeserver, httpClient, logger)
	if err != nil {
		return nil, err
	}
	c := &Client{
		Log:           logger,
		session:       newSession(t, data),
		transport:     t,
		md:            goldmark.New(),
		idx:           timeline.NewIndex(),
		presenceState: make(map[id.UserID]event.Content),
		invitedState:  make(map[id.RoomID]*InvitedRoom),
		knockState:    make(map[id.RoomID]*KnockedRoom),
		joinedRooms:   make(map[id.RoomID]*JoinedRoom),
		leftRooms:     make(map[id.RoomID]*LeftRoom),
	}
	c.gate.cond = sync.NewCond(&c.gate.mu)
	return c, nil
}

// Session accessors.

func (c *Client) LoggedIn() bool             { return c.session.LoggedIn() }
func (c *Client) Expired() bool              { return c.session.Expired() }
func (c *Client) UserID() id.UserID          { return c.session.UserID() }
func (c *Client) DeviceID() string           { return c.session.DeviceID() }
func (c *Client) ToLoginData() LoginData     { return c.session.ToLoginData() }
func (c *Client) PasswordLogin(ctx context.Context, user, password, initialDisplayName, deviceID string) error {
	return c.session.PasswordLogin(ctx, user, password, initialDisplayName, deviceID)
}
func (c *Client) TokenLogin(ctx context.Context, token, initialDisplayName, deviceID string) error {
	return c.session.TokenLogin(ctx, token, initialDisplayName, deviceID)
}

// GetJoinedRooms is the deprecated GET /joined_rooms passthrough; prefer
// the JoinedRooms accessor for the locally synced view.
func (c *Client) GetJoinedRooms(ctx context.Context) ([]id.RoomID, error) {
	resp, err := c.getJoinedRooms(ctx)
	if err != nil {
		return nil, err
	}
	return resp.JoinedRooms, nil
}

// SendEvent sends an arbitrary event into roomID and returns its id.
func (c *Client) SendEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, content event.Content) (id.EventID, error) {
	return c.sendEvent(ctx, roomID, eventType, content)
}

// SendMessage is a shortcut for SendEvent with type m.room.message.
func (c *Client) SendMessage(ctx context.Context, roomID id.RoomID, content event.MessageContent) (id.EventID, error) {
	return c.SendEvent(ctx, roomID, event.TypeRoomMessage, content)
}

// SendTextMessage sends an m.text message, rendering body as markdown into
// formatted_body. If rendering produces no body, formatted_body is omitted.
func (c *Client) SendTextMessage(ctx context.Context, roomID id.RoomID, body string) (id.EventID, error) {
	content := &event.TextMessageContent{Body: body}
	if body != "" {
		var buf bytes.Buffer
		if err := c.md.Convert([]byte(body), &buf); err != nil {
			return "", fmt.Errorf("rendering markdown: %w", err)
		}
		html := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
		if len(html) > 0 {
			content.FormattedBody = string(html)
			content.Format = "org.matrix.custom.html"
		}
	}
	return c.SendMessage(ctx, roomID, content)
}

// Redact redacts eventID in roomID.
func (c *Client) Redact(ctx context.Context, roomID id.RoomID, eventID id.EventID, reason string) (id.EventID, error) {
	return c.redactEvent(ctx, roomID, eventID, reason)
}

// CreateRoom creates a new room per the options in req.
func (c *Client) CreateRoom(ctx context.Context, req *ReqCreateRoom) (id.RoomID, error) {
	return c.createRoom(ctx, req)
}

// InviteUser invites userID to roomID.
func (c *Client) InviteUser(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error {
	return c.inviteUser(ctx, roomID, userID, reason)
}

// JoinRoom joins roomIDOrAlias, optionally hinting via servers to join
// through, and returns the resolved room id.
func (c *Client) JoinRoom(ctx context.Context, roomIDOrAlias string, reason string, viaServers []string) (id.RoomID, error) {
	return c.joinRoom(ctx, roomIDOrAlias, reason, viaServers)
}

// LeaveRoom leaves roomID.
func (c *Client) LeaveRoom(ctx context.Context, roomID id.RoomID, reason string) error {
	return c.leaveRoom(ctx, roomID, reason)
}

// Read-only accessors. Each returns a shallow copy of the
// underlying map so callers can't mutate client state through it.

func (c *Client) PresenceState() map[id.UserID]event.Content {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[id.UserID]event.Content, len(c.presenceState))
	for k, v := range c.presenceState {
		out[k] = v
	}
	return out
}

func (c *Client) InvitedState() map[id.RoomID]*InvitedRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[id.RoomID]*InvitedRoom, len(c.invitedState))
	for k, v := range c.invitedState {
		out[k] = v
	}
	return out
}

func (c *Client) KnockState() map[id.RoomID]*KnockedRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[id.RoomID]*KnockedRoom, len(c.knockState))
	for k, v := range c.knockState {
		out[k] = v
	}
	return out
}

func (c *Client) JoinedRooms() map[id.RoomID]*JoinedRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[id.RoomID]*JoinedRoom, len(c.joinedRooms))
	for k, v := range c.joinedRooms {
		out[k] = v
	}
	return out
}

func (c *Client) LeftRooms() map[id.RoomID]*LeftRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[id.RoomID]*LeftRoom, len(c.leftRooms))
	for k, v := range c.leftRooms {
		out[k] = v
	}
	return out
}

// NextBatch returns the since token this client would resume from.
func (c *Client) NextBatch() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextBatch
}

// EventByID is the events_by_id accessor: it returns a handle
// to the live node for eventID across any timeline, or false if unknown.
func (c *Client) EventByID(eventID id.EventID) (*timeline.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx.Lookup(eventID)
}

// PushRuleAction evaluates the cached push rules against ews for the
// current user. It returns the zero Action before any push rules have
// been synced.
func (c *Client) PushRuleAction(roomID id.RoomID, ews state.EventWithState) pushrules.Action {
	c.mu.Lock()
	rules := c.pushRules
	c.mu.Unlock()
	return pushrules.NewEvaluator(rules, c.UserID()).Evaluate(roomID, ews)
}

// acquireFillGate blocks until neither a sync nor another fill is in
// flight, then claims the filling gate.
func (c *Client) acquireFillGate() {
	c.gate.mu.Lock()
	for c.gate.syncing || c.gate.filling {
		c.gate.cond.Wait()
	}
	c.gate.filling = true
	c.gate.mu.Unlock()
}

func (c *Client) releaseFillGate() {
	c.gate.mu.Lock()
	c.gate.filling = false
	c.gate.cond.Broadcast()
	c.gate.mu.Unlock()
}

// FillHole performs the hole-filling algorithm for the given
// timeline and hole, in the given direction: it acquires the fill gate,
// re-checks the hole under the client lock, issues the network call
// outside the lock, then re-acquires the lock to splice in the result and
// apply any redactions the fetched chunk contains.
func (c *Client) FillHole(ctx context.Context, tl *timeline.Timeline, ref *timeline.HoleRef, dir timeline.Direction) (*timeline.Handle, error) {
	c.acquireFillGate()
	defer c.releaseFillGate()

	c.mu.Lock()
	if ref.Resolved() {
		c.mu.Unlock()
		return nil, nil
	}
	tok := ref.Token()
	c.mu.Unlock()

	var apiDir MessagesDirection
	var from, to string
	if dir == timeline.Forward {
		apiDir, from, to = DirForward, tok.From, tok.To
	} else {
		apiDir, from, to = DirBackward, tok.To, tok.From
	}

	resp, err := c.getMessages(ctx, tl.RoomID(), apiDir, from, to)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	handle, err := tl.FillHole(ref, dir, timeline.FetchedChunk{
		State: resp.State,
		Chunk: resp.Chunk,
		End:   resp.End,
	})
	if err != nil {
		return nil, err
	}
	for _, evt := range resp.Chunk {
		if evt.Type != event.TypeRoomRedaction {
			continue
		}
		if rc, ok := evt.Content.(*event.RedactionContent); ok && rc.Redacts != "" {
			timeline.ApplyRedaction(c.idx, rc.Redacts, evt)
		}
	}
	return handle, nil
}

// Next is the blocking next() handle operation: it peeks the point after
// h and, if that point is a hole, performs the hole-filling algorithm
// before returning. It returns (nil, nil) at the end of the timeline, and
// also returns (nil, nil) if filling the hole turned up no new events
// (the room's recorded history starts or ends there).
func (c *Client) Next(ctx context.Context, tl *timeline.Timeline, h *timeline.Handle) (*timeline.Handle, error) {
	return c.step(ctx, tl, h, timeline.Forward)
}

// Previous is the blocking previous() handle operation; see Next.
func (c *Client) Previous(ctx context.Context, tl *timeline.Timeline, h *timeline.Handle) (*timeline.Handle, error) {
	return c.step(ctx, tl, h, timeline.Backward)
}

func (c *Client) step(ctx context.Context, tl *timeline.Timeline, h *timeline.Handle, dir timeline.Direction) (*timeline.Handle, error) {
	var peek timeline.PeekResult
	var err error
	c.mu.Lock()
	if dir == timeline.Forward {
		peek, err = h.PeekNext()
	} else {
		peek, err = h.PeekPrevious()
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if peek.Handle != nil {
		return peek.Handle, nil
	}
	if peek.End {
		return nil, nil
	}
	return c.FillHole(ctx, tl, peek.Hole, dir)
}

// Enumerator lazily walks a timeline one step at a time in a fixed
// direction, performing hole-filling network I/O only when the traversal
// actually reaches an unfilled hole. It is the enumerate_forward /
// enumerate_backward sequence: nothing beyond the starting handle is
// fetched until Next is called.
type Enumerator struct {
	client  *Client
	tl      *timeline.Timeline
	dir     timeline.Direction
	cur     *timeline.Handle
	started bool
	done    bool
}

// EnumerateForward returns a lazy forward enumerator starting at from.
func (c *Client) EnumerateForward(tl *timeline.Timeline, from *timeline.Handle) *Enumerator {
	return &Enumerator{client: c, tl: tl, dir: timeline.Forward, cur: from}
}

// EnumerateBackward returns a lazy backward enumerator starting at from.
func (c *Client) EnumerateBackward(tl *timeline.Timeline, from *timeline.Handle) *Enumerator {
	return &Enumerator{client: c, tl: tl, dir: timeline.Backward, cur: from}
}

// Next advances the enumerator by one step, returning the next handle and
// true, or a false ok once the timeline boundary in that direction has
// been reached. It blocks on hole-filling network I/O exactly like Next/
// Previous, but only when the traversal actually needs to cross a hole.
func (e *Enumerator) Next(ctx context.Context) (handle *timeline.Handle, ok bool, err error) {
	if e.done {
		return nil, false, nil
	}
	if !e.started {
		e.started = true
		if e.cur == nil {
			e.done = true
			return nil, false, nil
		}
		return e.cur, true, nil
	}
	next, err := e.client.step(ctx, e.tl, e.cur, e.dir)
	if err != nil {
		return nil, false, err
	}
	if next == nil {
		e.done = true
		return nil, false, nil
	}
	e.cur = next
	return next, true, nil
}
