package csync

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"go.mau.fi/csync/event"
	"go.mau.fi/csync/id"
)

// SetPresence is the set_presence value accepted by the sync call.
type SetPresence string

const (
	PresenceOffline SetPresence = "offline"
	PresenceOnline  SetPresence = "online"
	PresenceUnavail SetPresence = "unavailable"
)

// EnsureFilter registers the default sync filter (event.DefaultFilter) if
// one hasn't been cached yet, and stores the resulting filter_id on the
// Session so Sync can pass it on every subsequent call. This mirrors the
// teacher's own Sync()/CreateFilter pairing.
func (c *Client) EnsureFilter(ctx context.Context) error {
	if c.session.filter() != "" {
		return nil
	}
	url := c.transport.buildURL("user", string(c.session.UserID()), "filter")
	var resp RespCreateFilter
	if err := c.session.dispatch(ctx, "POST", url, event.DefaultFilter(), &resp); err != nil {
		return fmt.Errorf("creating filter: %w", err)
	}
	c.session.setFilter(resp.FilterID)
	return nil
}

// syncRequest performs exactly one GET /sync call.
func (c *Client) syncRequest(ctx context.Context, since string, timeoutMs int, presence SetPresence) (*RespSync, error) {
	query := url.Values{
		"timeout": {strconv.Itoa(timeoutMs)},
		// the literal strings "true"/"false" are required: some servers
		// reject a capitalized Go bool encoding here.
		"full_state": {"false"},
	}
	if since != "" {
		query.Set("since", since)
	}
	if filterID := c.session.filter(); filterID != "" {
		query.Set("filter", filterID)
	}
	if presence != "" {
		query.Set("set_presence", string(presence))
	}
	reqURL := c.transport.buildURLWithQuery([]string{"sync"}, query)
	var resp RespSync
	if err := c.session.dispatch(ctx, "GET", reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	return &resp, nil
}

// getJoinedRooms calls the deprecated but still-required GET /joined_rooms.
func (c *Client) getJoinedRooms(ctx context.Context) (*RespJoinedRooms, error) {
	url := c.transport.buildURL("joined_rooms")
	var resp RespJoinedRooms
	if err := c.session.dispatch(ctx, "GET", url, nil, &resp); err != nil {
		return nil, fmt.Errorf("joined_rooms: %w", err)
	}
	return &resp, nil
}

// MessagesDirection is the dir= parameter of GET /rooms/{id}/messages.
type MessagesDirection string

const (
	DirForward  MessagesDirection = "f"
	DirBackward MessagesDirection = "b"
)

// getMessages calls GET /rooms/{roomId}/messages to fill a timeline hole.
func (c *Client) getMessages(ctx context.Context, roomID id.RoomID, dir MessagesDirection, from, to string) (*RespMessages, error) {
	query := url.Values{"dir": {string(dir)}, "from": {from}}
	if to != "" {
		query.Set("to", to)
	}
	reqURL := c.transport.buildURLWithQuery([]string{"rooms", string(roomID), "messages"}, query)
	var resp RespMessages
	if err := c.session.dispatch(ctx, "GET", reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("messages for %s: %w", roomID, err)
	}
	return &resp, nil
}

func newTxnID() string {
	return uuid.NewString()
}

// sendEvent calls PUT /rooms/{id}/send/{type}/{txnId}.
func (c *Client) sendEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, content event.Content) (id.EventID, error) {
	url := c.transport.buildURL("rooms", string(roomID), "send", string(eventType), newTxnID())
	var resp RespSendEvent
	if err := c.session.dispatch(ctx, "PUT", url, content, &resp); err != nil {
		return "", fmt.Errorf("sending %s to %s: %w", eventType, roomID, err)
	}
	return resp.EventID, nil
}

// redactEvent calls PUT /rooms/{id}/redact/{eventId}/{txnId}.
func (c *Client) redactEvent(ctx context.Context, roomID id.RoomID, eventID id.EventID, reason string) (id.EventID, error) {
	url := c.transport.buildURL("rooms", string(roomID), "redact", string(eventID), newTxnID())
	var resp RespSendEvent
	if err := c.session.dispatch(ctx, "PUT", url, &reqRedact{Reason: reason}, &resp); err != nil {
		return "", fmt.Errorf("redacting %s in %s: %w", eventID, roomID, err)
	}
	return resp.EventID, nil
}

// createRoom calls POST /createRoom.
func (c *Client) createRoom(ctx context.Context, req *ReqCreateRoom) (id.RoomID, error) {
	body, err := req.marshal()
	if err != nil {
		return "", fmt.Errorf("encoding create room request: %w", err)
	}
	url := c.transport.buildURL("createRoom")
	var resp RespCreateRoom
	if err := c.session.dispatch(ctx, "POST", url, body, &resp); err != nil {
		return "", fmt.Errorf("creating room: %w", err)
	}
	return resp.RoomID, nil
}

// inviteUser calls POST /rooms/{id}/invite.
func (c *Client) inviteUser(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error {
	url := c.transport.buildURL("rooms", string(roomID), "invite")
	req := reqInviteUser{UserID: userID, Reason: reason}
	if err := c.session.dispatch(ctx, "POST", url, &req, nil); err != nil {
		return fmt.Errorf("inviting %s to %s: %w", userID, roomID, err)
	}
	return nil
}

// joinRoom calls POST /join/{roomIdOrAlias}.
func (c *Client) joinRoom(ctx context.Context, roomIDOrAlias string, reason string, viaServers []string) (id.RoomID, error) {
	query := url.Values{}
	for _, server := range viaServers {
		query.Add("server_name", server)
	}
	reqURL := c.transport.buildURLWithQuery([]string{"join", roomIDOrAlias}, query)
	var resp RespJoinRoom
	if err := c.session.dispatch(ctx, "POST", reqURL, &reqJoinRoom{Reason: reason}, &resp); err != nil {
		return "", fmt.Errorf("joining %s: %w", roomIDOrAlias, err)
	}
	return resp.RoomID, nil
}

// leaveRoom calls POST /rooms/{id}/leave.
func (c *Client) leaveRoom(ctx context.Context, roomID id.RoomID, reason string) error {
	url := c.transport.buildURL("rooms", string(roomID), "leave")
	if err := c.session.dispatch(ctx, "POST", url, &reqLeaveRoom{Reason: reason}, nil); err != nil {
		return fmt.Errorf("leaving %s: %w", roomID, err)
	}
	return nil
}
