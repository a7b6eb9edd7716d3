package event

import (
	"encoding/json"

	"go.mau.fi/csync/id"
)

// Event is the envelope shared by every event shape csync handles: a type,
// an optional state key, an optional sender/event id, and polymorphically
// decoded content. IsState reports whether this is a state event.
type Event struct {
	Type     Type
	StateKey *string
	Sender   id.UserID
	EventID  id.EventID
	Content  Content
}

// IsState reports whether the event carries a state key.
func (e *Event) IsState() bool {
	return e.StateKey != nil
}

// Unsigned carries the server-added metadata on a ClientEvent.
type Unsigned struct {
	Age             int64
	TransactionID   string
	PrevContent     Content
	RedactedBecause *ClientEvent
}

// ClientEvent is an Event as delivered by the server: timestamped and
// carrying Unsigned metadata.
type ClientEvent struct {
	Event
	OriginServerTS int64
	Unsigned       Unsigned
}

// IsRedacted reports whether this event has been redacted: its content is
// gone and unsigned.redacted_because names the redaction.
func (e *ClientEvent) IsRedacted() bool {
	return e.Content == nil && e.Unsigned.RedactedBecause != nil
}

// StrippedState is the reduced state-event shape delivered with invited
// and knocked rooms: content, type, state key and sender only.
type StrippedState struct {
	Type     Type
	StateKey string
	Sender   id.UserID
	Content  Content
}

type rawEnvelope struct {
	Type           Type            `json:"type"`
	StateKey       *string         `json:"state_key,omitempty"`
	Sender         id.UserID       `json:"sender,omitempty"`
	EventID        id.EventID      `json:"event_id,omitempty"`
	Content        json.RawMessage `json:"content,omitempty"`
	OriginServerTS int64           `json:"origin_server_ts,omitempty"`
	Unsigned       json.RawMessage `json:"unsigned,omitempty"`
}

type rawUnsigned struct {
	Age             int64           `json:"age,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	PrevContent     json.RawMessage `json:"prev_content,omitempty"`
	RedactedBecause json.RawMessage `json:"redacted_because,omitempty"`
}

func decodeEnvelope(data []byte) (rawEnvelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return rawEnvelope{}, newDecodeError("event", err.Error())
	}
	if raw.Type == "" {
		return rawEnvelope{}, newDecodeError("type", "missing required field")
	}
	return raw, nil
}

// UnmarshalJSON implements the property-polymorphism half of the wire
// codec: Type is read first (from wherever it appears in the object) and
// used to pick how Content is decoded.
func (e *Event) UnmarshalJSON(data []byte) error {
	raw, err := decodeEnvelope(data)
	if err != nil {
		return err
	}
	content, err := ParseContent(raw.Type, raw.Content)
	if err != nil {
		return err
	}
	e.Type = raw.Type
	e.StateKey = raw.StateKey
	e.Sender = raw.Sender
	e.EventID = raw.EventID
	e.Content = content
	return nil
}

// MarshalJSON omits an unset state key, sender and event id, per the wire
// codec's null-omission rule for outbound requests. Content is always
// written, as {} when it is nil.
func (e *Event) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{"type": e.Type}
	if e.StateKey != nil {
		out["state_key"] = *e.StateKey
	}
	if e.Sender != "" {
		out["sender"] = e.Sender
	}
	if e.EventID != "" {
		out["event_id"] = e.EventID
	}
	if e.Content != nil {
		out["content"] = e.Content
	} else {
		out["content"] = struct{}{}
	}
	return json.Marshal(out)
}

func (e *ClientEvent) UnmarshalJSON(data []byte) error {
	raw, err := decodeEnvelope(data)
	if err != nil {
		return err
	}
	content, err := ParseContent(raw.Type, raw.Content)
	if err != nil {
		return err
	}
	e.Type = raw.Type
	e.StateKey = raw.StateKey
	e.Sender = raw.Sender
	e.EventID = raw.EventID
	e.Content = content
	e.OriginServerTS = raw.OriginServerTS
	if len(raw.Unsigned) == 0 {
		return nil
	}
	var ru rawUnsigned
	if err := json.Unmarshal(raw.Unsigned, &ru); err != nil {
		return newDecodeError("unsigned", err.Error())
	}
	e.Unsigned.Age = ru.Age
	e.Unsigned.TransactionID = ru.TransactionID
	if len(ru.PrevContent) > 0 {
		prev, err := ParseContent(raw.Type, ru.PrevContent)
		if err != nil {
			return err
		}
		e.Unsigned.PrevContent = prev
	}
	if len(ru.RedactedBecause) > 0 {
		var becauseEvt ClientEvent
		if err := json.Unmarshal(ru.RedactedBecause, &becauseEvt); err != nil {
			return err
		}
		e.Unsigned.RedactedBecause = &becauseEvt
	}
	return nil
}

func (e *StrippedState) UnmarshalJSON(data []byte) error {
	raw, err := decodeEnvelope(data)
	if err != nil {
		return err
	}
	if raw.StateKey == nil {
		return newDecodeError("state_key", "missing required field")
	}
	content, err := ParseContent(raw.Type, raw.Content)
	if err != nil {
		return err
	}
	e.Type = raw.Type
	e.StateKey = *raw.StateKey
	e.Sender = raw.Sender
	e.Content = content
	return nil
}

// Key returns the (type, state_key) pair this event's content applies to.
// Only meaningful for state-bearing events/stripped state.
func (e *Event) Key() StateKey {
	sk := ""
	if e.StateKey != nil {
		sk = *e.StateKey
	}
	return StateKey{Type: e.Type, StateKey: sk}
}

func (e *StrippedState) Key() StateKey {
	return StateKey{Type: e.Type, StateKey: e.StateKey}
}

// StateKey identifies an entry in a state snapshot: an event type plus the
// state_key discriminating multiple state events of that type (e.g. one
// m.room.member per user).
type StateKey struct {
	Type     Type
	StateKey string
}
