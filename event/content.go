package event

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Content is the tagged union of event content types csync understands:
// RoomMessageContent, MemberContent, RedactionContent, CreateContent,
// PowerLevelsContent, and UnknownContent for anything else. A nil Content
// means the event has been redacted (see ClientEvent.IsRedacted).
type Content interface {
	// EventType is the m.room.* (or other) type string this content was
	// decoded for.
	EventType() Type
}

// DecodeError is returned when the wire codec encounters a required
// non-nullable field that is missing, or a primitive type mismatch.
// Unknown discriminator values (unrecognized event types, msgtypes, or
// memberships) never produce a DecodeError; they fall back to their
// "unknown" variant instead.
type DecodeError struct {
	Path   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at %s: %s", e.Path, e.Reason)
}

func newDecodeError(path, reason string) error {
	return &DecodeError{Path: path, Reason: reason}
}

// ParseContent decodes raw into the Content variant selected by eventType.
// This is the property-polymorphism half of the wire codec (§4.1 rule 2):
// the discriminator (eventType) is a sibling of raw on the parent object,
// not part of raw itself.
func ParseContent(eventType Type, raw json.RawMessage) (Content, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch eventType {
	case TypeRoomMessage:
		return parseMessageContent(raw)
	case TypeRoomMember:
		return parseMemberContent(raw)
	case TypeRoomRedaction:
		return parseRedactionContent(raw)
	case TypeRoomCreate:
		return parseCreateContent(raw)
	case TypeRoomPowerLevels:
		return parsePowerLevelsContent(raw)
	default:
		return &UnknownContent{Type: eventType, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}

// gjsonString returns the string value at path in raw, or ("", false) if
// the field is absent. gjson scans the raw bytes directly, so this works
// regardless of where the field appears in the object.
func gjsonString(raw json.RawMessage, path string) (string, bool) {
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return "", false
	}
	return res.String(), true
}

// UnknownContent is the fallback variant for event types csync does not
// model explicitly. Unrecognized msgtypes within m.room.message decode to
// UnknownMessageContent instead.
type UnknownContent struct {
	Type Type
	Raw  json.RawMessage
}

func (c *UnknownContent) EventType() Type { return c.Type }

func (c *UnknownContent) MarshalJSON() ([]byte, error) {
	if c.Raw == nil {
		return []byte("{}"), nil
	}
	return c.Raw, nil
}
