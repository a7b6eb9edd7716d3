package event

import (
	"encoding/json"

	"go.mau.fi/csync/id"
)

// RedactionContent is the content of an m.room.redaction event.
type RedactionContent struct {
	Redacts id.EventID `json:"redacts,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}

func (c *RedactionContent) EventType() Type { return TypeRoomRedaction }

func parseRedactionContent(raw json.RawMessage) (Content, error) {
	var c RedactionContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, newDecodeError("content", err.Error())
	}
	return &c, nil
}
