package event

import (
	"encoding/json"

	"go.mau.fi/csync/id"
)

// MessageContent is the inline-polymorphic sum type decoded from the body
// of an m.room.message event, selected by the "msgtype" field wherever it
// appears in the object.
type MessageContent interface {
	Content
	MsgType() MsgType
}

// RelatesTo carries the optional m.relates_to relation block shared by
// all message sub-types.
type RelatesTo struct {
	EventID id.EventID `json:"event_id,omitempty"`
	RelType string     `json:"rel_type,omitempty"`
}

// TextMessageContent is the m.text msgtype variant.
type TextMessageContent struct {
	Body          string     `json:"body"`
	FormattedBody string     `json:"formatted_body,omitempty"`
	Format        string     `json:"format,omitempty"`
	RelatesTo     *RelatesTo `json:"m.relates_to,omitempty"`
}

func (c *TextMessageContent) EventType() Type  { return TypeRoomMessage }
func (c *TextMessageContent) MsgType() MsgType { return MsgText }

func (c *TextMessageContent) MarshalJSON() ([]byte, error) {
	type alias struct {
		MsgType       MsgType    `json:"msgtype"`
		Body          string     `json:"body"`
		FormattedBody string     `json:"formatted_body,omitempty"`
		Format        string     `json:"format,omitempty"`
		RelatesTo     *RelatesTo `json:"m.relates_to,omitempty"`
	}
	return json.Marshal(alias{MsgText, c.Body, c.FormattedBody, c.Format, c.RelatesTo})
}

// ImageInfo carries the optional m.room.message "info" block for images.
type ImageInfo struct {
	Height   int    `json:"h,omitempty"`
	Width    int    `json:"w,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
	Size     int    `json:"size,omitempty"`
}

// ImageMessageContent is the m.image msgtype variant.
type ImageMessageContent struct {
	Body      string        `json:"body"`
	URL       id.ContentURI `json:"url"`
	Info      *ImageInfo    `json:"info,omitempty"`
	RelatesTo *RelatesTo    `json:"m.relates_to,omitempty"`
}

func (c *ImageMessageContent) EventType() Type  { return TypeRoomMessage }
func (c *ImageMessageContent) MsgType() MsgType { return MsgImage }

func (c *ImageMessageContent) MarshalJSON() ([]byte, error) {
	type alias struct {
		MsgType   MsgType       `json:"msgtype"`
		Body      string        `json:"body"`
		URL       id.ContentURI `json:"url"`
		Info      *ImageInfo    `json:"info,omitempty"`
		RelatesTo *RelatesTo    `json:"m.relates_to,omitempty"`
	}
	return json.Marshal(alias{MsgImage, c.Body, c.URL, c.Info, c.RelatesTo})
}

// UnknownMessageContent is used for any msgtype csync does not model
// explicitly. Decoding an unrecognized msgtype never fails.
type UnknownMessageContent struct {
	Msg       MsgType         `json:"msgtype"`
	Body      string          `json:"body,omitempty"`
	Raw       json.RawMessage `json:"-"`
	RelatesTo *RelatesTo      `json:"m.relates_to,omitempty"`
}

func (c *UnknownMessageContent) EventType() Type  { return TypeRoomMessage }
func (c *UnknownMessageContent) MsgType() MsgType { return c.Msg }

func (c *UnknownMessageContent) MarshalJSON() ([]byte, error) {
	if c.Raw != nil {
		return c.Raw, nil
	}
	type alias UnknownMessageContent
	return json.Marshal((*alias)(c))
}

func parseMessageContent(raw json.RawMessage) (Content, error) {
	msgtype, ok := gjsonString(raw, "msgtype")
	if !ok {
		return nil, newDecodeError("content.msgtype", "missing required field")
	}
	switch MsgType(msgtype) {
	case MsgText:
		var c TextMessageContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, newDecodeError("content", err.Error())
		}
		return &c, nil
	case MsgImage:
		var c ImageMessageContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, newDecodeError("content", err.Error())
		}
		return &c, nil
	default:
		var c UnknownMessageContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, newDecodeError("content", err.Error())
		}
		c.Raw = append(json.RawMessage(nil), raw...)
		return &c, nil
	}
}
