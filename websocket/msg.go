package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Types of JSON messages.
const (
	MsgTypeFrame    = "frame"
	MsgTypePing     = "ping"
	MsgTypePong     = "pong"
	MsgTypeSnapshot = "snapshot"
	MsgTypeError    = "error"
)

// Msg is a WebSocket message. Frames are sent as binary messages, requests
// and responses as JSON text messages.
type Msg struct {
	PayloadType byte
	Data        []byte
}

// NewFrameMsg returns a binary message that carries an encoded frame.
func NewFrameMsg(data []byte) Msg {
	return Msg{
		PayloadType: websocket.BinaryFrame,
		Data:        data,
	}
}

// NewJSONMsg returns a text message that carries the JSON encoding of v.
func NewJSONMsg(v any) (Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Msg{}, errors.New("encoding json message failed").Wrap(err)
	}

	return Msg{
		PayloadType: websocket.TextFrame,
		Data:        data,
	}, nil
}

// IsText reports whether the message is a text message.
func (m Msg) IsText() bool {
	return m.PayloadType == websocket.TextFrame
}

// TypeString returns the type of the message.
func (m Msg) TypeString() string {
	if !m.IsText() {
		return MsgTypeFrame
	}

	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(m.Data, &header); err != nil || header.Type == "" {
		return "unknown"
	}
	return header.Type
}

// DataTo decodes the JSON payload of a text message into v.
func (m Msg) DataTo(v any) error {
	if !m.IsText() {
		return errors.New("message is not a json message").
			WithTag("payload_type", m.PayloadType)
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding json message failed").Wrap(err)
	}
	return nil
}

// MsgCodec sends and receives Msg values on a WebSocket connection.
var MsgCodec = websocket.Codec{
	Marshal: func(v any) ([]byte, byte, error) {
		msg, ok := v.(Msg)
		if !ok {
			return nil, websocket.UnknownFrame, websocket.ErrNotSupported
		}
		return msg.Data, msg.PayloadType, nil
	},

	Unmarshal: func(data []byte, payloadType byte, v any) error {
		msg, ok := v.(*Msg)
		if !ok {
			return websocket.ErrNotSupported
		}

		msg.PayloadType = payloadType
		msg.Data = data
		return nil
	},
}

// Request is a JSON message sent by a client.
type Request struct {
	Type      string `json:"type"`
	RequestID uint32 `json:"request_id,omitempty"`
}

// Response is a JSON message sent to a client.
type Response struct {
	Type      string `json:"type"`
	RequestID uint32 `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
}
