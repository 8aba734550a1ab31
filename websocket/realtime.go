package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/sjon/engine"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// HeaderClientID is the request header a client can use to pick its id.
const HeaderClientID = "X-Client-ID"

// RealtimeHandler streams the frames of an engine to a client.
type RealtimeHandler struct {
	// The engine that produces frames.
	Engine *engine.Engine

	// The minimum time between two frames sent to the client. Zero sends
	// every frame.
	FrameInterval time.Duration

	// The time a message send can take before the client is disconnected.
	WriteTimeout time.Duration

	conn     *websocket.Conn
	clientID string

	stopMutex sync.Mutex
	stop      func()

	// Only accessed from the frame loop.
	buffer    []byte
	lastFrame time.Duration
	sent      bool
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	if req := conn.Request(); req != nil {
		h.clientID = req.Header.Get(HeaderClientID)
	}
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
}

func (h *RealtimeHandler) HandleDisconnect(err error) {
	h.stopFrames()
}

func (h *RealtimeHandler) HandleSubscribe(send func(Msg)) func() {
	cancel := h.Engine.HandleFrame(func(f engine.Frame) {
		if h.sent && f.Elapsed-h.lastFrame < h.FrameInterval {
			return
		}
		h.sent = true
		h.lastFrame = f.Elapsed

		// The buffer is reused, the message gets its own copy.
		h.buffer = AppendFrame(h.buffer[:0], f)
		send(NewFrameMsg(append([]byte(nil), h.buffer...)))
	})

	h.stopMutex.Lock()
	h.stop = cancel
	h.stopMutex.Unlock()

	return h.stopFrames
}

func (h *RealtimeHandler) stopFrames() {
	h.stopMutex.Lock()
	defer h.stopMutex.Unlock()

	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond ResponseSender, req Request) error {
	msg, err := NewJSONMsg(Response{
		Type:      MsgTypePong,
		RequestID: req.RequestID,
	})
	if err != nil {
		return err
	}

	respond.Send(msg)
	return nil
}

func (h *RealtimeHandler) HandleSnapshot(ctx context.Context, respond ResponseSender, req Request) error {
	msg, err := NewJSONMsg(Response{
		Type:      MsgTypeSnapshot,
		RequestID: req.RequestID,
		Data:      h.Engine.Snapshot(),
	})
	if err != nil {
		return err
	}

	respond.Send(msg)
	return nil
}

func (h *RealtimeHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		var msg Msg
		err := MsgCodec.Receive(h.conn, &msg)
		return msg, len(msg.Data), err
	}
}

func (h *RealtimeHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		if h.WriteTimeout > 0 {
			h.conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
		}

		if err := MsgCodec.Send(h.conn, msg); err != nil {
			return 0, err
		}
		return len(msg.Data), nil
	}
}

func (h *RealtimeHandler) Close() {
	h.stopFrames()
}

func (h *RealtimeHandler) ClientID() string {
	return h.clientID
}
