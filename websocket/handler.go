package websocket

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 64
	receiveChanSize = 16
)

// Sender sends a message and returns the number of bytes sent.
type Sender func(Msg) (int, error)

// Receiver receives a message and returns the number of bytes received.
type Receiver func() (Msg, int, error)

// ResponseSender sends responses to a client.
type ResponseSender interface {
	Send(Msg)
}

// Handler represents a frame streaming handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Subscribes to engine frames. send must not block.
	HandleSubscribe(send func(Msg)) (cancel func())

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, req Request) error

	// Handles a request for the last visibility snapshot.
	HandleSnapshot(ctx context.Context, respond ResponseSender, req Request) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender used to send messages.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// Returns the client id.
	ClientID() string
}

// Handle handles the given connection until ctx is done or the client
// disconnects.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The streaming handler.
	Handler Handler

	sendChan       chan Msg
	receiveChan    chan Msg
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan Msg, receiveChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	responder := responseSender{
		send: func(msg Msg) {
			h.send(ctx, msg)
		},
	}

	stopFrames := h.Handler.HandleSubscribe(h.sendFrame)

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())

		case msg := <-h.receiveChan:
			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			cancel()
		}
	}

	stopFrames()
	wg.Wait()
}

// sendFrame is called from the frame loop and drops the frame when the
// client does not keep up.
func (h *handler) sendFrame(msg Msg) {
	select {
	case h.sendChan <- msg:
	default:
		instrumentDroppedFrame()
	}
}

func (h *handler) send(ctx context.Context, msg Msg) {
	select {
	case <-ctx.Done():
	case h.sendChan <- msg:
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		msg, _, err := h.receiver()
		if err != nil {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case h.receiveChan <- msg:
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	if !msg.IsText() {
		logs.WithTag("client_id", h.Handler.ClientID()).
			WithTag("payload_type", msg.PayloadType).
			Debug("ignoring non json message")
		return nil
	}

	var req Request
	if err := msg.DataTo(&req); err != nil {
		return respondError(responder, req, err)
	}

	switch req.Type {
	case MsgTypePing:
		return h.Handler.HandlePing(ctx, responder, req)

	case MsgTypeSnapshot:
		return h.Handler.HandleSnapshot(ctx, responder, req)

	default:
		return respondError(responder, req, errors.New("unknown request type").
			WithTag("type", req.Type))
	}
}

func respondError(responder ResponseSender, req Request, err error) error {
	msg, encodeErr := NewJSONMsg(Response{
		Type:      MsgTypeError,
		RequestID: req.RequestID,
		Error:     err.Error(),
	})
	if encodeErr != nil {
		return encodeErr
	}

	responder.Send(msg)
	return nil
}

// disconnect is safe to call from any handler goroutine. Only the first
// error received by the Handle loop is handled.
func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send func(Msg)
}

func (r responseSender) Send(msg Msg) {
	r.send(msg)
}
