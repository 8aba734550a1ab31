package smoketest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	sjonws "github.com/aukilabs/sjon/websocket"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// ErrTypeSmokeTestFailed is returned when the stream endpoint does not
// behave as expected.
const ErrTypeSmokeTestFailed = "smoke_test_failed"

const defaultTimeout = 10 * time.Second

type Options struct {
	// The WebSocket endpoint that streams frames.
	Endpoint string

	// The token sent to the endpoint.
	Token string

	UserAgent string

	// The time the whole test can take. Defaults to 10 seconds.
	Timeout time.Duration
}

// Result is the outcome of a smoke test.
type Result struct {
	Endpoint       string `json:"endpoint"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	FirstFrameMS   int64  `json:"first_frame_ms"`
	PingMS         int64  `json:"ping_ms"`
	FrameNumber    uint64 `json:"frame_number"`
	Ready          bool   `json:"ready"`
	VisibleTiles   int    `json:"visible_tiles"`
	VisibleObjects int    `json:"visible_objects"`
}

// Run connects to the stream endpoint, waits for a frame and checks that the
// endpoint answers a ping.
func Run(ctx context.Context, opts Options) (Result, error) {
	res := Result{Endpoint: opts.Endpoint}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := run(ctx, opts, &res)
	if err != nil {
		err = errors.New("smoke test failed").
			WithType(ErrTypeSmokeTestFailed).
			WithTag("endpoint", opts.Endpoint).
			Wrap(err)
		res.Error = err.Error()
		return res, err
	}

	res.Success = true
	return res, nil
}

func run(ctx context.Context, opts Options, res *Result) error {
	config, err := websocket.NewConfig(opts.Endpoint, originFromEndpoint(opts.Endpoint))
	if err != nil {
		return errors.New("invalid endpoint").Wrap(err)
	}
	if opts.UserAgent != "" {
		config.Header.Set("User-Agent", opts.UserAgent)
	}
	if opts.Token != "" {
		config.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	start := time.Now()

	conn, err := config.DialContext(ctx)
	if err != nil {
		return errors.New("dialing endpoint failed").Wrap(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	msg, err := receive(conn, false)
	if err != nil {
		return errors.New("receiving frame failed").Wrap(err)
	}
	res.FirstFrameMS = time.Since(start).Milliseconds()

	frame, err := sjonws.DecodeFrame(msg.Data)
	if err != nil {
		return err
	}
	res.FrameNumber = frame.Number
	res.Ready = frame.Ready
	res.VisibleTiles = len(frame.Tiles)
	for _, t := range frame.Tiles {
		res.VisibleObjects += len(t.Nodes)
	}

	ping, err := sjonws.NewJSONMsg(sjonws.Request{
		Type:      sjonws.MsgTypePing,
		RequestID: 1,
	})
	if err != nil {
		return err
	}

	pingStart := time.Now()
	if err := sjonws.MsgCodec.Send(conn, ping); err != nil {
		return errors.New("sending ping failed").Wrap(err)
	}

	msg, err = receive(conn, true)
	if err != nil {
		return errors.New("receiving pong failed").Wrap(err)
	}

	var pong sjonws.Response
	if err := msg.DataTo(&pong); err != nil {
		return err
	}
	if pong.Type != sjonws.MsgTypePong || pong.RequestID != 1 {
		return errors.New("unexpected ping response").
			WithTag("type", pong.Type).
			WithTag("request_id", pong.RequestID)
	}
	res.PingMS = time.Since(pingStart).Milliseconds()
	return nil
}

func receive(conn *websocket.Conn, text bool) (sjonws.Msg, error) {
	for {
		var msg sjonws.Msg
		if err := sjonws.MsgCodec.Receive(conn, &msg); err != nil {
			return sjonws.Msg{}, err
		}
		if msg.IsText() == text {
			return msg, nil
		}
	}
}

func originFromEndpoint(endpoint string) string {
	origin := strings.Replace(endpoint, "wss://", "https://", 1)
	return strings.Replace(origin, "ws://", "http://", 1)
}

// HandleSmokeTest runs a smoke test against the configured endpoint and
// responds with its result.
func HandleSmokeTest(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := Run(r.Context(), opts)
		if err != nil {
			logs.WithTag("endpoint", opts.Endpoint).Warn(err)
		}

		data, err := json.Marshal(res)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !res.Success {
			w.WriteHeader(http.StatusBadGateway)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		w.Write(data)
	}
}
