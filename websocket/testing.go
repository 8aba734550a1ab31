package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// TestingEnv is a stream server for tests. It and the clients it dialed
// are closed when the test ends.
type TestingEnv struct {
	t      *testing.T
	server *httptest.Server

	mutex   sync.Mutex
	clients []*websocket.Conn
	logger  func(...any)
}

// NewTestingEnv starts a server that serves each connection with a handler
// returned by newHandler. Logs are written to the test output.
func NewTestingEnv(t *testing.T, newHandler func() Handler) *TestingEnv {
	env := &TestingEnv{
		t:      t,
		logger: t.Log,
	}

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}
	logs.SetLogger(env.log)
	errors.Encoder = json.Marshal

	ctx, cancel := context.WithCancel(context.Background())

	env.server = httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			h := newHandler()
			defer h.Close()

			Handle(ctx, conn, h)
		},
	})

	t.Cleanup(func() {
		cancel()
		env.close()
	})
	return env
}

// URL returns the ws:// address of the server.
func (e *TestingEnv) URL() string {
	return strings.Replace(e.server.URL, "http://", "ws://", 1)
}

// Dial connects a new client. An empty clientID lets the server pick one.
func (e *TestingEnv) Dial(clientID string) *websocket.Conn {
	config, err := websocket.NewConfig(e.URL(), "http://localhost")
	if err != nil {
		e.t.Fatalf("error initializing web socket: %s", err)
	}

	config.Header.Set("User-Agent", "sjon-test")
	config.Header.Set("X-Forwarded-For", "192.0.0.0")
	if clientID != "" {
		config.Header.Set(HeaderClientID, clientID)
	}

	conn, err := websocket.DialConfig(config)
	if err != nil {
		e.t.Fatalf("error dialing web socket: %s", err)
	}

	e.mutex.Lock()
	e.clients = append(e.clients, conn)
	e.mutex.Unlock()
	return conn
}

func (e *TestingEnv) log(entry logs.Entry) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.logger != nil {
		e.logger(entry)
	}
}

func (e *TestingEnv) close() {
	e.mutex.Lock()
	clients := e.clients
	e.clients = nil
	e.logger = nil
	e.mutex.Unlock()

	for _, c := range clients {
		c.Close()
	}
	e.server.Close()
}
