package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

// ErrTypeUnauthorized is returned when a request does not carry the expected
// token.
const ErrTypeUnauthorized = "unauthorized"

// VerifyAuthToken returns a WebSocket handshake that rejects connections
// without the given bearer token. An empty token accepts every connection.
func VerifyAuthToken(token string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag("remote_addr", r.RemoteAddr).Error(err)
			return err
		}
		return nil
	}
}

// VerifyAuthTokenHandler wraps next with a bearer token check. An empty
// token accepts every request.
func VerifyAuthTokenHandler(token string, next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag("remote_addr", r.RemoteAddr).
				WithTag("path", r.URL.Path).
				Error(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// GetTokenFromHTTPRequest returns the bearer token of the Authorization
// header, or the token query parameter for clients that cannot set headers.
func GetTokenFromHTTPRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

func verifyToken(token string, r *http.Request) error {
	if token == "" {
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(GetTokenFromHTTPRequest(r))) != 1 {
		return errors.New("invalid auth token").WithType(ErrTypeUnauthorized)
	}
	return nil
}
