package live

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/appdeck/internal/auth"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testEnv struct {
	registry *Registry
	tokens   *auth.TokenService
	server   *httptest.Server
	wsURL    string
}

func newTestEnv(t *testing.T, authTimeout time.Duration) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	registry := NewRegistry(logger)
	handler := NewHandler(registry, tokens, logger)
	handler.authTimeout = authTimeout

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testEnv{
		registry: registry,
		tokens:   tokens,
		server:   server,
		wsURL:    "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(e.wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// authenticate performs the handshake and waits for the ack frame.
func (e *testEnv) authenticate(t *testing.T, ws *websocket.Conn, userID string) {
	t.Helper()

	token, err := e.tokens.Generate(userID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := ws.WriteJSON(map[string]string{"type": MessageTypeAuth, "token": token}); err != nil {
		t.Fatalf("write auth frame: %v", err)
	}

	msg := readFrame(t, ws)
	if msg.Type != MessageTypeAuthenticated {
		t.Fatalf("expected %q frame, got %q (message: %q)", MessageTypeAuthenticated, msg.Type, msg.Message)
	}
}

func readFrame(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return msg
}

// waitForCount polls until the user's connection count reaches want, or
// fails the test. Registration happens on the server goroutine so the test
// can't observe it synchronously.
func waitForCount(t *testing.T, r *Registry, userID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.ConnectionCount(userID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("connection count for %q never reached %d (last: %d)", userID, want, r.ConnectionCount(userID))
}

// =============================================================================
// HANDSHAKE
// =============================================================================

func TestHandshakeSuccess(t *testing.T) {
	env := newTestEnv(t, DefaultAuthTimeout)

	ws := env.dial(t)
	env.authenticate(t, ws, "user-1")

	if got := env.registry.ConnectionCount("user-1"); got != 1 {
		t.Errorf("ConnectionCount = %d, want 1", got)
	}
}

func TestHandshakeInvalidToken(t *testing.T) {
	env := newTestEnv(t, DefaultAuthTimeout)

	ws := env.dial(t)
	if err := ws.WriteJSON(map[string]string{"type": MessageTypeAuth, "token": "not-a-jwt"}); err != nil {
		t.Fatalf("write auth frame: %v", err)
	}

	msg := readFrame(t, ws)
	if msg.Type != MessageTypeError {
		t.Fatalf("expected error frame, got %q", msg.Type)
	}
	if msg.Message != "invalid token" {
		t.Errorf("error message = %q, want %q", msg.Message, "invalid token")
	}
	if got := env.registry.ConnectionCount("user-1"); got != 0 {
		t.Errorf("ConnectionCount = %d, want 0", got)
	}
}

func TestHandshakeWrongFirstMessage(t *testing.T) {
	env := newTestEnv(t, DefaultAuthTimeout)

	ws := env.dial(t)
	if err := ws.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	msg := readFrame(t, ws)
	if msg.Type != MessageTypeError {
		t.Fatalf("expected error frame, got %q", msg.Type)
	}
}

func TestHandshakeTimeout(t *testing.T) {
	env := newTestEnv(t, 100*time.Millisecond)

	ws := env.dial(t)
	// Send nothing: the server should give up after the auth timeout and
	// close the connection with a terminal error frame.
	msg := readFrame(t, ws)
	if msg.Type != MessageTypeError {
		t.Fatalf("expected error frame, got %q", msg.Type)
	}

	// The next read must fail — the server closed the connection.
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var extra Message
	if err := ws.ReadJSON(&extra); err == nil {
		t.Error("expected connection to be closed after auth timeout")
	}
}

// =============================================================================
// BROADCAST
// =============================================================================

func TestBroadcastReachesAllUserConnections(t *testing.T) {
	env := newTestEnv(t, DefaultAuthTimeout)

	// Two devices for the same user, one for somebody else.
	ws1 := env.dial(t)
	env.authenticate(t, ws1, "user-1")
	ws2 := env.dial(t)
	env.authenticate(t, ws2, "user-1")
	other := env.dial(t)
	env.authenticate(t, other, "user-2")

	delivered := env.registry.BroadcastToUser("user-1", Message{
		Type: MessageTypeNotification,
		Data: map[string]string{"id": "n-1"},
	})
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}

	for _, ws := range []*websocket.Conn{ws1, ws2} {
		msg := readFrame(t, ws)
		if msg.Type != MessageTypeNotification {
			t.Errorf("frame type = %q, want %q", msg.Type, MessageTypeNotification)
		}
	}

	// The other user must receive nothing.
	_ = other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var stray Message
	if err := other.ReadJSON(&stray); err == nil {
		t.Errorf("user-2 received a stray frame: %+v", stray)
	}
}

func TestBroadcastToOfflineUser(t *testing.T) {
	env := newTestEnv(t, DefaultAuthTimeout)

	if delivered := env.registry.BroadcastToUser("nobody", Message{Type: MessageTypeNotification}); delivered != 0 {
		t.Errorf("delivered = %d, want 0", delivered)
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestDisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t, DefaultAuthTimeout)

	ws := env.dial(t)
	env.authenticate(t, ws, "user-1")
	waitForCount(t, env.registry, "user-1", 1)

	_ = ws.Close()
	waitForCount(t, env.registry, "user-1", 0)
}
