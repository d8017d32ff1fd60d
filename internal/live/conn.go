package live

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/appdeck/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // auth frames are tiny; anything bigger is abuse
	sendBuffer     = 64
)

// State is the lifecycle of one connection.
//
//	CONNECTING → OPEN → CLOSED
//
// CONNECTING covers the window between the HTTP upgrade and a successful
// auth handshake; only OPEN connections receive broadcasts.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

// Conn wraps one websocket connection. A read pump drives the state
// machine (handshake first, then a drain loop that answers control
// traffic); a write pump is the sole writer on the socket, as gorilla
// permits only one concurrent writer.
type Conn struct {
	ws          *websocket.Conn
	registry    *Registry
	tokens      *auth.TokenService
	logger      *slog.Logger
	authTimeout time.Duration

	send  chan Message
	done  chan struct{} // closed exactly once to stop the write pump
	state atomic.Int32
	once  sync.Once

	userID string // written in the read pump before Register, never after
}

func newConn(ws *websocket.Conn, registry *Registry, tokens *auth.TokenService, logger *slog.Logger, authTimeout time.Duration) *Conn {
	c := &Conn{
		ws:          ws,
		registry:    registry,
		tokens:      tokens,
		logger:      logger,
		authTimeout: authTimeout,
		send:        make(chan Message, sendBuffer),
		done:        make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// UserID returns the authenticated user, or "" while CONNECTING.
func (c *Conn) UserID() string {
	if c.State() == StateConnecting {
		return ""
	}
	return c.userID
}

// start launches the pumps. Called by the upgrade handler.
func (c *Conn) start() {
	go c.writePump()
	go c.readPump()
}

// trySend queues a message without blocking. A full buffer means the
// client isn't draining; the message is dropped (the persisted row still
// exists) rather than stalling the caller.
func (c *Conn) trySend(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// fail queues a terminal error frame and closes the connection. The write
// pump flushes queued frames before the close handshake, so the client
// sees the explanation.
func (c *Conn) fail(reason string) {
	c.trySend(Message{Type: MessageTypeError, Message: reason})
	c.close()
}

// close transitions to CLOSED, unregisters, and stops the write pump.
// Idempotent — both pumps and the registry may race to call it.
func (c *Conn) close() {
	c.once.Do(func() {
		wasOpen := c.State() == StateOpen
		c.state.Store(int32(StateClosed))
		if wasOpen {
			c.registry.Unregister(c.userID, c)
		}
		close(c.done)
	})
}

// readPump drives the handshake and then drains the socket.
//
// The first read carries the auth deadline: if no frame arrives (or an
// invalid one does) before it expires, the connection dies with a terminal
// error frame. After authentication the deadline switches to the usual
// pong-based liveness window.
func (c *Conn) readPump() {
	// The write pump owns the socket close: closing it here would race
	// the flush of a queued terminal error frame. close() stops the write
	// pump via done, and its deferred ws.Close() unblocks any pending read.
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(c.authTimeout)); err != nil {
		c.logger.Error("failed to set auth deadline", slog.String("error", err.Error()))
		return
	}

	// --- handshake ---
	var msg clientMessage
	if err := c.ws.ReadJSON(&msg); err != nil {
		c.fail("authentication required")
		return
	}
	if msg.Type != MessageTypeAuth {
		c.fail("first message must be auth")
		return
	}

	userID, err := c.tokens.Validate(msg.Token)
	if err != nil {
		c.logger.Warn("live auth failed", slog.String("error", err.Error()))
		c.fail("invalid token")
		return
	}

	// Handshake done: register before acknowledging so a notification
	// fired right after "authenticated" can't miss this connection.
	c.userID = userID
	c.state.Store(int32(StateOpen))
	c.registry.Register(userID, c)
	c.trySend(Message{Type: MessageTypeAuthenticated})

	// --- post-auth drain loop ---
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in clientMessage
		if err := c.ws.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected live connection close", slog.String("error", err.Error()))
			}
			return
		}
		// Unknown post-auth messages are ignored; the channel is
		// server-push only.
	}
}

// writePump is the only goroutine writing to the socket. It forwards
// queued messages, keeps the connection alive with pings, and on shutdown
// flushes whatever is still queued (terminal error frames in particular)
// before the close handshake.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if !c.writeMessage(msg) {
				c.close()
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			// Flush remaining frames, then say goodbye properly.
			for {
				select {
				case msg := <-c.send:
					if !c.writeMessage(msg) {
						return
					}
				default:
					_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.ws.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func (c *Conn) writeMessage(msg Message) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.ws.WriteJSON(msg); err != nil {
		return false
	}
	return true
}
