// Package live implements the server-push channel: a WebSocket endpoint,
// a per-connection state machine, and a registry mapping authenticated
// users to their open connections.
//
// PROTOCOL:
// Every frame is a JSON envelope {"type": string, ...}. The client's first
// message must be {"type":"auth","token":"<jwt>"} within the auth timeout
// (30s by default) — the same JWT the REST API uses. The server answers
// {"type":"authenticated"} and from then on pushes
// {"type":"notification","data":{...}} frames. Any failure produces a
// terminal {"type":"error","message":...} frame before the connection is
// closed.
//
// A user may hold several connections at once (several devices); the
// registry keeps a set per user and fans every broadcast out to all of
// them. Delivery is best-effort and at-most-once per connection — the
// persisted notification row is the durable record, written before any
// push is attempted.
package live

// Server→client message types.
const (
	MessageTypeAuthenticated = "authenticated"
	MessageTypeError         = "error"
	MessageTypeNotification  = "notification"
)

// MessageTypeAuth is the only client→server message type.
const MessageTypeAuth = "auth"

// Message is the envelope for every server→client frame.
type Message struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"` // set on "error" frames
	Data    any    `json:"data,omitempty"`    // set on "notification" frames
}

// clientMessage is the envelope for client→server frames. Only "auth"
// carries a payload today; unknown types after authentication are ignored
// so older servers tolerate newer clients.
type clientMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}
