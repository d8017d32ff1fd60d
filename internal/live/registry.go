package live

import (
	"log/slog"
	"sync"
)

// Registry maps user IDs to their open connections. It is process-wide
// mutable state, so it is constructed once in server.go and injected into
// whatever needs it — never a package-level variable.
//
// All mutation goes through the mutex. Connections register themselves
// only after a successful auth handshake and unregister on close; when a
// user's set becomes empty the map entry is deleted so the map doesn't
// accumulate tombstones for every user who ever connected.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]map[*Conn]struct{}
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]map[*Conn]struct{}),
		logger: logger,
	}
}

// Register adds an authenticated connection to the user's set.
func (r *Registry) Register(userID string, c *Conn) {
	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[*Conn]struct{})
		r.conns[userID] = set
	}
	set[c] = struct{}{}
	total := len(set)
	r.mu.Unlock()

	r.logger.Info("live connection registered",
		slog.String("userID", userID),
		slog.Int("connections", total),
	)
}

// Unregister removes a connection from the user's set, deleting the entry
// entirely when the set becomes empty. Safe to call more than once for the
// same connection.
func (r *Registry) Unregister(userID string, c *Conn) {
	r.mu.Lock()
	set, ok := r.conns[userID]
	if ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.conns, userID)
		}
	}
	r.mu.Unlock()

	if ok {
		r.logger.Info("live connection unregistered", slog.String("userID", userID))
	}
}

// BroadcastToUser pushes a message to every OPEN connection the user has.
// Connections that are mid-close or whose send buffer is full are skipped
// silently — live delivery is at-most-once, the persisted row is the
// durable copy. Returns the number of connections the message was queued to.
func (r *Registry) BroadcastToUser(userID string, msg Message) int {
	r.mu.RLock()
	// Copy the set under the lock; the sends happen outside it so a slow
	// connection can't stall registration of new ones.
	conns := make([]*Conn, 0, len(r.conns[userID]))
	for c := range r.conns[userID] {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if c.State() != StateOpen {
			continue
		}
		if c.trySend(msg) {
			delivered++
		}
	}
	return delivered
}

// ConnectionCount reports how many open connections a user currently has.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}
