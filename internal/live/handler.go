package live

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/appdeck/internal/auth"
)

// DefaultAuthTimeout is how long a freshly upgraded connection has to send
// its auth frame before the server closes it.
const DefaultAuthTimeout = 30 * time.Second

// Handler upgrades HTTP requests to WebSocket connections and hands them
// to the registry once authenticated. Authentication happens in-band (the
// first frame), not via headers, because browser WebSocket clients cannot
// set an Authorization header.
type Handler struct {
	registry    *Registry
	tokens      *auth.TokenService
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	authTimeout time.Duration
}

// NewHandler creates a Handler with the default auth timeout.
func NewHandler(registry *Registry, tokens *auth.TokenService, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		tokens:   tokens,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The connection is worthless until the client proves
			// identity with a JWT, so origin checks add nothing here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		authTimeout: DefaultAuthTimeout,
	}
}

// ServeHTTP handles GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newConn(ws, h.registry, h.tokens, h.logger, h.authTimeout)
	c.start()
}
