package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/courtside/hub"
	"github.com/Dosada05/courtside/middleware"
)

type WebSocketHandler struct {
	hub        *hub.Hub
	dispatcher *hub.Dispatcher
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewWebSocketHandler accepts upgrades only from allowedOrigins; "*" allows any.
func NewWebSocketHandler(h *hub.Hub, d *hub.Dispatcher, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        h,
		dispatcher: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeWs upgrades an identified request. Sessions are joined over the socket
// with a join message, so one connection may record several matches in turn.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.GetIdentityFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "identity required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed",
			slog.String("participant_id", identity.ParticipantID),
			slog.Any("error", err))
		return
	}

	client := hub.NewClient(h.hub, h.dispatcher, conn, identity)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("websocket client connected",
		slog.String("handle", client.Handle),
		slog.String("participant_id", identity.ParticipantID),
		slog.Bool("guest", identity.Guest))
}
