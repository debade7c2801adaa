package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	xhttp "QuantLens/pkg/http"
)

// Handler upgrades GET /ws/recommendations to a hub subscription.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

var _ xhttp.Handler = (*Handler)(nil)

func NewHandler(hub *Hub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/recommendations", h.Subscribe)
}

func (h *Handler) Subscribe(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return nil
	}
	client := newClient(h.hub, conn)
	if !h.hub.register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		return conn.Close()
	}
	go client.writePump()
	go client.readPump()
	return nil
}
