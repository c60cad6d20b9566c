package handler

import (
	"log"
	"net/http"

	events "anoa.com/classboard/internal/modules/events/service"
	"anoa.com/classboard/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type EventsHandler struct {
	hub      events.Hub
	upgrader websocket.Upgrader
}

// NewEventsHandler accepts sockets from allowedOrigins. An empty list
// accepts any origin.
func NewEventsHandler(hub events.Hub, allowedOrigins []string) *EventsHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// HandleWebSocket streams the device's events until either side hangs up.
func (h *EventsHandler) HandleWebSocket(c *gin.Context) {
	deviceID, err := response.GetDeviceID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	stream, cancel, err := h.hub.Subscribe(c.Request.Context(), deviceID)
	if err != nil {
		log.Printf("[events] subscribe %s: %v", deviceID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "이벤트 구독에 실패했습니다."})
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}
	defer conn.Close()

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("Failed to write message to websocket: %v", err)
				return
			}
		case <-clientClosed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
