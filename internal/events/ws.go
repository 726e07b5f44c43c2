package events

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the change feed carries no credentials and mirrors public reads
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades the connection and keeps it registered with the
// hub until the peer hangs up. The feed is one-way: inbound messages
// are drained and discarded.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		hub.Add(ws)
		defer hub.Remove(ws)

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}
}
