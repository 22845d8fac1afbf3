package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-fleet/internal/middleware"
	"github.com/chachabrian/mooveit-fleet/internal/services"
)

// WebSocketHandler handles WebSocket connections
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.HandleWebSocket(c.Writer, c.Request, middleware.UserID(c), middleware.Role(c))
	}
}
