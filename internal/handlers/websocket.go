package handlers

import (
  "context"
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/gorilla/websocket"

  "github.com/spur-store/spur-chat-backend/internal/logger"
  "github.com/spur-store/spur-chat-backend/internal/socket"
)

var upgrader = websocket.Upgrader{
  CheckOrigin: func(r *http.Request) bool {
    return true
  },
}

// WsHandler upgrades a widget connection and subscribes it to its session
// channel so completed turns stream in live. Further channels can be managed
// over the socket itself.
func WsHandler(hub *socket.Hub, log *logger.Logger) gin.HandlerFunc {
  return func(c *gin.Context) {
    sessionID := strings.TrimSpace(c.Query("sessionId"))
    if sessionID == "" {
      c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID is required"})
      return
    }
    conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
    if err != nil {
      log.Warn("Failed to upgrade to websocket", "error", err)
      return
    }
    ctx, cancel := context.WithCancel(context.Background())
    client := socket.NewClient(conn, hub, cancel, log)

    hub.Subscribe(client, []string{socket.SessionChannel(sessionID)})

    go client.ReadLoop(ctx)
    go client.WriteLoop(ctx)
  }
}
