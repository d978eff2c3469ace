package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/spur-store/spur-chat-backend/internal/handlers"
  "github.com/spur-store/spur-chat-backend/internal/observability"
)

type RouterConfig struct {
  ChatHandler   *handlers.ChatHandler
  WsHandler     gin.HandlerFunc
  AllowOrigins  []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  //-----------------------------------------
  // Cors Setup
  //-----------------------------------------
  allowOrigins := cfg.AllowOrigins
  if len(allowOrigins) == 0 {
    allowOrigins = []string{
      "http://localhost:3000",
      "http://localhost:5173",
    }
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     allowOrigins,
    AllowMethods:     []string{"GET", "POST", "OPTIONS"},
    AllowHeaders:     []string{"Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  //-----------------------------------------
  // Health + Metrics Routes
  //-----------------------------------------
  router.GET("/healthz", handlers.Healthz)
  router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

  //-----------------------------------------
  // Chat Routes
  //-----------------------------------------
  chat := router.Group("/api/chat")
  {
    chat.POST("/message", cfg.ChatHandler.HandleChatMessage)
    chat.GET("/history/:sessionId", cfg.ChatHandler.GetChatHistory)
    if cfg.WsHandler != nil {
      chat.GET("/ws", cfg.WsHandler)
    }
  }

  return router
}
